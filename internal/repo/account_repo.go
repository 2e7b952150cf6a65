// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for AccountConfig.
//
// Functions follow the thin repository approach: no business logic, only
// persistence and query composition. Missing rows surface as ErrNotFound.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// GetAccountConfig returns the role configuration of accountID, or ErrNotFound.
func GetAccountConfig(ctx context.Context, db *gorm.DB, accountID string) (*domain.AccountConfig, error) {
	var c domain.AccountConfig
	if err := db.WithContext(ctx).Where("account_id = ?", accountID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertAccountConfig inserts or updates the configuration for accountID.
// A clash on ExternalID with another account yields ErrDuplicate.
func UpsertAccountConfig(ctx context.Context, db *gorm.DB, accountID, roleARN, externalID string) (*domain.AccountConfig, error) {
	now := time.Now().UTC()
	c := &domain.AccountConfig{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		RoleARN:    roleARN,
		ExternalID: externalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role_arn", "external_id", "updated_at"}),
	}).Create(c).Error
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return GetAccountConfig(ctx, db, accountID)
}

// StreamAccountIDs pages through every configured account id in ascending
// order using keyset pagination and calls fn once per page. Iteration stops
// at the first error returned by fn or by the database.
func StreamAccountIDs(ctx context.Context, db *gorm.DB, pageSize int, fn func(ids []string) error) error {
	if pageSize <= 0 {
		return errors.New("page size must be positive")
	}
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var ids []string
		q := db.WithContext(ctx).Model(&domain.AccountConfig{}).
			Order("account_id ASC").
			Limit(pageSize)
		if after != "" {
			q = q.Where("account_id > ?", after)
		}
		if err := q.Pluck("account_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := fn(ids); err != nil {
			return err
		}
		if len(ids) < pageSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}
