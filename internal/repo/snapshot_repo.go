// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for cost snapshots
// and resource snapshots.
//
// Cost snapshots are keyed by (account_id, period) and upserted. Resource
// snapshots are replaced wholesale per account inside one transaction so a
// reader never observes a half-written scan.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// ResourceInsertBatch is the number of rows written per INSERT statement.
const ResourceInsertBatch = 500

// UpsertCostSnapshot writes s for (s.AccountID, s.Period), replacing the
// services, total and currency of any existing row for that key.
func UpsertCostSnapshot(ctx context.Context, db *gorm.DB, s *domain.CostSnapshot) error {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"services", "total_cost", "currency", "updated_at"}),
	}).Create(s).Error
}

// GetCostSnapshot returns the snapshot of accountID for period, or ErrNotFound.
func GetCostSnapshot(ctx context.Context, db *gorm.DB, accountID, period string) (*domain.CostSnapshot, error) {
	var s domain.CostSnapshot
	err := db.WithContext(ctx).
		Where("account_id = ? AND period = ?", accountID, period).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// LatestCostSnapshot returns the most recently written snapshot of
// accountID, or ErrNotFound when none exists.
func LatestCostSnapshot(ctx context.Context, db *gorm.DB, accountID string) (*domain.CostSnapshot, error) {
	var s domain.CostSnapshot
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("updated_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ReplaceResourceRecords deletes every record of accountID and inserts recs
// in batches of ResourceInsertBatch, atomically.
func ReplaceResourceRecords(ctx context.Context, db *gorm.DB, accountID string, recs []domain.ResourceRecord) error {
	now := time.Now().UTC()
	for i := range recs {
		recs[i].AccountID = accountID
		if recs[i].ID == "" {
			recs[i].ID = uuid.NewString()
		}
		recs[i].CreatedAt = now
		recs[i].UpdatedAt = now
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&domain.ResourceRecord{}).Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.CreateInBatches(recs, ResourceInsertBatch).Error
	})
}

// ListResourceRecords returns every stored record of accountID ordered by
// service then resource id.
func ListResourceRecords(ctx context.Context, db *gorm.DB, accountID string) ([]domain.ResourceRecord, error) {
	var out []domain.ResourceRecord
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("service ASC, resource_id ASC").
		Find(&out).Error
	return out, err
}
