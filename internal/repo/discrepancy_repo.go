// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for discrepancies.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// DismissedKey is the (type, resourceId) pair of a RESOLVED or IGNORED row.
type DismissedKey struct {
	Type       domain.DiscrepancyType
	ResourceID string
}

// DeleteActiveDiscrepancies removes every ACTIVE row of accountID and
// returns the number removed.
func DeleteActiveDiscrepancies(ctx context.Context, db *gorm.DB, accountID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, domain.StatusActive).
		Delete(&domain.Discrepancy{})
	return res.RowsAffected, res.Error
}

// ListDismissedKeys returns the natural keys of RESOLVED or IGNORED rows of
// accountID whose resource id is in resourceIDs.
func ListDismissedKeys(ctx context.Context, db *gorm.DB, accountID string, resourceIDs []string) ([]DismissedKey, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	var out []DismissedKey
	err := db.WithContext(ctx).Model(&domain.Discrepancy{}).
		Select("type, resource_id").
		Where("account_id = ? AND status IN ? AND resource_id IN ?",
			accountID, []domain.Status{domain.StatusResolved, domain.StatusIgnored}, resourceIDs).
		Scan(&out).Error
	return out, err
}

// InsertDiscrepancies persists ds as ACTIVE rows of accountID with fresh ids.
func InsertDiscrepancies(ctx context.Context, db *gorm.DB, accountID string, ds []domain.Discrepancy) error {
	if len(ds) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range ds {
		ds[i].ID = uuid.NewString()
		ds[i].AccountID = accountID
		ds[i].Status = domain.StatusActive
		ds[i].CreatedAt = now
		ds[i].UpdatedAt = now
	}
	return db.WithContext(ctx).CreateInBatches(ds, ResourceInsertBatch).Error
}

// ListDiscrepancies returns the discrepancies of accountID, optionally
// filtered by status, newest first.
func ListDiscrepancies(ctx context.Context, db *gorm.DB, accountID string, status domain.Status) ([]domain.Discrepancy, error) {
	q := db.WithContext(ctx).Where("account_id = ?", accountID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Discrepancy
	err := q.Order("created_at DESC, id ASC").Find(&out).Error
	return out, err
}

// UpdateDiscrepancyStatus sets the status of discrepancy id owned by
// accountID. It returns ErrNotFound when no such row exists.
func UpdateDiscrepancyStatus(ctx context.Context, db *gorm.DB, accountID, id string, status domain.Status) error {
	res := db.WithContext(ctx).Model(&domain.Discrepancy{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
