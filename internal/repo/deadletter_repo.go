// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only dead-letter log and the
// schedule registry.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// CreateDeadLetter appends one record for a permanently failed job.
func CreateDeadLetter(ctx context.Context, db *gorm.DB, dl *domain.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(dl).Error
}

// ListDeadLetters returns dead letters newest first. An empty queue lists
// every source queue; limit <= 0 means no cap.
func ListDeadLetters(ctx context.Context, db *gorm.DB, queue string, limit int) ([]domain.DeadLetter, error) {
	q := db.WithContext(ctx)
	if queue != "" {
		q = q.Where("queue = ?", queue)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.DeadLetter
	err := q.Order("failed_at DESC, id ASC").Find(&out).Error
	return out, err
}

// ReplaceSchedules clears every registered schedule and writes ss.
func ReplaceSchedules(ctx context.Context, db *gorm.DB, ss []domain.Schedule) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Schedule{}).Error; err != nil {
			return err
		}
		for i := range ss {
			ss[i].CreatedAt = now
		}
		if len(ss) == 0 {
			return nil
		}
		return tx.Create(&ss).Error
	})
}

// ListSchedules returns every registered schedule ordered by name.
func ListSchedules(ctx context.Context, db *gorm.DB) ([]domain.Schedule, error) {
	var out []domain.Schedule
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}
