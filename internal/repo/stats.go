// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// analysis engine and the operations endpoints.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// ResourceStats returns the number of stored resource records of accountID
// and the time of the latest write. When there are none, the count is 0 and
// lastScan is nil.
func ResourceStats(ctx context.Context, db *gorm.DB, accountID string) (count int64, lastScan *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ResourceRecord{}).Where("account_id = ?", accountID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// QueueCounts returns the number of jobs on queue grouped by status.
// Statuses with no jobs are present with a zero count.
func QueueCounts(ctx context.Context, db *gorm.DB, queue string) (map[domain.JobStatus]int64, error) {
	var rows []struct {
		Status domain.JobStatus
		N      int64
	}
	err := db.WithContext(ctx).Model(&domain.Job{}).
		Select("status, COUNT(*) AS n").
		Where("queue = ?", queue).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[domain.JobStatus]int64{
		domain.JobWaiting:   0,
		domain.JobActive:    0,
		domain.JobCompleted: 0,
		domain.JobFailed:    0,
	}
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
