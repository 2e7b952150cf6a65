// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the storage primitives of the durable
// job queue: insert with idempotency, optimistic claim with a lease, lease
// extension, and terminal transitions.
//
// Claiming is a compare-and-set on (id, status, attempts): only one consumer
// wins a given row even when several poll concurrently.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// InsertJob stores j. When j carries an idempotency key already held by a
// non-failed job on the same queue, the existing job is returned together
// with ErrDuplicate.
func InsertJob(ctx context.Context, db *gorm.DB, j *domain.Job) (*domain.Job, error) {
	var existing *domain.Job
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if j.IdempotencyKey != nil {
			found, err := findLiveJobByKey(tx, j.Queue, *j.IdempotencyKey)
			if err == nil {
				existing = found
				return ErrDuplicate
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return tx.Create(j).Error
	})
	switch {
	case err == nil:
		return j, nil
	case errors.Is(err, ErrDuplicate):
		return existing, ErrDuplicate
	case isUniqueViolation(err) && j.IdempotencyKey != nil:
		// lost a race against a concurrent insert of the same key
		found, ferr := findLiveJobByKey(db.WithContext(ctx), j.Queue, *j.IdempotencyKey)
		if ferr != nil {
			return nil, err
		}
		return found, ErrDuplicate
	default:
		return nil, err
	}
}

func findLiveJobByKey(db *gorm.DB, queue, key string) (*domain.Job, error) {
	var j domain.Job
	err := db.Where("queue = ? AND idempotency_key = ? AND status <> ?", queue, key, domain.JobFailed).
		First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJob returns job id, or ErrNotFound.
func GetJob(ctx context.Context, db *gorm.DB, id string) (*domain.Job, error) {
	var j domain.Job
	if err := db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ClaimJob picks the oldest runnable job on queue and marks it active with
// a lease ending at now+lease. A job is runnable when it is waiting and due,
// or active with an expired lease (its consumer stalled). It returns
// ErrNotFound when nothing is runnable.
//
// A stalled job is claimed again even when its lost run was the last
// allowed attempt, so Attempts can end at MaxAttempts+1. The consumer then
// treats any failure of that run as final.
func ClaimJob(ctx context.Context, db *gorm.DB, queue string, now time.Time, lease time.Duration) (*domain.Job, error) {
	db = db.WithContext(ctx)
	for range 3 {
		var cand domain.Job
		err := db.
			Where("queue = ? AND ((status = ? AND run_at <= ?) OR (status = ? AND locked_until < ?))",
				queue, domain.JobWaiting, now, domain.JobActive, now).
			Order("run_at ASC, created_at ASC").
			First(&cand).Error
		if err != nil {
			return nil, err
		}

		until := now.Add(lease)
		res := db.Model(&domain.Job{}).
			Where("id = ? AND status = ? AND attempts = ?", cand.ID, cand.Status, cand.Attempts).
			Updates(map[string]any{
				"status":       domain.JobActive,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_until": until,
				"updated_at":   now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			cand.Status = domain.JobActive
			cand.Attempts++
			cand.LockedUntil = &until
			cand.UpdatedAt = now
			return &cand, nil
		}
		// another consumer won this row; look again
	}
	return nil, ErrNotFound
}

// ExtendLease pushes the lease of an active job forward. It returns
// ErrNotFound if the job is no longer active.
func ExtendLease(ctx context.Context, db *gorm.DB, id string, until time.Time) error {
	res := db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, domain.JobActive).
		Update("locked_until", until)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteJob marks an active job completed and stores its result.
func CompleteJob(ctx context.Context, db *gorm.DB, id, result string, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.JobCompleted,
			"result":       result,
			"last_error":   "",
			"locked_until": nil,
			"finished_at":  now,
			"updated_at":   now,
		}).Error
}

// RetryJob returns a job to waiting, runnable again at runAt.
func RetryJob(ctx context.Context, db *gorm.DB, id, lastErr string, runAt, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.JobWaiting,
			"last_error":   lastErr,
			"run_at":       runAt,
			"locked_until": nil,
			"updated_at":   now,
		}).Error
}

// ReleaseJob hands an active job back to waiting without charging the
// attempt it was claimed with. Used when a consumer shuts down mid-run.
func ReleaseJob(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, domain.JobActive).
		Updates(map[string]any{
			"status":       domain.JobWaiting,
			"attempts":     gorm.Expr("MAX(attempts - 1, 0)"),
			"run_at":       now,
			"locked_until": nil,
			"updated_at":   now,
		}).Error
}

// FailJob marks a job permanently failed.
func FailJob(ctx context.Context, db *gorm.DB, id, lastErr string, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.JobFailed,
			"last_error":   lastErr,
			"locked_until": nil,
			"finished_at":  now,
			"updated_at":   now,
		}).Error
}

// ListJobs returns the jobs on queue, optionally filtered by status, oldest
// first, capped at limit.
func ListJobs(ctx context.Context, db *gorm.DB, queue string, status domain.JobStatus, limit int) ([]domain.Job, error) {
	q := db.WithContext(ctx).Where("queue = ?", queue)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Job
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}
