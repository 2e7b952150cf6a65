// Package services – Dispatcher
//
// Dispatcher backs the operator endpoints: on-demand job requests, the
// per-account overview, job inspection, queue depth, the registered
// schedules and the dead-letter log. On-demand
// requests go through the same queues as scheduled work, so a manual cost
// collection on a day the scheduler already covered collapses into the
// scheduled job unless the caller supplies its own idempotency key.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/queue"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// Queues lists every work queue in processing order.
var Queues = []string{
	domain.QueueMetaScheduler,
	domain.QueueCostCollection,
	domain.QueueInventoryScan,
	domain.QueueDiscrepancyAnalyze,
}

// AccountOverview summarizes the stored state of one account.
type AccountOverview struct {
	AccountID     string               `json:"accountId"`
	RoleARN       string               `json:"roleArn"`
	LatestCosts   *domain.CostSnapshot `json:"latestCosts,omitempty"`
	ResourceCount int64                `json:"resourceCount"`
	LastScanAt    *time.Time           `json:"lastScanAt,omitempty"`
	OpenFindings  int                  `json:"openFindings"`
}

// QueueDepth is the job count per status of one queue.
type QueueDepth struct {
	Queue  string                     `json:"queue"`
	Counts map[domain.JobStatus]int64 `json:"counts"`
}

// Dispatcher implements the operator use-cases.
type Dispatcher struct {
	DB        *gorm.DB
	Queue     *queue.Queue
	Inventory *InventoryScanner
	Now       func() time.Time
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(db *gorm.DB, q *queue.Queue, inv *InventoryScanner) *Dispatcher {
	return &Dispatcher{DB: db, Queue: q, Inventory: inv}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) requireAccount(ctx context.Context, accountID string) (*domain.AccountConfig, error) {
	c, err := repo.GetAccountConfig(ctx, d.DB, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAccountNotConfigured
	}
	return c, err
}

// RequestCosts enqueues a cost collection for accountID. An empty key uses
// the same per-day key as the scheduler.
func (d *Dispatcher) RequestCosts(ctx context.Context, accountID, key string) (*domain.Job, bool, error) {
	if _, err := d.requireAccount(ctx, accountID); err != nil {
		return nil, false, err
	}
	if key == "" {
		key = CostCollectionKey(accountID, dayKey(d.now()))
	}
	return d.Queue.Enqueue(ctx, domain.QueueCostCollection, domain.AccountPayload{AccountID: accountID},
		queue.EnqueueOptions{Name: domain.QueueCostCollection, IdempotencyKey: key})
}

// RequestScan enqueues an inventory scan for accountID. A non-empty key
// overrides the scanner's own deduplication.
func (d *Dispatcher) RequestScan(ctx context.Context, accountID, key string) (*domain.Job, bool, error) {
	if _, err := d.requireAccount(ctx, accountID); err != nil {
		return nil, false, err
	}
	if key == "" {
		return d.Inventory.EnqueueScan(ctx, accountID)
	}
	return d.Queue.Enqueue(ctx, domain.QueueInventoryScan, domain.AccountPayload{AccountID: accountID},
		queue.EnqueueOptions{Name: domain.QueueInventoryScan, IdempotencyKey: key})
}

// Overview returns the configuration, latest snapshot, inventory size and
// open finding count of accountID.
func (d *Dispatcher) Overview(ctx context.Context, accountID string) (*AccountOverview, error) {
	cfg, err := d.requireAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := &AccountOverview{AccountID: cfg.AccountID, RoleARN: cfg.RoleARN}

	snap, err := repo.LatestCostSnapshot(ctx, d.DB, accountID)
	switch {
	case err == nil:
		out.LatestCosts = snap
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	if out.ResourceCount, out.LastScanAt, err = repo.ResourceStats(ctx, d.DB, accountID); err != nil {
		return nil, err
	}

	open, err := repo.ListDiscrepancies(ctx, d.DB, accountID, domain.StatusActive)
	if err != nil {
		return nil, err
	}
	out.OpenFindings = len(open)
	return out, nil
}

// QueueDepths reports job counts for every work queue.
func (d *Dispatcher) QueueDepths(ctx context.Context) ([]QueueDepth, error) {
	out := make([]QueueDepth, 0, len(Queues))
	for _, name := range Queues {
		counts, err := d.Queue.Stats(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, QueueDepth{Queue: name, Counts: counts})
	}
	return out, nil
}

// DeadLetters returns recorded dead letters, newest first, optionally for a
// single queue.
func (d *Dispatcher) DeadLetters(ctx context.Context, queueName string, limit int) ([]domain.DeadLetter, error) {
	return repo.ListDeadLetters(ctx, d.DB, queueName, limit)
}

// Job returns the job with id.
func (d *Dispatcher) Job(ctx context.Context, id string) (*domain.Job, error) {
	j, err := repo.GetJob(ctx, d.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return j, err
}

// Jobs lists the jobs of one work queue, oldest first. An empty status
// lists every state.
func (d *Dispatcher) Jobs(ctx context.Context, queueName string, status domain.JobStatus, limit int) ([]domain.Job, error) {
	if !slices.Contains(Queues, queueName) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, queueName)
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobStatus, status)
	}
	return repo.ListJobs(ctx, d.DB, queueName, status, limit)
}

// Schedules returns the recurring triggers registered at startup.
func (d *Dispatcher) Schedules(ctx context.Context) ([]domain.Schedule, error) {
	return repo.ListSchedules(ctx, d.DB)
}
