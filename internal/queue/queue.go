// Package queue implements a durable job queue on top of the relational
// store. Jobs are rows in the jobs table; consumers claim them with a lease,
// run a handler, and then complete, reschedule with exponential backoff, or
// dead-letter them.
//
// Delivery is at-least-once. A consumer that dies mid-run leaves its job
// active with a lease that eventually expires, after which another consumer
// reclaims it. Handlers must therefore be safe to repeat.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// RetryPolicy is the default retry envelope of one queue.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// EnqueueOptions tunes a single Enqueue call. Zero values fall back to the
// queue's RetryPolicy.
type EnqueueOptions struct {
	Name           string        // job name; defaults to the queue name
	IdempotencyKey string        // empty means no deduplication
	Attempts       int           // total attempts, including the first
	Backoff        time.Duration // base retry delay
	Delay          time.Duration // run no earlier than now+Delay
}

// Queue enqueues and consumes jobs. Zero-valued optional fields are usable.
type Queue struct {
	DB       *gorm.DB
	Sink     DeadLetterSink
	Policies map[string]RetryPolicy

	// Now is the clock; nil means time.Now().UTC().
	Now func() time.Time

	mu   sync.Mutex
	wake map[string]chan struct{}
}

// New returns a Queue writing dead letters to sink.
func New(db *gorm.DB, sink DeadLetterSink, policies map[string]RetryPolicy) *Queue {
	if policies == nil {
		policies = map[string]RetryPolicy{}
	}
	return &Queue{DB: db, Sink: sink, Policies: policies}
}

func (q *Queue) now() time.Time {
	if q.Now != nil {
		return q.Now().UTC()
	}
	return time.Now().UTC()
}

// Enqueue stores a new job on queue carrying payload encoded as JSON.
//
// When opts.IdempotencyKey is set and a job with that key on the same queue
// is waiting, active or completed, no job is created: the existing job is
// returned and created is false. Failed jobs release their key.
func (q *Queue) Enqueue(ctx context.Context, queue string, payload any, opts EnqueueOptions) (job *domain.Job, created bool, err error) {
	if strings.TrimSpace(queue) == "" {
		return nil, false, errors.New("queue name is empty")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("encode payload: %w", err)
	}

	pol := q.Policies[queue]
	attempts := firstPositive(opts.Attempts, pol.Attempts, 1)
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = pol.Backoff
	}
	name := opts.Name
	if name == "" {
		name = queue
	}

	now := q.now()
	j := &domain.Job{
		ID:          uuid.NewString(),
		Queue:       queue,
		Name:        name,
		Payload:     raw,
		Status:      domain.JobWaiting,
		MaxAttempts: attempts,
		BackoffMS:   backoff.Milliseconds(),
		RunAt:       now.Add(opts.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.IdempotencyKey != "" {
		key := opts.IdempotencyKey
		j.IdempotencyKey = &key
	}

	stored, err := repo.InsertJob(ctx, q.DB, j)
	if errors.Is(err, repo.ErrDuplicate) {
		return stored, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	q.signal(queue)
	return stored, true, nil
}

// Stats returns the number of jobs on queue by status.
func (q *Queue) Stats(ctx context.Context, queue string) (map[domain.JobStatus]int64, error) {
	return repo.QueueCounts(ctx, q.DB, queue)
}

// wakeup returns the notification channel of queue, creating it on demand.
func (q *Queue) wakeup(queue string) chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.wake == nil {
		q.wake = make(map[string]chan struct{})
	}
	ch, ok := q.wake[queue]
	if !ok {
		ch = make(chan struct{}, 1)
		q.wake[queue] = ch
	}
	return ch
}

// signal nudges one idle consumer of queue in this process.
func (q *Queue) signal(queue string) {
	select {
	case q.wakeup(queue) <- struct{}{}:
	default:
	}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
