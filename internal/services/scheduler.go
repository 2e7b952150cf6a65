// Package services – Scheduler
//
// The Scheduler owns the daily fan-out. At process start it clears any
// previously registered trigger and registers exactly one cron entry. Each
// tick enqueues a single meta-scheduler job keyed by the UTC day, so a
// restart or a second replica ticking on the same day collapses into one
// job. That job streams every configured account page by page and enqueues
// one cost-collection job per account, again keyed by account and day.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/queue"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// MetaTriggerName names the daily trigger job and its schedule row.
const MetaTriggerName = "meta-schedule-trigger"

// ScheduleResult is stored on a completed meta-scheduler job.
type ScheduleResult struct {
	Date       string `json:"date"`
	Scheduled  int    `json:"scheduled"`
	Duplicates int    `json:"duplicates"`
}

// Scheduler registers the daily trigger and fans it out to accounts.
type Scheduler struct {
	// DB is the GORM handle used for account streaming and schedule rows.
	DB *gorm.DB
	// Queue receives trigger and cost-collection jobs.
	Queue *queue.Queue
	// Cron runs the trigger; the caller starts and stops it.
	Cron *cron.Cron
	// Spec is the 5-field cron expression, evaluated in the Cron's location.
	Spec string
	// PageSize bounds how many account ids are held in memory at once.
	PageSize int
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	mu      sync.Mutex
	entries []cron.EntryID
}

// NewScheduler constructs a Scheduler with defaults for missing settings.
func NewScheduler(db *gorm.DB, q *queue.Queue, c *cron.Cron, spec string, pageSize int) *Scheduler {
	if spec == "" {
		spec = "0 0 * * *"
	}
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Scheduler{DB: db, Queue: q, Cron: c, Spec: spec, PageSize: pageSize}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RegisterSchedules removes every trigger registered earlier and installs
// the daily one. Calling it repeatedly leaves exactly one trigger.
func (s *Scheduler) RegisterSchedules(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entries {
		s.Cron.Remove(id)
	}
	s.entries = nil

	row := domain.Schedule{Name: MetaTriggerName, Queue: domain.QueueMetaScheduler, Spec: s.Spec}
	if err := repo.ReplaceSchedules(ctx, s.DB, []domain.Schedule{row}); err != nil {
		return fmt.Errorf("replace schedules: %w", err)
	}

	id, err := s.Cron.AddFunc(s.Spec, s.fire)
	if err != nil {
		return fmt.Errorf("register %q: %w", s.Spec, err)
	}
	s.entries = append(s.entries, id)

	log.Info().Str("spec", s.Spec).Str("queue", domain.QueueMetaScheduler).Msg("daily trigger registered")
	return nil
}

func (s *Scheduler) fire() {
	job, created, err := s.Trigger(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("daily trigger enqueue failed")
		return
	}
	log.Info().Str("job_id", job.ID).Bool("created", created).Msg("daily trigger fired")
}

// Trigger enqueues today's meta-scheduler job. A second call on the same
// UTC day returns the existing job and created=false.
func (s *Scheduler) Trigger(ctx context.Context) (*domain.Job, bool, error) {
	return s.Queue.Enqueue(ctx, domain.QueueMetaScheduler, struct{}{}, queue.EnqueueOptions{
		Name:           MetaTriggerName,
		IdempotencyKey: MetaTriggerName + ":" + dayKey(s.now()),
	})
}

// Handle is the meta-scheduler queue handler. It streams account ids and
// enqueues one cost-collection job per account for the trigger's UTC day,
// so a tick processed after midnight still covers the day it fired on.
func (s *Scheduler) Handle(ctx context.Context, job *domain.Job) (any, error) {
	day := s.triggerDay(job)

	tr := otel.Tracer("services/scheduler")
	ctx, span := tr.Start(ctx, "Scheduler.Handle", trace.WithAttributes(attribute.String("date", day)))
	defer span.End()

	res := ScheduleResult{Date: day}
	err := repo.StreamAccountIDs(ctx, s.DB, s.PageSize, func(ids []string) error {
		for _, id := range ids {
			_, created, err := s.Queue.Enqueue(ctx, domain.QueueCostCollection, domain.AccountPayload{AccountID: id}, queue.EnqueueOptions{
				Name:           domain.QueueCostCollection,
				IdempotencyKey: CostCollectionKey(id, day),
			})
			if err != nil {
				return fmt.Errorf("enqueue cost collection for %s: %w", id, err)
			}
			if created {
				res.Scheduled++
			} else {
				res.Duplicates++
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("scheduled", res.Scheduled), attribute.Int("duplicates", res.Duplicates))
	zerolog.Ctx(ctx).Info().
		Int("scheduled", res.Scheduled).
		Int("duplicates", res.Duplicates).
		Msg("cost collection fan-out done")
	return res, nil
}

// triggerDay returns the day a trigger job was fired for: the date in its
// idempotency key, else its creation day, else today.
func (s *Scheduler) triggerDay(job *domain.Job) string {
	if job == nil {
		return dayKey(s.now())
	}
	if job.IdempotencyKey != nil {
		if day, ok := strings.CutPrefix(*job.IdempotencyKey, MetaTriggerName+":"); ok {
			if _, err := time.Parse(time.DateOnly, day); err == nil {
				return day
			}
		}
	}
	if !job.CreatedAt.IsZero() {
		return dayKey(job.CreatedAt)
	}
	return dayKey(s.now())
}

// CostCollectionKey is the idempotency key of the cost job of accountID on day.
func CostCollectionKey(accountID, day string) string {
	return domain.QueueCostCollection + ":" + accountID + ":" + day
}
