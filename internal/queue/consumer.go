package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// Handler processes one job. The returned result is stored as JSON on the
// job when it completes. The context carries a job-scoped zerolog logger
// (see zerolog.Ctx).
type Handler func(ctx context.Context, job *domain.Job) (any, error)

// ConsumerOptions controls one Consume call.
type ConsumerOptions struct {
	Concurrency  int           // parallel handlers; < 1 means 1
	PollInterval time.Duration // idle wait between empty polls; <= 0 means 1s
	Lease        time.Duration // claim lease, renewed by heartbeat; <= 0 means 1m
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.Lease <= 0 {
		o.Lease = time.Minute
	}
	return o
}

// Consume runs opts.Concurrency workers on queue until ctx is cancelled and
// every in-flight handler has returned. It always returns ctx.Err().
func (q *Queue) Consume(ctx context.Context, queue string, opts ConsumerOptions, h Handler) error {
	opts = opts.withDefaults()
	wake := q.wakeup(queue)

	log.Info().
		Str("queue", queue).
		Int("concurrency", opts.Concurrency).
		Msg("consumer started")

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx, queue, opts, h, wake)
		}()
	}
	wg.Wait()

	log.Info().Str("queue", queue).Msg("consumer stopped")
	return ctx.Err()
}

func (q *Queue) work(ctx context.Context, queue string, opts ConsumerOptions, h Handler, wake chan struct{}) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-timer.C:
		}

		// drain everything runnable before sleeping again
		for ctx.Err() == nil {
			job, err := repo.ClaimJob(ctx, q.DB, queue, q.now(), opts.Lease)
			if errors.Is(err, repo.ErrNotFound) {
				break
			}
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("queue", queue).Msg("claim failed")
				}
				break
			}
			q.process(ctx, queue, opts, h, job)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(opts.PollInterval)
	}
}

// process runs h for one claimed job and records the outcome.
func (q *Queue) process(ctx context.Context, queue string, opts ConsumerOptions, h Handler, job *domain.Job) {
	start := time.Now()
	jobsInflight.WithLabelValues(queue).Inc()
	defer jobsInflight.WithLabelValues(queue).Dec()

	lg := jobLogger(queue, job)
	jctx := lg.WithContext(ctx)

	tr := otel.Tracer("queue/" + queue)
	jctx, span := tr.Start(jctx, job.Name,
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.queue", queue),
			attribute.Int("job.attempt", job.Attempts),
		),
	)
	defer span.End()

	hbCtx, stopHB := context.WithCancel(jctx)
	var hbDone sync.WaitGroup
	hbDone.Add(1)
	go func() {
		defer hbDone.Done()
		q.heartbeat(hbCtx, job.ID, opts.Lease)
	}()

	result, err := invoke(jctx, h, job)
	stopHB()
	hbDone.Wait()

	jobDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())

	// Outcome writes must land even when the consumer is shutting down.
	wctx := context.WithoutCancel(jctx)
	now := q.now()

	switch {
	case err == nil:
		enc, _ := json.Marshal(result)
		if werr := repo.CompleteJob(wctx, q.DB, job.ID, string(enc), now); werr != nil {
			lg.Error().Err(werr).Msg("complete job failed")
		}
		jobsProcessed.WithLabelValues(queue, outcomeCompleted).Inc()
		lg.Info().Dur("took", time.Since(start)).Msg("job completed")

	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		if werr := repo.ReleaseJob(wctx, q.DB, job.ID, now); werr != nil {
			lg.Error().Err(werr).Msg("release job failed")
		}
		jobsProcessed.WithLabelValues(queue, outcomeReleased).Inc()
		lg.Warn().Msg("job released on shutdown")

	case job.Attempts < job.MaxAttempts:
		delay := Backoff(job.Backoff(), job.Attempts)
		span.RecordError(err)
		if werr := repo.RetryJob(wctx, q.DB, job.ID, err.Error(), now.Add(delay), now); werr != nil {
			lg.Error().Err(werr).Msg("reschedule job failed")
		}
		jobsProcessed.WithLabelValues(queue, outcomeRetried).Inc()
		lg.Warn().Err(err).Dur("retry_in", delay).Msg("job failed, will retry")

	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if werr := repo.FailJob(wctx, q.DB, job.ID, err.Error(), now); werr != nil {
			lg.Error().Err(werr).Msg("fail job failed")
		}
		q.deadLetter(wctx, lg, queue, job, err, now)
		jobsProcessed.WithLabelValues(queue, outcomeDeadLettered).Inc()
		jobsDeadLettered.WithLabelValues(queue).Inc()
	}
}

// deadLetter hands a permanently failed job to the sink. A sink failure is
// logged and never replaces the job's own error.
func (q *Queue) deadLetter(ctx context.Context, lg zerolog.Logger, queue string, job *domain.Job, cause error, now time.Time) {
	lg.Error().Err(cause).Int("attempts", job.Attempts).Msg("job exhausted attempts, dead-lettering")
	if q.Sink == nil {
		return
	}
	dl := domain.DeadLetter{
		Queue:    queue,
		JobID:    job.ID,
		Payload:  job.Payload,
		Reason:   cause.Error(),
		Attempts: job.Attempts,
		FailedAt: now,
	}
	if err := q.Sink.Record(ctx, dl); err != nil {
		lg.Error().Err(err).AnErr("job_error", cause).Msg("dead-letter write failed")
	}
}

// heartbeat renews the lease of jobID every lease/3 until ctx ends or the job
// stops being active.
func (q *Queue) heartbeat(ctx context.Context, jobID string, lease time.Duration) {
	every := lease / 3
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := repo.ExtendLease(ctx, q.DB, jobID, q.now().Add(lease))
			if errors.Is(err, repo.ErrNotFound) {
				return
			}
			if err != nil && ctx.Err() == nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("lease renewal failed")
			}
		}
	}
}

// invoke calls h and turns a panic into an error.
func invoke(ctx context.Context, h Handler, job *domain.Job) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(ctx).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panic recovered")
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, job)
}

// jobLogger builds the job-scoped logger. account_id is added when the
// payload carries one.
func jobLogger(queue string, job *domain.Job) zerolog.Logger {
	c := log.With().
		Str("queue", queue).
		Str("job_id", job.ID).
		Str("job_name", job.Name).
		Int("attempt", job.Attempts)
	var p domain.AccountPayload
	if json.Unmarshal(job.Payload, &p) == nil && p.AccountID != "" {
		c = c.Str("account_id", p.AccountID)
	}
	return c.Logger()
}
