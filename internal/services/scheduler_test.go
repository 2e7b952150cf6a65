package services

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

func fixedClock(ts time.Time) func() time.Time { return func() time.Time { return ts } }

func TestScheduler_RegisterSchedulesIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	c := cron.New(cron.WithLocation(time.UTC))
	s := NewScheduler(db, newTestQueue(db), c, "", 0)

	for i := 0; i < 3; i++ {
		if err := s.RegisterSchedules(context.Background()); err != nil {
			t.Fatalf("RegisterSchedules: %v", err)
		}
	}
	if n := len(c.Entries()); n != 1 {
		t.Fatalf("want 1 cron entry, got %d", n)
	}
	rows, err := repo.ListSchedules(context.Background(), db)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != MetaTriggerName || rows[0].Spec != "0 0 * * *" {
		t.Fatalf("unexpected schedules: %+v", rows)
	}
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduler(db, newTestQueue(db), cron.New(), "not a cron", 10)
	if err := s.RegisterSchedules(context.Background()); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestScheduler_TriggerOncePerDay(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduler(db, newTestQueue(db), cron.New(), "", 10)
	s.Now = fixedClock(time.Date(2025, 3, 15, 0, 0, 5, 0, time.UTC))

	first, created, err := s.Trigger(context.Background())
	if err != nil || !created {
		t.Fatalf("first trigger: created=%v err=%v", created, err)
	}
	second, created, err := s.Trigger(context.Background())
	if err != nil || created {
		t.Fatalf("second trigger: created=%v err=%v", created, err)
	}
	if first.ID != second.ID {
		t.Fatalf("second trigger should return the existing job")
	}
	if got := *first.IdempotencyKey; got != "meta-schedule-trigger:2025-03-15" {
		t.Fatalf("key = %q", got)
	}

	s.Now = fixedClock(time.Date(2025, 3, 16, 0, 0, 5, 0, time.UTC))
	if _, created, _ := s.Trigger(context.Background()); !created {
		t.Fatalf("next day should create a new trigger")
	}
}

func TestScheduler_FanOutDeduplicatesPerAccountAndDay(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		configureAccount(t, db, id)
	}
	// page size smaller than the account count exercises keyset paging
	s := NewScheduler(db, newTestQueue(db), cron.New(), "", 2)
	s.Now = fixedClock(time.Date(2025, 3, 15, 0, 0, 5, 0, time.UTC))

	res, err := s.Handle(context.Background(), &domain.Job{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if r := res.(ScheduleResult); r.Scheduled != 5 || r.Duplicates != 0 || r.Date != "2025-03-15" {
		t.Fatalf("first run: %+v", r)
	}

	res, err = s.Handle(context.Background(), &domain.Job{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if r := res.(ScheduleResult); r.Scheduled != 0 || r.Duplicates != 5 {
		t.Fatalf("second run: %+v", r)
	}
	if n := countJobs(t, db, domain.QueueCostCollection); n != 5 {
		t.Fatalf("want 5 cost jobs, got %d", n)
	}

	job, err := repo.ListJobs(context.Background(), db, domain.QueueCostCollection, "", 1)
	if err != nil || len(job) != 1 {
		t.Fatalf("ListJobs: %v", err)
	}
	if k := *job[0].IdempotencyKey; k[:len("cost-collection:")] != "cost-collection:" {
		t.Fatalf("unexpected key %q", k)
	}
}

func TestScheduler_FanOutUsesTriggerDay(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "a1")
	s := NewScheduler(db, newTestQueue(db), cron.New(), "", 0)

	s.Now = fixedClock(time.Date(2025, 3, 15, 23, 59, 50, 0, time.UTC))
	trigger, _, err := s.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	// processed after midnight
	s.Now = fixedClock(time.Date(2025, 3, 16, 0, 0, 20, 0, time.UTC))
	res, err := s.Handle(context.Background(), trigger)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if r := res.(ScheduleResult); r.Date != "2025-03-15" || r.Scheduled != 1 {
		t.Fatalf("fan-out day: %+v", r)
	}
	jobs, _ := repo.ListJobs(context.Background(), db, domain.QueueCostCollection, "", 0)
	if len(jobs) != 1 || *jobs[0].IdempotencyKey != CostCollectionKey("a1", "2025-03-15") {
		t.Fatalf("cost job = %+v", jobs)
	}

	// without a key the creation day is used
	res, _ = s.Handle(context.Background(), &domain.Job{CreatedAt: time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC)})
	if r := res.(ScheduleResult); r.Date != "2025-03-14" {
		t.Fatalf("created-at day: %+v", r)
	}
	bad := "meta-schedule-trigger:not-a-day"
	res, _ = s.Handle(context.Background(), &domain.Job{IdempotencyKey: &bad})
	if r := res.(ScheduleResult); r.Date != "2025-03-16" {
		t.Fatalf("fallback day: %+v", r)
	}
}

func TestCostCollectionKey(t *testing.T) {
	if got := CostCollectionKey("acct", "2025-03-15"); got != "cost-collection:acct:2025-03-15" {
		t.Fatalf("key = %q", got)
	}
}
