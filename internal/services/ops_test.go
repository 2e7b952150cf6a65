package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider/mockprovider"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	db := newTestDB(t)
	q := newTestQueue(db)
	mp := mockprovider.Provider{}
	d := NewDispatcher(db, q, NewInventoryScanner(db, mp, mp, q, 2))
	d.Now = fixedClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	return d
}

func TestDispatcher_RequestCostsSharesSchedulerKey(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	if _, _, err := d.RequestCosts(ctx, "acct-1", ""); !errors.Is(err, ErrAccountNotConfigured) {
		t.Fatalf("unconfigured account: %v", err)
	}
	configureAccount(t, d.DB, "acct-1")

	j, created, err := d.RequestCosts(ctx, "acct-1", "")
	if err != nil || !created {
		t.Fatalf("first request: created=%v err=%v", created, err)
	}
	if j.IdempotencyKey == nil || *j.IdempotencyKey != CostCollectionKey("acct-1", "2025-03-10") {
		t.Fatalf("key = %v", j.IdempotencyKey)
	}
	again, created, err := d.RequestCosts(ctx, "acct-1", "")
	if err != nil || created || again.ID != j.ID {
		t.Fatalf("same-day request should collapse: created=%v err=%v", created, err)
	}

	// caller key bypasses the daily key
	if _, created, err := d.RequestCosts(ctx, "acct-1", "manual-1"); err != nil || !created {
		t.Fatalf("custom key: created=%v err=%v", created, err)
	}
	if n := countJobs(t, d.DB, domain.QueueCostCollection); n != 2 {
		t.Fatalf("cost jobs = %d, want 2", n)
	}
}

func TestDispatcher_RequestScan(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	configureAccount(t, d.DB, "acct-1")

	for i := 0; i < 2; i++ {
		if _, created, err := d.RequestScan(ctx, "acct-1", ""); err != nil || !created {
			t.Fatalf("scan %d: created=%v err=%v", i, created, err)
		}
	}
	if _, created, err := d.RequestScan(ctx, "acct-1", "k1"); err != nil || !created {
		t.Fatalf("keyed scan: created=%v err=%v", created, err)
	}
	if _, created, _ := d.RequestScan(ctx, "acct-1", "k1"); created {
		t.Fatalf("repeated key should collapse")
	}
	if n := countJobs(t, d.DB, domain.QueueInventoryScan); n != 3 {
		t.Fatalf("scan jobs = %d, want 3", n)
	}
}

func TestDispatcher_Overview(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	if _, err := d.Overview(ctx, "ghost"); !errors.Is(err, ErrAccountNotConfigured) {
		t.Fatalf("ghost: %v", err)
	}

	configureAccount(t, d.DB, "acct-1")
	ov, err := d.Overview(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.LatestCosts != nil || ov.ResourceCount != 0 || ov.LastScanAt != nil || ov.OpenFindings != 0 {
		t.Fatalf("fresh account overview = %+v", ov)
	}

	mp := mockprovider.Provider{}
	if _, err := NewCostCollector(d.DB, mp, mp).Collect(ctx, "acct-1"); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if _, err := d.Inventory.Scan(ctx, "acct-1"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, err := NewEngine(d.DB, nil).Reconcile(ctx, "acct-1"); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	ov, err = d.Overview(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if ov.LatestCosts == nil || ov.LatestCosts.TotalCost != 25.75 {
		t.Fatalf("latest costs = %+v", ov.LatestCosts)
	}
	if ov.ResourceCount != 4 || ov.LastScanAt == nil {
		t.Fatalf("inventory = %d, %v", ov.ResourceCount, ov.LastScanAt)
	}
	if ov.OpenFindings != 3 {
		t.Fatalf("open findings = %d, want 3", ov.OpenFindings)
	}
}

func TestDispatcher_QueueDepthsAndDeadLetters(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	configureAccount(t, d.DB, "acct-1")
	if _, _, err := d.RequestCosts(ctx, "acct-1", ""); err != nil {
		t.Fatal(err)
	}

	depths, err := d.QueueDepths(ctx)
	if err != nil {
		t.Fatalf("QueueDepths: %v", err)
	}
	if len(depths) != len(Queues) {
		t.Fatalf("depths = %d entries", len(depths))
	}
	for _, qd := range depths {
		want := int64(0)
		if qd.Queue == domain.QueueCostCollection {
			want = 1
		}
		if qd.Counts[domain.JobWaiting] != want {
			t.Fatalf("%s waiting = %d, want %d", qd.Queue, qd.Counts[domain.JobWaiting], want)
		}
	}

	for _, q := range []string{domain.QueueCostCollection, domain.QueueInventoryScan} {
		if err := repo.CreateDeadLetter(ctx, d.DB, &domain.DeadLetter{
			Queue: q, JobID: "j-" + q, Reason: "boom", Attempts: 3, FailedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatal(err)
		}
	}
	all, err := d.DeadLetters(ctx, "", 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("all dead letters = %d, %v", len(all), err)
	}
	one, err := d.DeadLetters(ctx, domain.QueueInventoryScan, 10)
	if err != nil || len(one) != 1 || one[0].JobID != "j-inventory-scan" {
		t.Fatalf("filtered dead letters = %+v, %v", one, err)
	}
}

func TestDispatcher_JobsAndSchedules(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	configureAccount(t, d.DB, "acct-1")
	j, _, err := d.RequestCosts(ctx, "acct-1", "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := d.Job(ctx, j.ID)
	if err != nil || got.Queue != domain.QueueCostCollection || got.Status != domain.JobWaiting {
		t.Fatalf("Job = %+v, %v", got, err)
	}
	if _, err := d.Job(ctx, "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("missing job: %v", err)
	}

	jobs, err := d.Jobs(ctx, domain.QueueCostCollection, domain.JobWaiting, 10)
	if err != nil || len(jobs) != 1 || jobs[0].ID != j.ID {
		t.Fatalf("Jobs = %+v, %v", jobs, err)
	}
	if done, _ := d.Jobs(ctx, domain.QueueCostCollection, domain.JobCompleted, 10); len(done) != 0 {
		t.Fatalf("completed filter leaked %d jobs", len(done))
	}
	if _, err := d.Jobs(ctx, "bogus", "", 10); !errors.Is(err, ErrUnknownQueue) {
		t.Fatalf("unknown queue: %v", err)
	}
	if _, err := d.Jobs(ctx, domain.QueueCostCollection, "stuck", 10); !errors.Is(err, ErrInvalidJobStatus) {
		t.Fatalf("bad status: %v", err)
	}

	if err := repo.ReplaceSchedules(ctx, d.DB, []domain.Schedule{
		{Name: MetaTriggerName, Queue: domain.QueueMetaScheduler, Spec: "0 0 * * *"},
	}); err != nil {
		t.Fatal(err)
	}
	ss, err := d.Schedules(ctx)
	if err != nil || len(ss) != 1 || ss[0].Spec != "0 0 * * *" {
		t.Fatalf("Schedules = %+v, %v", ss, err)
	}
}
