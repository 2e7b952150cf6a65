package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
	"github.com/tbourn/go-spend-reconciler/internal/provider/mockprovider"
	"github.com/tbourn/go-spend-reconciler/internal/queue"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

func TestBillingPeriod(t *testing.T) {
	period, start, end := BillingPeriod(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	if period != "2024-12" {
		t.Fatalf("period = %q", period)
	}
	if !start.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("bounds = [%v, %v)", start, end)
	}
}

func TestCollect_StoresSnapshot(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	broker := &fakeBroker{}
	c := NewCostCollector(db, broker, mockprovider.Provider{})
	c.Now = fixedClock(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))

	snap, err := c.Collect(context.Background(), "acct")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if snap.Period != "2025-03" || snap.Currency != "USD" || len(snap.Services) != 3 || snap.TotalCost != 25.75 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if broker.session != "reconciler-acct" || !strings.HasPrefix(broker.roleARN, "arn:aws:iam::") {
		t.Fatalf("broker called with %q / %q", broker.roleARN, broker.session)
	}

	// a second collection in the same month replaces the row
	if _, err := c.Collect(context.Background(), "acct"); err != nil {
		t.Fatalf("Collect again: %v", err)
	}
	var n int64
	db.Model(&domain.CostSnapshot{}).Count(&n)
	if n != 1 {
		t.Fatalf("want 1 snapshot row, got %d", n)
	}
}

func TestCollect_EmptyReportIsSuccess(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	c := NewCostCollector(db, &fakeBroker{}, &fakeCloud{costs: &provider.CostReport{}})

	snap, err := c.Collect(context.Background(), "acct")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if snap.Currency != "USD" || snap.TotalCost != 0 || len(snap.Services) != 0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	stored, err := repo.LatestCostSnapshot(context.Background(), db, "acct")
	if err != nil || stored.Services == nil {
		t.Fatalf("stored snapshot = %+v, %v", stored, err)
	}
}

func TestCollect_MissingConfigIsHardError(t *testing.T) {
	db := newTestDB(t)
	c := NewCostCollector(db, &fakeBroker{}, mockprovider.Provider{})
	if _, err := c.Collect(context.Background(), "ghost"); !errors.Is(err, ErrAccountNotConfigured) {
		t.Fatalf("want ErrAccountNotConfigured, got %v", err)
	}
}

func TestCollect_BrokerFailure(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	c := NewCostCollector(db, &fakeBroker{err: errors.New("access denied")}, mockprovider.Provider{})
	if _, err := c.Collect(context.Background(), "acct"); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("want broker error, got %v", err)
	}
}

func TestCostJob_FailingThreeTimesIsDeadLetteredOnce(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	cloud := &fakeCloud{costErr: errors.New("throttled by billing api")}
	c := NewCostCollector(db, &fakeBroker{}, cloud)
	q := newTestQueue(db)

	job, _, err := q.Enqueue(context.Background(), domain.QueueCostCollection, domain.AccountPayload{AccountID: "acct"}, queue.EnqueueOptions{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Consume(ctx, domain.QueueCostCollection, queue.ConsumerOptions{Concurrency: 2, PollInterval: 5 * time.Millisecond, Lease: time.Minute}, c.Handle)
	}()

	waitFor(t, 5*time.Second, func() bool {
		dls, _ := repo.ListDeadLetters(context.Background(), db, domain.QueueCostCollection, 0)
		return len(dls) > 0
	})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	dls, err := repo.ListDeadLetters(context.Background(), db, domain.QueueCostCollection, 0)
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(dls) != 1 {
		t.Fatalf("want exactly one dead letter, got %d", len(dls))
	}
	dl := dls[0]
	if dl.JobID != job.ID || dl.Attempts != 3 || !strings.Contains(dl.Reason, "throttled by billing api") {
		t.Fatalf("unexpected dead letter: %+v", dl)
	}
	var p domain.AccountPayload
	if err := json.Unmarshal(dl.Payload, &p); err != nil || p.AccountID != "acct" {
		t.Fatalf("payload not preserved: %s", dl.Payload)
	}
	if cloud.calls() != 3 {
		t.Fatalf("want 3 provider calls, got %d", cloud.calls())
	}
	got, _ := repo.GetJob(context.Background(), db, job.ID)
	if got.Status != domain.JobFailed {
		t.Fatalf("job status = %s", got.Status)
	}
}
