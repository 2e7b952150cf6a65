package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
	"github.com/tbourn/go-spend-reconciler/internal/queue"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
	"github.com/tbourn/go-spend-reconciler/internal/signal"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// shared-cache memory DBs report table locks instead of waiting
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestQueue(db *gorm.DB) *queue.Queue {
	return queue.New(db, queue.DBSink{DB: db}, map[string]queue.RetryPolicy{
		domain.QueueCostCollection:     {Attempts: 3, Backoff: time.Millisecond},
		domain.QueueInventoryScan:      {Attempts: 2, Backoff: time.Millisecond},
		domain.QueueDiscrepancyAnalyze: {Attempts: 3, Backoff: time.Millisecond},
		domain.QueueMetaScheduler:      {Attempts: 1, Backoff: time.Millisecond},
	})
}

func configureAccount(t *testing.T, db *gorm.DB, accountID string) {
	t.Helper()
	if _, err := repo.UpsertAccountConfig(context.Background(), db, accountID,
		"arn:aws:iam::111122223333:role/reader", "ext-"+accountID); err != nil {
		t.Fatalf("configure account: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func countJobs(t *testing.T, db *gorm.DB, q string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Job{}).Where("queue = ?", q).Count(&n).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	return n
}

// fakeCloud is a scriptable provider.CloudDataProvider.
type fakeCloud struct {
	mu sync.Mutex

	costs     *provider.CostReport
	costErr   error
	costCalls int

	identity  string
	regions   []string
	regional  map[string][]provider.Resource
	regionErr map[string]error
	global    []provider.Resource
	globalErr error
}

var _ provider.CloudDataProvider = (*fakeCloud)(nil)

func (f *fakeCloud) CostsByService(context.Context, provider.Credentials, time.Time, time.Time) (*provider.CostReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.costCalls++
	return f.costs, f.costErr
}

func (f *fakeCloud) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.costCalls
}

func (f *fakeCloud) AccountIdentity(context.Context, provider.Credentials) (string, error) {
	if f.identity == "" {
		return "999988887777", nil
	}
	return f.identity, nil
}

func (f *fakeCloud) Regions(context.Context, provider.Credentials) ([]string, error) {
	return f.regions, nil
}

func (f *fakeCloud) ScanRegion(_ context.Context, _ provider.Credentials, region string) ([]provider.Resource, error) {
	if err := f.regionErr[region]; err != nil {
		return nil, err
	}
	return f.regional[region], nil
}

func (f *fakeCloud) ScanGlobal(context.Context, provider.Credentials) ([]provider.Resource, error) {
	return f.global, f.globalErr
}

// fakeBroker hands out fixed credentials and remembers the last request.
type fakeBroker struct {
	mu      sync.Mutex
	roleARN string
	session string
	err     error
}

func (b *fakeBroker) AssumeRole(_ context.Context, roleARN, _, sessionName string) (provider.Credentials, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roleARN, b.session = roleARN, sessionName
	if b.err != nil {
		return provider.Credentials{}, b.err
	}
	return provider.Credentials{AccessKeyID: "AK", SecretAccessKey: "SK", SessionToken: "ST"}, nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []signal.Event
}

func (p *recordingPublisher) Publish(_ context.Context, accountID string, ev signal.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev.AccountID = accountID
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) last() (signal.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return signal.Event{}, false
	}
	return p.events[len(p.events)-1], true
}
