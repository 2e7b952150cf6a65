package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
	"github.com/tbourn/go-spend-reconciler/internal/provider/mockprovider"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

func res(service, id, region, state string) provider.Resource {
	return provider.Resource{Service: service, ResourceID: id, Region: region, State: state}
}

func TestScan_MockProviderEndToEnd(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	q := newTestQueue(db)
	mock := mockprovider.Provider{}
	s := NewInventoryScanner(db, mock, mock, q, 4)

	out, err := s.Scan(context.Background(), "acct")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out.Records != 4 || out.ProviderAccountID != mockprovider.AccountID || len(out.FailedRegions) != 0 {
		t.Fatalf("unexpected result: %+v", out)
	}
	recs, _ := repo.ListResourceRecords(context.Background(), db, "acct")
	if len(recs) != 4 || recs[0].ProviderAccountID != mockprovider.AccountID {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if n := countJobs(t, db, domain.QueueDiscrepancyAnalyze); n != 1 {
		t.Fatalf("want 1 analysis job, got %d", n)
	}

	// full pipeline: costs, inventory, then analysis
	if _, err := NewCostCollector(db, mock, mock).Collect(context.Background(), "acct"); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	rep, err := NewEngine(db, nil).Reconcile(context.Background(), "acct")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	// idle volume, idle address, RDS billed without instances
	if rep.Inserted != 3 {
		t.Fatalf("want 3 findings, got %+v", rep)
	}
}

func TestScan_PartialRegionFailureKeepsSuccessfulRegions(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	cloud := &fakeCloud{
		regions: []string{"us-east-1", "eu-west-1", "ap-south-1"},
		regional: map[string][]provider.Resource{
			"us-east-1": {res(domain.ServiceEC2, "i-1", "us-east-1", "running")},
			"eu-west-1": {res(domain.ServiceEBS, "vol-1", "eu-west-1", "available")},
		},
		regionErr: map[string]error{"ap-south-1": errors.New("opt-in required")},
		global:    []provider.Resource{res(domain.ServiceS3, "bucket-a", "us-east-1", "available")},
	}
	s := NewInventoryScanner(db, &fakeBroker{}, cloud, newTestQueue(db), 2)

	out, err := s.Scan(context.Background(), "acct")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out.Records != 3 || len(out.FailedRegions) != 1 || out.FailedRegions[0] != "ap-south-1" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestScan_AllRegionsFailedLeavesSnapshot(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	prior := []domain.ResourceRecord{{Service: domain.ServiceEBS, ResourceID: "vol-keep", Region: "us-east-1", State: "available"}}
	if err := repo.ReplaceResourceRecords(context.Background(), db, "acct", prior); err != nil {
		t.Fatalf("seed: %v", err)
	}
	boom := errors.New("network unreachable")
	cloud := &fakeCloud{
		regions:   []string{"us-east-1", "eu-west-1"},
		regionErr: map[string]error{"us-east-1": boom, "eu-west-1": boom},
	}
	s := NewInventoryScanner(db, &fakeBroker{}, cloud, newTestQueue(db), 2)

	if _, err := s.Scan(context.Background(), "acct"); !errors.Is(err, ErrAllRegionsFailed) {
		t.Fatalf("want ErrAllRegionsFailed, got %v", err)
	}
	recs, _ := repo.ListResourceRecords(context.Background(), db, "acct")
	if len(recs) != 1 || recs[0].ResourceID != "vol-keep" {
		t.Fatalf("snapshot must be untouched, got %+v", recs)
	}
	if n := countJobs(t, db, domain.QueueDiscrepancyAnalyze); n != 0 {
		t.Fatalf("analysis must not be chained on failure, got %d jobs", n)
	}
}

func TestScan_GlobalFailureFailsJob(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	cloud := &fakeCloud{regions: []string{"us-east-1"}, globalErr: errors.New("list buckets denied")}
	s := NewInventoryScanner(db, &fakeBroker{}, cloud, newTestQueue(db), 1)

	if _, err := s.Scan(context.Background(), "acct"); err == nil {
		t.Fatalf("expected error when global scan fails")
	}
}

func TestScan_EmptyAccountStillChainsAnalysis(t *testing.T) {
	db := newTestDB(t)
	configureAccount(t, db, "acct")
	s := NewInventoryScanner(db, &fakeBroker{}, &fakeCloud{regions: []string{"us-east-1"}}, newTestQueue(db), 1)

	out, err := s.Scan(context.Background(), "acct")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out.Records != 0 || out.AnalysisJobID == "" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestScan_MissingConfig(t *testing.T) {
	db := newTestDB(t)
	s := NewInventoryScanner(db, &fakeBroker{}, &fakeCloud{}, newTestQueue(db), 1)
	if _, err := s.Handle(context.Background(), &domain.Job{Payload: []byte(`{"accountId":"ghost"}`)}); !errors.Is(err, ErrAccountNotConfigured) {
		t.Fatalf("want ErrAccountNotConfigured, got %v", err)
	}
}

func TestEnqueueScan_DailyIdempotency(t *testing.T) {
	db := newTestDB(t)
	s := NewInventoryScanner(db, &fakeBroker{}, &fakeCloud{}, newTestQueue(db), 1)
	s.Now = fixedClock(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC))

	_, created1, _ := s.EnqueueScan(context.Background(), "acct")
	_, created2, _ := s.EnqueueScan(context.Background(), "acct")
	if !created1 || !created2 {
		t.Fatalf("without daily idempotency every request is queued")
	}

	s.DailyIdempotency = true
	_, created3, err := s.EnqueueScan(context.Background(), "acct")
	if err != nil || !created3 {
		t.Fatalf("first keyed request: created=%v err=%v", created3, err)
	}
	_, created4, _ := s.EnqueueScan(context.Background(), "acct")
	if created4 {
		t.Fatalf("second keyed request on the same day should collapse")
	}
	if n := countJobs(t, db, domain.QueueInventoryScan); n != 3 {
		t.Fatalf("want 3 scan jobs, got %d", n)
	}
}
