// Package services – InventoryScanner
//
// An inventory scan discovers every resource of an account and replaces the
// stored set wholesale. Regions are scanned concurrently, bounded by
// RegionParallelism, alongside the global (S3) discovery.
//
// Region failures are tolerated but never silent: successful regions are
// kept, failed ones are logged and reported in the job result. If every
// region failed, or the global scan failed, the job errors and the stored
// set is not touched, so missing data is never mistaken for an empty
// account. A successful scan always chains a discrepancy-analysis job.
package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
	"github.com/tbourn/go-spend-reconciler/internal/queue"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// InventoryResult is stored on a completed inventory-scan job.
type InventoryResult struct {
	ProviderAccountID string   `json:"providerAccountId"`
	Records           int      `json:"records"`
	Regions           int      `json:"regions"`
	FailedRegions     []string `json:"failedRegions"`
	AnalysisJobID     string   `json:"analysisJobId"`
}

// InventoryScanner runs inventory scans and chains analysis.
type InventoryScanner struct {
	DB       *gorm.DB
	Broker   provider.CredentialBroker
	Provider provider.CloudDataProvider
	Queue    *queue.Queue

	// RegionParallelism bounds concurrent region scans; < 1 means 1.
	RegionParallelism int
	// DailyIdempotency collapses EnqueueScan calls to one per account per UTC day.
	DailyIdempotency bool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewInventoryScanner constructs an InventoryScanner.
func NewInventoryScanner(db *gorm.DB, b provider.CredentialBroker, p provider.CloudDataProvider, q *queue.Queue, parallelism int) *InventoryScanner {
	return &InventoryScanner{DB: db, Broker: b, Provider: p, Queue: q, RegionParallelism: parallelism}
}

func (s *InventoryScanner) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// EnqueueScan requests an inventory scan of accountID. With
// DailyIdempotency set, a second request on the same UTC day returns the
// existing job and created=false.
func (s *InventoryScanner) EnqueueScan(ctx context.Context, accountID string) (*domain.Job, bool, error) {
	opts := queue.EnqueueOptions{Name: domain.QueueInventoryScan}
	if s.DailyIdempotency {
		opts.IdempotencyKey = domain.QueueInventoryScan + ":" + accountID + ":" + dayKey(s.now())
	}
	return s.Queue.Enqueue(ctx, domain.QueueInventoryScan, domain.AccountPayload{AccountID: accountID}, opts)
}

// Scan discovers the resources of accountID, replaces the stored set, and
// enqueues a discrepancy-analysis job.
func (s *InventoryScanner) Scan(ctx context.Context, accountID string) (*InventoryResult, error) {
	tr := otel.Tracer("services/inventory")
	ctx, span := tr.Start(ctx, "InventoryScanner.Scan",
		trace.WithAttributes(attribute.String("account.id", accountID)),
	)
	defer span.End()
	lg := zerolog.Ctx(ctx)

	creds, err := assumeAccount(ctx, s.DB, s.Broker, accountID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	providerAcct, err := s.Provider.AccountIdentity(ctx, creds)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve account identity: %w", err)
	}
	regions, err := s.Provider.Regions(ctx, creds)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list regions: %w", err)
	}

	var (
		mu        sync.Mutex
		found     []provider.Resource
		failed    []string
		global    []provider.Resource
		globalErr error
	)

	var all errgroup.Group
	all.Go(func() error {
		global, globalErr = s.Provider.ScanGlobal(ctx, creds)
		return nil
	})
	all.Go(func() error {
		var g errgroup.Group
		g.SetLimit(max(s.RegionParallelism, 1))
		for _, region := range regions {
			g.Go(func() error {
				rs, err := s.Provider.ScanRegion(ctx, creds, region)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed = append(failed, region)
					lg.Warn().Err(err).Str("region", region).Msg("region scan failed")
					return nil
				}
				found = append(found, rs...)
				return nil
			})
		}
		return g.Wait()
	})
	_ = all.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if globalErr != nil {
		span.RecordError(globalErr)
		return nil, fmt.Errorf("global scan: %w", globalErr)
	}
	sort.Strings(failed)
	if len(regions) > 0 && len(failed) == len(regions) {
		span.RecordError(ErrAllRegionsFailed)
		return nil, fmt.Errorf("%w: %v", ErrAllRegionsFailed, failed)
	}
	found = append(found, global...)

	recs := toRecords(providerAcct, found)
	if err := repo.ReplaceResourceRecords(ctx, s.DB, accountID, recs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("replace resource records: %w", err)
	}

	job, _, err := s.Queue.Enqueue(ctx, domain.QueueDiscrepancyAnalyze, domain.AccountPayload{AccountID: accountID}, queue.EnqueueOptions{
		Name: domain.QueueDiscrepancyAnalyze,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("enqueue analysis: %w", err)
	}

	res := &InventoryResult{
		ProviderAccountID: providerAcct,
		Records:           len(recs),
		Regions:           len(regions),
		FailedRegions:     failed,
		AnalysisJobID:     job.ID,
	}
	if res.FailedRegions == nil {
		res.FailedRegions = []string{}
	}
	span.SetAttributes(attribute.Int("records", res.Records), attribute.Int("failed_regions", len(failed)))
	lg.Info().
		Int("records", res.Records).
		Int("regions", res.Regions).
		Strs("failed_regions", failed).
		Msg("inventory snapshot replaced")
	return res, nil
}

// Handle is the inventory-scan queue handler.
func (s *InventoryScanner) Handle(ctx context.Context, job *domain.Job) (any, error) {
	accountID, err := accountFromJob(job)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, accountID)
}

func toRecords(providerAcct string, rs []provider.Resource) []domain.ResourceRecord {
	out := make([]domain.ResourceRecord, 0, len(rs))
	for _, r := range rs {
		tags := r.Tags
		if tags == nil {
			tags = []domain.Tag{}
		}
		details := r.Details
		if details == nil {
			details = map[string]any{}
		}
		out = append(out, domain.ResourceRecord{
			ProviderAccountID: providerAcct,
			Service:           r.Service,
			ResourceID:        r.ResourceID,
			Region:            r.Region,
			State:             r.State,
			Tags:              datatypes.JSONSlice[domain.Tag](tags),
			Details:           datatypes.JSONMap(details),
		})
	}
	return out
}
