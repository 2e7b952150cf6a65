package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// defaultCurrency is reported when the provider returned no billing rows.
const defaultCurrency = "USD"

// CostResult is stored on a completed cost-collection job.
type CostResult struct {
	Period    string  `json:"period"`
	Services  int     `json:"services"`
	TotalCost float64 `json:"totalCost"`
	Currency  string  `json:"currency"`
}

// CostCollector turns the current month's billing into a CostSnapshot.
type CostCollector struct {
	DB       *gorm.DB
	Broker   provider.CredentialBroker
	Provider provider.CloudDataProvider
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewCostCollector constructs a CostCollector.
func NewCostCollector(db *gorm.DB, b provider.CredentialBroker, p provider.CloudDataProvider) *CostCollector {
	return &CostCollector{DB: db, Broker: b, Provider: p}
}

// BillingPeriod returns the UTC calendar month containing t as "YYYY-MM"
// together with its [start, end) bounds.
func BillingPeriod(t time.Time) (period string, start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start.Format("2006-01"), start, end
}

// Collect fetches the current month's cost by service for accountID and
// upserts the snapshot. An empty provider response stores an empty USD
// snapshot with total 0.
func (c *CostCollector) Collect(ctx context.Context, accountID string) (*domain.CostSnapshot, error) {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	period, start, end := BillingPeriod(now)

	tr := otel.Tracer("services/costs")
	ctx, span := tr.Start(ctx, "CostCollector.Collect",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("period", period),
		),
	)
	defer span.End()

	creds, err := assumeAccount(ctx, c.DB, c.Broker, accountID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report, err := c.Provider.CostsByService(ctx, creds, start, end)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch costs: %w", err)
	}

	snap := &domain.CostSnapshot{
		AccountID: accountID,
		Period:    period,
		Services:  datatypes.JSONSlice[domain.ServiceCost]{},
		Currency:  defaultCurrency,
	}
	if report != nil {
		if report.Currency != "" {
			snap.Currency = report.Currency
		}
		for _, sc := range report.Services {
			snap.Services = append(snap.Services, domain.ServiceCost{ServiceName: sc.Name, Cost: sc.Amount})
			snap.TotalCost += sc.Amount
		}
	}

	if err := repo.UpsertCostSnapshot(ctx, c.DB, snap); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("store cost snapshot: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("period", period).
		Int("services", len(snap.Services)).
		Float64("total", snap.TotalCost).
		Msg("cost snapshot stored")
	return snap, nil
}

// Handle is the cost-collection queue handler.
func (c *CostCollector) Handle(ctx context.Context, job *domain.Job) (any, error) {
	accountID, err := accountFromJob(job)
	if err != nil {
		return nil, err
	}
	snap, err := c.Collect(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return CostResult{
		Period:    snap.Period,
		Services:  len(snap.Services),
		TotalCost: snap.TotalCost,
		Currency:  snap.Currency,
	}, nil
}
