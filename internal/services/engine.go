// Package services – Engine
//
// The Engine reconciles the latest cost snapshot against the stored
// resource set of an account. Analyze is the pure rule evaluation;
// Reconcile persists its outcome with dismiss-aware semantics:
//
//   - missing snapshot or empty resource set: nothing is written;
//   - no candidates: nothing is written, prior ACTIVE rows stay;
//   - otherwise ACTIVE rows are replaced by the candidates, minus those
//     whose natural key the user already RESOLVED or IGNORED.
//
// Every outcome is announced on the account's signal channel.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
	"github.com/tbourn/go-spend-reconciler/internal/signal"
)

// Messages sent on the signal channel.
const (
	MsgNoData    = "Scan failed: Missing data. Please run both billing and infrastructure scans."
	MsgClean     = "Scan complete! No discrepancies found. Your account looks clean."
	MsgFoundFmt  = "Scan complete! Found %d new actionable insight(s)."
	MsgScanError = "An error occurred during the scan. Please try again later."
)

// billedServices maps billing labels to resource service categories.
// Labels absent from the map are never reported as unmatched.
var billedServices = map[string]string{
	"Amazon Elastic Compute Cloud - Compute": domain.ServiceEC2,
	"Amazon Elastic Block Store":             domain.ServiceEBS,
	"Amazon Virtual Private Cloud":           domain.ServiceEIP,
	"Amazon Relational Database Service":     domain.ServiceRDS,
	"Amazon Simple Storage Service":          domain.ServiceS3,
}

// Candidate is a discrepancy produced by analysis, before persistence.
type Candidate struct {
	Type        domain.DiscrepancyType
	Severity    domain.Severity
	Service     string
	ResourceID  string
	Description string
}

func (c Candidate) key() string { return string(c.Type) + "::" + c.ResourceID }

// Analyze evaluates the idle-resource and unmatched-billing rules. It does
// no I/O. A nil snapshot yields only idle-resource candidates. Candidates
// are unique by (type, resourceId).
func Analyze(snap *domain.CostSnapshot, recs []domain.ResourceRecord) []Candidate {
	var out []Candidate
	seen := map[string]bool{}
	add := func(c Candidate) {
		if k := c.key(); !seen[k] {
			seen[k] = true
			out = append(out, c)
		}
	}

	for _, r := range recs {
		if r.Service == domain.ServiceEBS && r.State == "available" {
			add(Candidate{
				Type:        domain.TypeIdleResource,
				Severity:    domain.SeverityMedium,
				Service:     domain.ServiceEBS,
				ResourceID:  r.ResourceID,
				Description: fmt.Sprintf("EBS Volume (%s) is 'available' and not attached to any EC2 instance.", r.ResourceID),
			})
		}
	}
	for _, r := range recs {
		if r.Service == domain.ServiceEIP && r.State == "unassociated" {
			ip, _ := r.Details["publicIp"].(string)
			if ip == "" {
				ip = r.ResourceID
			}
			add(Candidate{
				Type:        domain.TypeIdleResource,
				Severity:    domain.SeverityMedium,
				Service:     domain.ServiceEIP,
				ResourceID:  r.ResourceID,
				Description: fmt.Sprintf("Elastic IP address (%s) is not associated with any instance or network interface.", ip),
			})
		}
	}

	if snap == nil {
		return out
	}
	present := map[string]bool{}
	for _, r := range recs {
		present[r.Service] = true
	}
	for _, sc := range snap.Services {
		if sc.Cost <= 0 {
			continue
		}
		svc, ok := billedServices[sc.ServiceName]
		if !ok || present[svc] {
			continue
		}
		add(Candidate{
			Type:        domain.TypeUnmatchedBilling,
			Severity:    domain.SeverityHigh,
			Service:     svc,
			ResourceID:  sc.ServiceName,
			Description: fmt.Sprintf("Billing data shows costs for %s, but no active resources of type '%s' were found.", sc.ServiceName, svc),
		})
	}
	return out
}

// Report summarizes one reconciliation.
type Report struct {
	NoData     bool   `json:"noData"`
	Candidates int    `json:"candidates"`
	Inserted   int    `json:"inserted"`
	Suppressed int    `json:"suppressed"`
	Cleared    int64  `json:"cleared"`
	Billed     string `json:"billed,omitempty"`
	Message    string `json:"message"`
}

// Engine runs reconciliations and announces their outcome.
type Engine struct {
	DB      *gorm.DB
	Signals signal.Publisher
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(db *gorm.DB, p signal.Publisher) *Engine {
	return &Engine{DB: db, Signals: p}
}

// Reconcile analyzes accountID and persists the result. On error a
// scan_error event is published and the error returned so the job retries.
func (e *Engine) Reconcile(ctx context.Context, accountID string) (*Report, error) {
	tr := otel.Tracer("services/engine")
	ctx, span := tr.Start(ctx, "Engine.Reconcile",
		trace.WithAttributes(attribute.String("account.id", accountID)),
	)
	defer span.End()
	lg := zerolog.Ctx(ctx)

	rep, err := e.reconcile(ctx, accountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Error().Err(err).Msg("reconciliation failed")
		e.notify(ctx, accountID, signal.ScanError, MsgScanError)
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("no_data", rep.NoData),
		attribute.Int("inserted", rep.Inserted),
		attribute.Int("suppressed", rep.Suppressed),
	)
	if rep.NoData {
		lg.Warn().Msg("skipping analysis: missing billing or resource data")
		e.notify(ctx, accountID, signal.ScanInfo, rep.Message)
		return rep, nil
	}
	lg.Info().
		Int("candidates", rep.Candidates).
		Int("inserted", rep.Inserted).
		Int("suppressed", rep.Suppressed).
		Int64("cleared", rep.Cleared).
		Str("billed", rep.Billed).
		Msg("reconciliation done")
	e.notify(ctx, accountID, signal.ScanComplete, rep.Message)
	return rep, nil
}

func (e *Engine) reconcile(ctx context.Context, accountID string) (*Report, error) {
	snap, err := repo.LatestCostSnapshot(ctx, e.DB, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		snap = nil
	} else if err != nil {
		return nil, fmt.Errorf("load cost snapshot: %w", err)
	}
	recs, err := repo.ListResourceRecords(ctx, e.DB, accountID)
	if err != nil {
		return nil, fmt.Errorf("load resource records: %w", err)
	}
	if snap == nil || len(recs) == 0 {
		return &Report{NoData: true, Message: MsgNoData}, nil
	}

	rep := &Report{Billed: formatBilled(snap)}
	cands := Analyze(snap, recs)
	rep.Candidates = len(cands)
	if len(cands) == 0 {
		rep.Message = MsgClean
		return rep, nil
	}

	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.ResourceID)
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cleared, err := repo.DeleteActiveDiscrepancies(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("clear active discrepancies: %w", err)
		}
		rep.Cleared = cleared

		keys, err := repo.ListDismissedKeys(ctx, tx, accountID, ids)
		if err != nil {
			return fmt.Errorf("load dismissed discrepancies: %w", err)
		}
		dismissed := make(map[string]bool, len(keys))
		for _, k := range keys {
			dismissed[string(k.Type)+"::"+k.ResourceID] = true
		}

		fresh := make([]domain.Discrepancy, 0, len(cands))
		for _, c := range cands {
			if dismissed[c.key()] {
				rep.Suppressed++
				continue
			}
			fresh = append(fresh, domain.Discrepancy{
				Type:        c.Type,
				Severity:    c.Severity,
				Service:     c.Service,
				ResourceID:  c.ResourceID,
				Description: c.Description,
			})
		}
		if err := repo.InsertDiscrepancies(ctx, tx, accountID, fresh); err != nil {
			return fmt.Errorf("insert discrepancies: %w", err)
		}
		rep.Inserted = len(fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	rep.Message = fmt.Sprintf(MsgFoundFmt, rep.Inserted)
	return rep, nil
}

// notify publishes an event; a failed publish is logged only.
func (e *Engine) notify(ctx context.Context, accountID string, typ signal.EventType, msg string) {
	if e.Signals == nil {
		return
	}
	at := time.Now().UTC()
	if e.Now != nil {
		at = e.Now().UTC()
	}
	ev := signal.Event{Type: typ, Message: msg, At: at}
	if err := e.Signals.Publish(ctx, accountID, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", string(typ)).Msg("signal publish failed")
	}
}

// Handle is the discrepancy-analysis queue handler.
func (e *Engine) Handle(ctx context.Context, job *domain.Job) (any, error) {
	accountID, err := accountFromJob(job)
	if err != nil {
		return nil, err
	}
	return e.Reconcile(ctx, accountID)
}

// formatBilled renders the snapshot total in its currency, e.g. "$ 25.75".
func formatBilled(snap *domain.CostSnapshot) string {
	unit, err := currency.ParseISO(snap.Currency)
	if err != nil {
		return fmt.Sprintf("%s %.2f", snap.Currency, snap.TotalCost)
	}
	p := message.NewPrinter(language.English)
	return p.Sprint(currency.Symbol(unit.Amount(snap.TotalCost)))
}
