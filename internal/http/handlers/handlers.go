package handlers

import (
	"context"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/services"
)

// AccountService configures monitored accounts.
type AccountService interface {
	Configure(ctx context.Context, accountID, roleARN, externalID string) (*domain.AccountConfig, error)
}

// DiscrepancyService lists findings and records operator decisions.
type DiscrepancyService interface {
	List(ctx context.Context, accountID string, status domain.Status) ([]domain.Discrepancy, error)
	SetStatus(ctx context.Context, accountID, id string, status domain.Status) error
}

// OpsService requests jobs and reports on stored state.
type OpsService interface {
	RequestCosts(ctx context.Context, accountID, key string) (*domain.Job, bool, error)
	RequestScan(ctx context.Context, accountID, key string) (*domain.Job, bool, error)
	Overview(ctx context.Context, accountID string) (*services.AccountOverview, error)
	QueueDepths(ctx context.Context) ([]services.QueueDepth, error)
	DeadLetters(ctx context.Context, queue string, limit int) ([]domain.DeadLetter, error)
	Job(ctx context.Context, id string) (*domain.Job, error)
	Jobs(ctx context.Context, queue string, status domain.JobStatus, limit int) ([]domain.Job, error)
	Schedules(ctx context.Context) ([]domain.Schedule, error)
}

// Handlers groups the operator endpoints.
type Handlers struct {
	accounts      AccountService
	discrepancies DiscrepancyService
	ops           OpsService
}

// New binds Handlers to its services.
func New(accounts AccountService, discrepancies DiscrepancyService, ops OpsService) *Handlers {
	return &Handlers{accounts: accounts, discrepancies: discrepancies, ops: ops}
}
