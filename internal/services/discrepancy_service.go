// Package services – DiscrepancyService
//
// This file implements the DiscrepancyService, which governs how operators
// act on findings. Moving a discrepancy to RESOLVED or IGNORED is a durable
// decision: the engine never re-creates an ACTIVE row for the same natural
// key while the underlying condition is unchanged. Moving it back to ACTIVE
// lifts the suppression on the next analysis run.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// DiscrepancyService implements the use-cases around discrepancy review.
type DiscrepancyService struct {
	// DB is the database handle used for all discrepancy operations.
	DB *gorm.DB
}

// List returns the discrepancies of accountID, optionally filtered by
// status. An empty status lists every row.
func (s *DiscrepancyService) List(ctx context.Context, accountID string, status domain.Status) ([]domain.Discrepancy, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return repo.ListDiscrepancies(ctx, s.DB, accountID, status)
}

// SetStatus moves discrepancy id of accountID to status.
//
// Semantics and validation:
//   - status is case-insensitive and must be ACTIVE, RESOLVED or IGNORED;
//     otherwise ErrInvalidStatus.
//   - The row must exist and belong to accountID; otherwise
//     ErrDiscrepancyNotFound.
func (s *DiscrepancyService) SetStatus(ctx context.Context, accountID, id string, status domain.Status) error {
	status = domain.Status(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return ErrInvalidStatus
	}
	err := repo.UpdateDiscrepancyStatus(ctx, s.DB, accountID, id, status)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrDiscrepancyNotFound
	}
	return err
}
