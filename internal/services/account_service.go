// Package services – AccountService
//
// AccountService stores the role reference each monitored account is read
// through. A configuration is created on first setup and replaced on
// reconfiguration; it is never deleted automatically.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// AccountService manages account role configuration.
type AccountService struct {
	DB *gorm.DB
}

// Configure creates or replaces the configuration of accountID. All three
// values are required; an external id already used by another account
// yields ErrExternalIDInUse.
func (s *AccountService) Configure(ctx context.Context, accountID, roleARN, externalID string) (*domain.AccountConfig, error) {
	accountID = strings.TrimSpace(accountID)
	roleARN = strings.TrimSpace(roleARN)
	externalID = strings.TrimSpace(externalID)
	if accountID == "" || roleARN == "" || externalID == "" {
		return nil, fmt.Errorf("%w: accountId, roleArn and externalId are required", ErrInvalidAccountConfig)
	}
	if !strings.HasPrefix(roleARN, "arn:") {
		return nil, fmt.Errorf("%w: roleArn must be an ARN", ErrInvalidAccountConfig)
	}
	c, err := repo.UpsertAccountConfig(ctx, s.DB, accountID, roleARN, externalID)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrExternalIDInUse
	}
	return c, err
}

// Get returns the configuration of accountID or ErrAccountNotConfigured.
func (s *AccountService) Get(ctx context.Context, accountID string) (*domain.AccountConfig, error) {
	c, err := repo.GetAccountConfig(ctx, s.DB, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAccountNotConfigured
	}
	return c, err
}
