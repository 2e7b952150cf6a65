package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
)

// accountFromJob decodes the {"accountId": "..."} payload of job.
func accountFromJob(job *domain.Job) (string, error) {
	var p domain.AccountPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	id := strings.TrimSpace(p.AccountID)
	if id == "" {
		return "", fmt.Errorf("%w: accountId is required", ErrInvalidPayload)
	}
	return id, nil
}

// assumeAccount loads the role configuration of accountID and exchanges it
// for scoped credentials tagged with the account.
func assumeAccount(ctx context.Context, db *gorm.DB, broker provider.CredentialBroker, accountID string) (provider.Credentials, error) {
	cfg, err := repo.GetAccountConfig(ctx, db, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return provider.Credentials{}, fmt.Errorf("%w: %s", ErrAccountNotConfigured, accountID)
	}
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("load account config: %w", err)
	}
	creds, err := broker.AssumeRole(ctx, cfg.RoleARN, cfg.ExternalID, provider.SessionName(accountID))
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("obtain credentials: %w", err)
	}
	creds.Account = accountID
	return creds, nil
}

// dayKey formats t as the UTC calendar day used in idempotency keys.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
