// Package provider defines the cloud data capability the workers depend on:
// a credential broker that exchanges a role reference for short-lived
// credentials, and a data provider that reads billing and live inventory
// with those credentials.
//
// Implementations live in subpackages (awsprovider for the real cloud,
// mockprovider for deterministic offline data). One is chosen at startup.
package provider

import (
	"context"
	"time"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// Credentials are temporary, scoped credentials for one monitored account.
// Account is the reconciler account id they were issued for and keys
// per-account throttling.
type Credentials struct {
	Account         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// ServiceCost is one billed service line.
type ServiceCost struct {
	Name   string
	Amount float64
}

// CostReport is the billing view of a period. An empty Services slice means
// the provider reported no billing rows.
type CostReport struct {
	Services []ServiceCost
	Currency string
}

// Resource is one discovered live resource.
type Resource struct {
	Service    string
	ResourceID string
	Region     string
	State      string
	Tags       []domain.Tag
	Details    map[string]any
}

// CredentialBroker obtains scoped temporary credentials.
type CredentialBroker interface {
	AssumeRole(ctx context.Context, roleARN, externalID, sessionName string) (Credentials, error)
}

// CloudDataProvider reads billing and inventory for one account.
type CloudDataProvider interface {
	// CostsByService returns unblended cost grouped by service for
	// [start, end).
	CostsByService(ctx context.Context, creds Credentials, start, end time.Time) (*CostReport, error)
	// AccountIdentity returns the provider-side account identifier.
	AccountIdentity(ctx context.Context, creds Credentials) (string, error)
	// Regions lists the regions enabled for the account.
	Regions(ctx context.Context, creds Credentials) ([]string, error)
	// ScanRegion discovers EC2, EBS, EIP and RDS resources in region.
	ScanRegion(ctx context.Context, creds Credentials, region string) ([]Resource, error)
	// ScanGlobal discovers non-regional resources (S3 buckets).
	ScanGlobal(ctx context.Context, creds Credentials) ([]Resource, error)
}

// SessionName returns the role session name used for accountID.
func SessionName(accountID string) string {
	name := "reconciler-" + accountID
	// STS limits role session names to 64 characters.
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
