// Package mockprovider serves deterministic billing and inventory data so
// the reconciler can run end to end without cloud credentials.
package mockprovider

import (
	"context"
	"time"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
)

// AccountID is the provider-side account id every mock scan reports.
const AccountID = "123456789012"

// Region is the only region with mock resources.
const Region = "us-east-1"

// Provider implements both provider.CredentialBroker and
// provider.CloudDataProvider with fixed data.
type Provider struct{}

var (
	_ provider.CredentialBroker  = Provider{}
	_ provider.CloudDataProvider = Provider{}
)

// AssumeRole returns placeholder credentials valid for 15 minutes.
func (Provider) AssumeRole(_ context.Context, _, _, sessionName string) (provider.Credentials, error) {
	return provider.Credentials{
		AccessKeyID:     "MOCKACCESSKEY",
		SecretAccessKey: "mock-secret",
		SessionToken:    "mock-session-" + sessionName,
		Expires:         time.Now().UTC().Add(15 * time.Minute),
	}, nil
}

// CostsByService reports three billed services totalling 25.75 USD.
func (Provider) CostsByService(context.Context, provider.Credentials, time.Time, time.Time) (*provider.CostReport, error) {
	return &provider.CostReport{
		Currency: "USD",
		Services: []provider.ServiceCost{
			{Name: "Amazon Elastic Compute Cloud - Compute", Amount: 12.50},
			{Name: "Amazon Elastic Block Store", Amount: 3.25},
			{Name: "Amazon Relational Database Service", Amount: 10.00},
		},
	}, nil
}

// AccountIdentity returns AccountID.
func (Provider) AccountIdentity(context.Context, provider.Credentials) (string, error) {
	return AccountID, nil
}

// Regions returns only Region.
func (Provider) Regions(context.Context, provider.Credentials) ([]string, error) {
	return []string{Region}, nil
}

// ScanRegion returns a running instance, an idle and an attached volume,
// and an unassociated Elastic IP in Region; other regions are empty.
func (Provider) ScanRegion(_ context.Context, _ provider.Credentials, region string) ([]provider.Resource, error) {
	if region != Region {
		return nil, nil
	}
	return []provider.Resource{
		{Service: domain.ServiceEC2, ResourceID: "i-1234567890abcdef0", State: "running", Region: Region,
			Tags: []domain.Tag{{Key: "Name", Value: "prod-web-server"}}},
		{Service: domain.ServiceEBS, ResourceID: "vol-0987654321fedcba0", State: "available", Region: Region, Tags: []domain.Tag{}},
		{Service: domain.ServiceEBS, ResourceID: "vol-fedcba0987654321f", State: "in-use", Region: Region, Tags: []domain.Tag{}},
		{Service: domain.ServiceEIP, ResourceID: "eipalloc-abcdef12345", State: "unassociated", Region: Region, Tags: []domain.Tag{},
			Details: map[string]any{"publicIp": "54.12.34.56"}},
	}, nil
}

// ScanGlobal returns no buckets.
func (Provider) ScanGlobal(context.Context, provider.Credentials) ([]provider.Resource, error) {
	return nil, nil
}
