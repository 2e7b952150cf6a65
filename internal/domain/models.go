// Package domain defines the persistence models for account configuration,
// cost and resource snapshots, and discrepancies. These types are mapped with
// GORM and form the core data layer of the reconciler.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Canonical resource-service categories.
const (
	ServiceEC2 = "EC2"
	ServiceEBS = "EBS"
	ServiceEIP = "EIP"
	ServiceRDS = "RDS"
	ServiceS3  = "S3"
)

// DiscrepancyType classifies a finding.
type DiscrepancyType string

const (
	TypeIdleResource     DiscrepancyType = "IDLE_RESOURCE"
	TypeUnmatchedBilling DiscrepancyType = "UNMATCHED_BILLING"
	TypeUnderutilized    DiscrepancyType = "UNDERUTILIZED"
)

// Severity ranks a finding for display.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Status is the lifecycle state of a discrepancy. ACTIVE rows are owned by
// the most recent analysis run; RESOLVED and IGNORED are user decisions.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusResolved Status = "RESOLVED"
	StatusIgnored  Status = "IGNORED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusResolved, StatusIgnored:
		return true
	}
	return false
}

// AccountConfig stores the role reference used to obtain scoped temporary
// credentials for one monitored account.
//
// Fields:
//   - AccountID: identifier of the owning user/account (unique).
//   - RoleARN: role assumed by the workers.
//   - ExternalID: external id presented on AssumeRole (unique).
type AccountConfig struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	AccountID  string    `json:"account_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_account_configs_account"`
	RoleARN    string    `json:"role_arn"    gorm:"type:varchar(255);not null"`
	ExternalID string    `json:"external_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_account_configs_external"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for AccountConfig.
func (AccountConfig) TableName() string { return "account_configs" }

// ServiceCost is one billed line of a cost snapshot.
type ServiceCost struct {
	ServiceName string  `json:"serviceName"`
	Cost        float64 `json:"cost"`
}

// CostSnapshot is the normalized billing view of an account for one period.
// (AccountID, Period) is unique; later collections upsert by that key.
type CostSnapshot struct {
	ID        string                           `json:"id"         gorm:"type:char(36);primaryKey"`
	AccountID string                           `json:"account_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_cost_account_period,priority:1"`
	Period    string                           `json:"period"     gorm:"type:char(7);not null;uniqueIndex:ux_cost_account_period,priority:2"`
	Services  datatypes.JSONSlice[ServiceCost] `json:"services"`
	TotalCost float64                          `json:"total_cost" gorm:"not null"`
	Currency  string                           `json:"currency"   gorm:"type:varchar(8);not null"`
	CreatedAt time.Time                        `json:"created_at"`
	UpdatedAt time.Time                        `json:"updated_at" gorm:"index"`
}

// TableName returns the database table name for CostSnapshot.
func (CostSnapshot) TableName() string { return "cost_snapshots" }

// Tag is a provider key/value label attached to a resource.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// ResourceRecord is one live cloud resource discovered by an inventory scan.
// The full set for an account is replaced on every scan.
type ResourceRecord struct {
	ID                string                   `json:"id"                  gorm:"type:char(36);primaryKey"`
	AccountID         string                   `json:"account_id"          gorm:"type:varchar(64);not null;index:idx_resources_account_service,priority:1"`
	ProviderAccountID string                   `json:"provider_account_id" gorm:"type:varchar(64)"`
	Service           string                   `json:"service"             gorm:"type:varchar(16);not null;index:idx_resources_account_service,priority:2"`
	ResourceID        string                   `json:"resource_id"         gorm:"type:varchar(255);not null"`
	Region            string                   `json:"region"              gorm:"type:varchar(32);not null"`
	State             string                   `json:"state"               gorm:"type:varchar(32);not null"`
	Tags              datatypes.JSONSlice[Tag] `json:"tags"`
	Details           datatypes.JSONMap        `json:"details"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// TableName returns the database table name for ResourceRecord.
func (ResourceRecord) TableName() string { return "resource_records" }

// Discrepancy is a persisted finding. Its natural key is
// (AccountID, Type, ResourceID); ID is storage-assigned and never used to
// correlate findings across runs.
type Discrepancy struct {
	ID          string          `json:"id"          gorm:"type:char(36);primaryKey"`
	AccountID   string          `json:"account_id"  gorm:"type:varchar(64);not null;index:idx_disc_natural,priority:1;index:idx_disc_status,priority:1"`
	Type        DiscrepancyType `json:"type"        gorm:"type:varchar(32);not null;index:idx_disc_natural,priority:2;check:type IN ('IDLE_RESOURCE','UNMATCHED_BILLING','UNDERUTILIZED')"`
	Severity    Severity        `json:"severity"    gorm:"type:varchar(8);not null;index:idx_disc_status,priority:3;check:severity IN ('HIGH','MEDIUM','LOW')"`
	Status      Status          `json:"status"      gorm:"type:varchar(16);not null;default:'ACTIVE';index:idx_disc_status,priority:2;check:status IN ('ACTIVE','RESOLVED','IGNORED')"`
	Service     string          `json:"service"     gorm:"type:varchar(16);not null"`
	ResourceID  string          `json:"resource_id" gorm:"type:varchar(255);not null;index:idx_disc_natural,priority:3"`
	Description string          `json:"description" gorm:"type:text;not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Discrepancy.
func (Discrepancy) TableName() string { return "discrepancies" }

// NaturalKey returns the (type, resourceId) part of the natural key; the
// account part is implied by the query scope.
func (d Discrepancy) NaturalKey() string { return string(d.Type) + "::" + d.ResourceID }
