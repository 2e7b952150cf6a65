package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Stable queue identifiers.
const (
	QueueCostCollection     = "cost-collection"
	QueueInventoryScan      = "inventory-scan"
	QueueMetaScheduler      = "meta-scheduler"
	QueueDiscrepancyAnalyze = "discrepancy-analysis"
	QueueDeadLetter         = "dead-letter"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobWaiting   JobStatus = "waiting"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Valid reports whether s is one of the four lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobWaiting, JobActive, JobCompleted, JobFailed:
		return true
	}
	return false
}

// AccountPayload is the payload carried by every account-scoped job.
type AccountPayload struct {
	AccountID string `json:"accountId"`
}

// Job is a durable unit of work. IdempotencyKey is unique per queue among
// jobs that have not failed, so a duplicate enqueue collapses into the
// existing row.
type Job struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	Queue          string         `json:"queue"           gorm:"type:varchar(64);not null;index:idx_jobs_claim,priority:1;uniqueIndex:ux_jobs_idem,priority:1,where:idempotency_key IS NOT NULL AND status <> 'failed'"`
	Name           string         `json:"name"            gorm:"type:varchar(255);not null"`
	Payload        datatypes.JSON `json:"payload"`
	IdempotencyKey *string        `json:"idempotency_key" gorm:"type:varchar(255);uniqueIndex:ux_jobs_idem,priority:2,where:idempotency_key IS NOT NULL AND status <> 'failed'"`
	Status         JobStatus      `json:"status"          gorm:"type:varchar(16);not null;index:idx_jobs_claim,priority:2;check:status IN ('waiting','active','completed','failed')"`
	Attempts       int            `json:"attempts"        gorm:"not null;default:0"`
	MaxAttempts    int            `json:"max_attempts"    gorm:"not null;default:1"`
	BackoffMS      int64          `json:"backoff_ms"      gorm:"not null;default:0"`
	RunAt          time.Time      `json:"run_at"          gorm:"not null;index:idx_jobs_claim,priority:3"`
	LockedUntil    *time.Time     `json:"locked_until"`
	LastError      string         `json:"last_error"      gorm:"type:text"`
	Result         string         `json:"result"          gorm:"type:text"`
	FinishedAt     *time.Time     `json:"finished_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string { return "jobs" }

// Backoff returns the base retry delay.
func (j Job) Backoff() time.Duration { return time.Duration(j.BackoffMS) * time.Millisecond }

// DeadLetter is an append-only audit record of a permanently failed job.
type DeadLetter struct {
	ID       string         `json:"id"        gorm:"type:char(36);primaryKey"`
	Queue    string         `json:"queue"     gorm:"type:varchar(64);not null;index"`
	JobID    string         `json:"job_id"    gorm:"type:char(36);not null;index"`
	Payload  datatypes.JSON `json:"payload"`
	Reason   string         `json:"reason"    gorm:"type:text;not null"`
	Attempts int            `json:"attempts"  gorm:"not null"`
	FailedAt time.Time      `json:"failed_at" gorm:"not null;index"`
}

// TableName returns the database table name for DeadLetter.
func (DeadLetter) TableName() string { return "dead_letters" }

// Schedule registers one recurring trigger. Rows are cleared and written
// again at process start.
type Schedule struct {
	Name      string    `json:"name"       gorm:"type:varchar(128);primaryKey"`
	Queue     string    `json:"queue"      gorm:"type:varchar(64);not null;index"`
	Spec      string    `json:"spec"       gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Schedule.
func (Schedule) TableName() string { return "schedules" }
