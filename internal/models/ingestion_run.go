package models

import (
	"time"

	"gorm.io/datatypes"
)

// RunOutcome is the overall result of one ingestion run
type RunOutcome string

const (
	RunOutcomeSuccess RunOutcome = "success"
	RunOutcomeFailure RunOutcome = "failure"
)

// FetchStrategy names the adapter whose result a run used
type FetchStrategy string

const (
	StrategyStructured FetchStrategy = "structured"
	StrategyRendered   FetchStrategy = "rendered"
	StrategyNone       FetchStrategy = "none"
)

// IngestionRun is the diagnostic record written once per run. It is never updated.
type IngestionRun struct {
	ID           string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Outcome      RunOutcome                  `gorm:"type:varchar(16);not null;index" json:"outcome"`
	Strategy     FetchStrategy               `gorm:"type:varchar(16);not null" json:"strategy"`
	ItemCount    int                         `gorm:"not null;default:0" json:"item_count"`
	SkippedCount int                         `gorm:"not null;default:0" json:"skipped_count"`
	FailedCount  int                         `gorm:"not null;default:0" json:"failed_count"`
	Errors       datatypes.JSONSlice[string] `json:"errors,omitempty"`
	DurationMs   int64                       `gorm:"not null;default:0" json:"duration_ms"`
	StartedAt    time.Time                   `gorm:"not null;index:idx_run_started,sort:desc" json:"started_at"`
	FinishedAt   time.Time                   `gorm:"not null" json:"finished_at"`

	// PriceDates are the calendar days this run persisted; used to drive aggregation
	PriceDates []time.Time `gorm:"-" json:"-"`
}

// TableName specifies the table name
func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

// Succeeded reports whether the run persisted data
func (r *IngestionRun) Succeeded() bool {
	return r != nil && r.Outcome == RunOutcomeSuccess
}
