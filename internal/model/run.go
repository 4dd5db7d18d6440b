package model

import "time"

// RunTrigger records what started a learning run.
type RunTrigger string

const (
	TriggerScheduled RunTrigger = "scheduled"
	TriggerManual    RunTrigger = "manual"
	TriggerBackfill  RunTrigger = "backfill"
)

// RunStatus represents the state of a learning run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusPartial  RunStatus = "partial" // finished, but some tenants failed
	RunStatusFailed   RunStatus = "failed"
)

// LearningRun is one execution of the batch, scoped to all active tenants
// or to a single tenant for manual and backfill runs.
type LearningRun struct {
	ID         string     `json:"id"`
	Trigger    RunTrigger `json:"trigger"`
	TenantID   string     `json:"tenant_id,omitempty"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    RunSummary `json:"summary"`
}

// RunSummary aggregates per-tenant outcomes for a run.
type RunSummary struct {
	TenantsProcessed  int             `json:"tenants_processed"`
	TenantsFailed     int             `json:"tenants_failed"`
	PatternsStored    int             `json:"patterns_stored"`
	SentinelsRecorded int             `json:"sentinels_recorded"`
	TouchesSkipped    int             `json:"touches_skipped"`
	Failures          []TenantFailure `json:"failures,omitempty"`
}

// TenantFailure records one detector or store failure inside a run.
type TenantFailure struct {
	TenantID string      `json:"tenant_id"`
	Type     PatternType `json:"type,omitempty"`
	Reason   string      `json:"reason"`
}
