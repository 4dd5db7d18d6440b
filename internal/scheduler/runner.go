// Package scheduler runs the recurring learning and health jobs. Runner
// abstracts the backend: an in-process ticker for local and dev setups,
// and Temporal workflows for production clusters. Both backends dispatch
// the same Jobs, so a job behaves identically however it was started.
package scheduler

import (
	"context"
	"time"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/outcome"
)

// Job names understood by every Runner backend.
const (
	JobLearn    = "learn"
	JobHealth   = "health"
	JobBackfill = "backfill"
)

// JobSpec describes one recurring job registration. The ticker backend
// schedules by Interval; the Temporal backend schedules by Cron.
type JobSpec struct {
	Name     string
	Cron     string
	Interval time.Duration
}

// RunOutcome reports what a triggered job did. A Status of running means
// the backend completes the job asynchronously and only the identifiers
// are known yet.
type RunOutcome struct {
	JobName    string           `json:"job_name"`
	RunID      string           `json:"run_id,omitempty"`
	WorkflowID string           `json:"workflow_id,omitempty"`
	Status     model.RunStatus  `json:"status"`
	Summary    model.RunSummary `json:"summary"`
	Findings   int              `json:"findings,omitempty"`
	Delivered  int              `json:"delivered,omitempty"`
	Report     *outcome.Report  `json:"report,omitempty"`
}

// Runner schedules recurring jobs and triggers one-off runs.
type Runner interface {
	RegisterRecurring(ctx context.Context, spec JobSpec) error
	TriggerNow(ctx context.Context, jobName, tenantID string) (*RunOutcome, error)
}
