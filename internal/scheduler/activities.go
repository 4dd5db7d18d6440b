package scheduler

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/orchestrator"
)

// Activities hosts the worker-side job implementations. The worker
// registers one instance; workflows reference its methods by name.
type Activities struct {
	jobs       *Jobs
	source     orchestrator.Source
	windowDays int
}

// NewActivities creates the activity set for a Temporal worker.
func NewActivities(jobs *Jobs, source orchestrator.Source, windowDays int) *Activities {
	if windowDays <= 0 {
		windowDays = orchestrator.DefaultConfig().WindowDays
	}
	return &Activities{jobs: jobs, source: source, windowDays: windowDays}
}

// ListTenantsInput parameterizes the tenant listing activity.
type ListTenantsInput struct {
	WindowDays int `json:"window_days,omitempty"`
}

// ListTenants returns the tenants with outcome activity inside the
// learning window.
func (a *Activities) ListTenants(ctx context.Context, in ListTenantsInput) ([]string, error) {
	days := in.WindowDays
	if days <= 0 {
		days = a.windowDays
	}
	to := time.Now().UTC()
	window := model.Window{From: to.AddDate(0, 0, -days), To: to}

	tenants, err := a.source.ListActiveTenants(ctx, window)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: list active tenants")
	}
	return tenants, nil
}

// LearnTenantInput parameterizes one tenant learning activity.
type LearnTenantInput struct {
	TenantID string `json:"tenant_id"`
	Trigger  string `json:"trigger,omitempty"`
}

// LearnTenant runs one tenant's learning pass and records its run.
// Tenant-level failures ride in the outcome, not as activity errors;
// the retry queue owns those. An error here means the run could not be
// recorded at all, which is worth a Temporal retry.
func (a *Activities) LearnTenant(ctx context.Context, in LearnTenantInput) (*RunOutcome, error) {
	return a.jobs.Run(ctx, JobLearn, in.TenantID, runTrigger(in.Trigger))
}

// CheckHealth runs one pattern health scan and delivers alerts.
func (a *Activities) CheckHealth(ctx context.Context) (*RunOutcome, error) {
	return a.jobs.Run(ctx, JobHealth, "", model.TriggerScheduled)
}

// BackfillInput parameterizes the backfill activity.
type BackfillInput struct {
	TenantID string `json:"tenant_id"`
}

// BackfillTenant repairs one tenant's history and reruns learning on it.
func (a *Activities) BackfillTenant(ctx context.Context, in BackfillInput) (*RunOutcome, error) {
	return a.jobs.Run(ctx, JobBackfill, in.TenantID, model.TriggerBackfill)
}

func runTrigger(s string) model.RunTrigger {
	if s == "" {
		return model.TriggerScheduled
	}
	return model.RunTrigger(s)
}
