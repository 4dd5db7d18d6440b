package scheduler

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// LearningRunConfig parameterizes a learning batch workflow.
type LearningRunConfig struct {
	// TenantID restricts the run to one tenant. Empty means every
	// active tenant.
	TenantID   string `json:"tenant_id,omitempty"`
	WindowDays int    `json:"window_days,omitempty"`
	Trigger    string `json:"trigger,omitempty"`
}

// LearningRunResult aggregates a batch outcome across tenants.
type LearningRunResult struct {
	Status  model.RunStatus  `json:"status"`
	Summary model.RunSummary `json:"summary"`
	RunIDs  []string         `json:"run_ids,omitempty"`
}

// LearningRunWorkflow mines patterns for one tenant or for every active
// tenant. Each tenant is its own activity so a slow or broken tenant
// retries alone instead of rerunning the whole batch.
func LearningRunWorkflow(ctx workflow.Context, cfg LearningRunConfig) (*LearningRunResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("learning run workflow started",
		"tenant_id", cfg.TenantID,
		"trigger", cfg.Trigger,
	)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities

	if cfg.TenantID != "" {
		var out RunOutcome
		in := LearnTenantInput{TenantID: cfg.TenantID, Trigger: cfg.Trigger}
		if err := workflow.ExecuteActivity(ctx, a.LearnTenant, in).Get(ctx, &out); err != nil {
			return nil, err
		}
		res := &LearningRunResult{Status: out.Status, Summary: out.Summary}
		if out.RunID != "" {
			res.RunIDs = append(res.RunIDs, out.RunID)
		}
		return res, nil
	}

	var tenants []string
	in := ListTenantsInput{WindowDays: cfg.WindowDays}
	if err := workflow.ExecuteActivity(ctx, a.ListTenants, in).Get(ctx, &tenants); err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		logger.Info("no active tenants")
		return &LearningRunResult{Status: model.RunStatusComplete}, nil
	}

	futures := make([]workflow.Future, len(tenants))
	for i, tenantID := range tenants {
		in := LearnTenantInput{TenantID: tenantID, Trigger: cfg.Trigger}
		futures[i] = workflow.ExecuteActivity(ctx, a.LearnTenant, in)
	}

	res := &LearningRunResult{}
	for i, f := range futures {
		var out RunOutcome
		if err := f.Get(ctx, &out); err != nil {
			logger.Error("tenant activity failed",
				"tenant_id", tenants[i],
				"error", err,
			)
			res.Summary.TenantsFailed++
			res.Summary.Failures = append(res.Summary.Failures, model.TenantFailure{
				TenantID: tenants[i],
				Reason:   err.Error(),
			})
			continue
		}
		mergeSummaries(&res.Summary, out.Summary)
		if out.RunID != "" {
			res.RunIDs = append(res.RunIDs, out.RunID)
		}
	}
	res.Status = summaryStatus(res.Summary)

	logger.Info("learning run workflow complete",
		"processed", res.Summary.TenantsProcessed,
		"failed", res.Summary.TenantsFailed,
		"patterns_stored", res.Summary.PatternsStored,
	)
	return res, nil
}

// HealthCheckWorkflow runs one pattern health scan and delivers alerts.
func HealthCheckWorkflow(ctx workflow.Context) (*RunOutcome, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	var out RunOutcome
	if err := workflow.ExecuteActivity(ctx, a.CheckHealth).Get(ctx, &out); err != nil {
		return nil, err
	}

	workflow.GetLogger(ctx).Info("health check workflow complete",
		"findings", out.Findings,
		"delivered", out.Delivered,
	)
	return &out, nil
}

// BackfillConfig parameterizes a backfill workflow.
type BackfillConfig struct {
	TenantID string `json:"tenant_id"`
}

// BackfillWorkflow reconstructs missing snapshots for one tenant and then
// runs a learning pass over the repaired history.
func BackfillWorkflow(ctx workflow.Context, cfg BackfillConfig) (*RunOutcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("backfill workflow started", "tenant_id", cfg.TenantID)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	var out RunOutcome
	in := BackfillInput{TenantID: cfg.TenantID}
	if err := workflow.ExecuteActivity(ctx, a.BackfillTenant, in).Get(ctx, &out); err != nil {
		return nil, err
	}

	logger.Info("backfill workflow complete",
		"tenant_id", cfg.TenantID,
		"status", string(out.Status),
	)
	return &out, nil
}

func mergeSummaries(dst *model.RunSummary, src model.RunSummary) {
	dst.TenantsProcessed += src.TenantsProcessed
	dst.TenantsFailed += src.TenantsFailed
	dst.PatternsStored += src.PatternsStored
	dst.SentinelsRecorded += src.SentinelsRecorded
	dst.TouchesSkipped += src.TouchesSkipped
	dst.Failures = append(dst.Failures, src.Failures...)
}

func summaryStatus(s model.RunSummary) model.RunStatus {
	switch {
	case s.TenantsFailed == 0:
		return model.RunStatusComplete
	case s.TenantsProcessed == 0:
		return model.RunStatusFailed
	default:
		return model.RunStatusPartial
	}
}
