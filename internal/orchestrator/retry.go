package orchestrator

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/resilience"
)

// RetryFailed drains the retry queue: every due entry's tenant is rerun
// over a fresh window, a clean pass removes the tenant's entries, another
// failure bumps their retry schedule. Returns (nil, nil) when the queue
// has nothing due.
func (o *Orchestrator) RetryFailed(ctx context.Context) (*model.LearningRun, error) {
	entries, err := o.store.DequeueDLQ(ctx, resilience.DLQFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: dequeue retry entries")
	}
	if len(entries) == 0 {
		o.logger.Info("retry queue empty")
		return nil, nil
	}

	byTenant := make(map[string][]resilience.DLQEntry)
	var tenants []string
	for _, e := range entries {
		if _, ok := byTenant[e.TenantID]; !ok {
			tenants = append(tenants, e.TenantID)
		}
		byTenant[e.TenantID] = append(byTenant[e.TenantID], e)
	}

	run, err := o.beginRun(ctx, model.TriggerManual, "")
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create run")
	}
	o.logger.Info("retrying failed tenants",
		zap.String("run_id", run.ID),
		zap.Int("tenants", len(tenants)),
		zap.Int("entries", len(entries)),
	)

	window := o.window()
	var summary model.RunSummary
	for _, tenantID := range tenants {
		res := o.learnTenant(ctx, tenantID, window)
		res.mergeInto(&summary)
		o.settleEntries(ctx, byTenant[tenantID], !res.failed, res.cause)
	}

	o.finishRun(ctx, run, statusFor(summary), summary)
	return run, nil
}

// settleEntries clears a tenant's queue entries after a clean rerun or
// reschedules them after another failure.
func (o *Orchestrator) settleEntries(ctx context.Context, entries []resilience.DLQEntry, succeeded bool, cause error) {
	if o.cfg.DryRun {
		return
	}
	for _, e := range entries {
		if succeeded {
			if err := o.store.RemoveDLQ(ctx, e.ID); err != nil {
				o.logger.Error("failed to remove retry entry",
					zap.String("id", e.ID),
					zap.String("tenant_id", e.TenantID),
					zap.Error(err),
				)
			}
			continue
		}

		lastErr := e.Error
		if cause != nil {
			lastErr = cause.Error()
		}
		next := o.nowFunc().UTC().Add(dlqRetryDelay)
		if err := o.store.IncrementDLQRetry(ctx, e.ID, next, lastErr); err != nil {
			o.logger.Error("failed to reschedule retry entry",
				zap.String("id", e.ID),
				zap.String("tenant_id", e.TenantID),
				zap.Error(err),
			)
		}
	}
}
