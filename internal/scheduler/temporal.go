package scheduler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// DefaultTaskQueue is the task queue workers and runners share.
const DefaultTaskQueue = "learning-engine"

// TemporalRunner schedules jobs as Temporal workflows. It only starts
// them; a worker process executes the activities.
type TemporalRunner struct {
	client    client.Client
	taskQueue string
	logger    *zap.Logger
}

// NewTemporalRunner creates a Temporal-backed job runner.
func NewTemporalRunner(c client.Client, taskQueue string, logger *zap.Logger) *TemporalRunner {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemporalRunner{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger.With(zap.String("component", "scheduler.temporal")),
	}
}

// RegisterRecurring starts a cron workflow for the job. Registration is
// idempotent: a schedule that is already running is left alone.
func (r *TemporalRunner) RegisterRecurring(ctx context.Context, spec JobSpec) error {
	if spec.Cron == "" {
		return eris.Errorf("scheduler: job %s: cron spec required", spec.Name)
	}

	opts := client.StartWorkflowOptions{
		ID:           "recurring-" + spec.Name,
		TaskQueue:    r.taskQueue,
		CronSchedule: spec.Cron,
	}

	var (
		we  client.WorkflowRun
		err error
	)
	switch spec.Name {
	case JobLearn:
		cfg := LearningRunConfig{Trigger: string(model.TriggerScheduled)}
		we, err = r.client.ExecuteWorkflow(ctx, opts, LearningRunWorkflow, cfg)
	case JobHealth:
		we, err = r.client.ExecuteWorkflow(ctx, opts, HealthCheckWorkflow)
	default:
		return eris.Errorf("scheduler: job %q cannot run on a schedule", spec.Name)
	}
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			r.logger.Info("recurring job already registered", zap.String("job", spec.Name))
			return nil
		}
		return eris.Wrapf(err, "scheduler: register recurring %s", spec.Name)
	}

	r.logger.Info("recurring job registered",
		zap.String("job", spec.Name),
		zap.String("cron", spec.Cron),
		zap.String("workflow_id", we.GetID()),
	)
	return nil
}

// TriggerNow starts the job's workflow and returns without waiting for
// it. The outcome carries the workflow and run identifiers with a
// running status; the worker finishes the job.
func (r *TemporalRunner) TriggerNow(ctx context.Context, jobName, tenantID string) (*RunOutcome, error) {
	opts := client.StartWorkflowOptions{
		ID:        jobName + "-" + uuid.NewString(),
		TaskQueue: r.taskQueue,
	}

	var (
		we  client.WorkflowRun
		err error
	)
	switch jobName {
	case JobLearn:
		cfg := LearningRunConfig{TenantID: tenantID, Trigger: string(model.TriggerManual)}
		we, err = r.client.ExecuteWorkflow(ctx, opts, LearningRunWorkflow, cfg)
	case JobHealth:
		we, err = r.client.ExecuteWorkflow(ctx, opts, HealthCheckWorkflow)
	case JobBackfill:
		if tenantID == "" {
			return nil, eris.New("scheduler: backfill requires a tenant")
		}
		we, err = r.client.ExecuteWorkflow(ctx, opts, BackfillWorkflow, BackfillConfig{TenantID: tenantID})
	default:
		return nil, eris.Errorf("scheduler: unknown job %q", jobName)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "scheduler: start %s workflow", jobName)
	}

	r.logger.Info("workflow started",
		zap.String("job", jobName),
		zap.String("workflow_id", we.GetID()),
		zap.String("run_id", we.GetRunID()),
	)
	return &RunOutcome{
		JobName:    jobName,
		RunID:      we.GetRunID(),
		WorkflowID: we.GetID(),
		Status:     model.RunStatusRunning,
	}, nil
}
