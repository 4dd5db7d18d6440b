package scheduler

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/orchestrator"
)

// Learner is the orchestrator surface the job runners drive.
// *orchestrator.Orchestrator satisfies it.
type Learner interface {
	RunAll(ctx context.Context, trigger model.RunTrigger) (*model.LearningRun, error)
	RunTenant(ctx context.Context, tenantID string, trigger model.RunTrigger) (*model.LearningRun, error)
	Backfill(ctx context.Context, tenantID string) (*orchestrator.BackfillResult, error)
}

// HealthChecker runs one pattern health scan and delivers alerts.
// *health.Checker satisfies it.
type HealthChecker interface {
	CheckNow(ctx context.Context) (findings, delivered int, err error)
}

// Jobs binds job names to the work they perform. The ticker runner calls
// it inline; the Temporal worker calls it from activities.
type Jobs struct {
	learner Learner
	health  HealthChecker
}

// NewJobs creates the job dispatcher.
func NewJobs(learner Learner, health HealthChecker) *Jobs {
	return &Jobs{learner: learner, health: health}
}

// Run executes one job synchronously and reports its terminal outcome.
func (j *Jobs) Run(ctx context.Context, jobName, tenantID string, trigger model.RunTrigger) (*RunOutcome, error) {
	switch jobName {
	case JobLearn:
		var (
			run *model.LearningRun
			err error
		)
		if tenantID == "" {
			run, err = j.learner.RunAll(ctx, trigger)
		} else {
			run, err = j.learner.RunTenant(ctx, tenantID, trigger)
		}
		if err != nil {
			return nil, err
		}
		return outcomeFromRun(JobLearn, run), nil

	case JobHealth:
		if j.health == nil {
			return nil, eris.New("scheduler: no health checker configured")
		}
		findings, delivered, err := j.health.CheckNow(ctx)
		if err != nil {
			return nil, err
		}
		return &RunOutcome{
			JobName:   JobHealth,
			Status:    model.RunStatusComplete,
			Findings:  findings,
			Delivered: delivered,
		}, nil

	case JobBackfill:
		if tenantID == "" {
			return nil, eris.New("scheduler: backfill requires a tenant")
		}
		res, err := j.learner.Backfill(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		out := outcomeFromRun(JobBackfill, res.Run)
		out.Report = &res.Report
		return out, nil

	default:
		return nil, eris.Errorf("scheduler: unknown job %q", jobName)
	}
}

func outcomeFromRun(jobName string, run *model.LearningRun) *RunOutcome {
	return &RunOutcome{
		JobName: jobName,
		RunID:   run.ID,
		Status:  run.Status,
		Summary: run.Summary,
	}
}
