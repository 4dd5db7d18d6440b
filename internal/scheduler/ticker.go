package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// TickerRunner runs recurring jobs on in-process tickers. It is the
// local and dev backend; production schedules ride Temporal.
type TickerRunner struct {
	jobs   *Jobs
	logger *zap.Logger

	mu    sync.Mutex
	specs []JobSpec
}

// NewTickerRunner creates a ticker-backed job runner.
func NewTickerRunner(jobs *Jobs, logger *zap.Logger) *TickerRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickerRunner{
		jobs:   jobs,
		logger: logger.With(zap.String("component", "scheduler.ticker")),
	}
}

// RegisterRecurring records a job for the next Run. Cron specs are
// ignored; the ticker backend schedules by interval alone.
func (r *TickerRunner) RegisterRecurring(_ context.Context, spec JobSpec) error {
	if spec.Name == "" {
		return eris.New("scheduler: job name required")
	}
	if spec.Interval <= 0 {
		return eris.Errorf("scheduler: job %s: interval required", spec.Name)
	}

	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()

	r.logger.Info("recurring job registered",
		zap.String("job", spec.Name),
		zap.Duration("interval", spec.Interval),
	)
	return nil
}

// TriggerNow runs the job inline and returns its terminal outcome.
func (r *TickerRunner) TriggerNow(ctx context.Context, jobName, tenantID string) (*RunOutcome, error) {
	return r.jobs.Run(ctx, jobName, tenantID, model.TriggerManual)
}

// Run starts one ticker per registered job and blocks until ctx is
// cancelled.
func (r *TickerRunner) Run(ctx context.Context) {
	r.mu.Lock()
	specs := make([]JobSpec, len(r.specs))
	copy(specs, r.specs)
	r.mu.Unlock()

	if len(specs) == 0 {
		r.logger.Warn("no recurring jobs registered")
		return
	}

	var wg sync.WaitGroup
	for _, spec := range specs {
		spec := spec
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx, spec)
		}()
	}
	wg.Wait()
}

func (r *TickerRunner) loop(ctx context.Context, spec JobSpec) {
	log := r.logger.With(zap.String("job", spec.Name))
	log.Info("job loop started", zap.Duration("interval", spec.Interval))

	ticker := time.NewTicker(spec.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("job loop stopped")
			return
		case <-ticker.C:
			r.fire(ctx, spec, log)
		}
	}
}

// fire runs one scheduled pass. Failures are logged and swallowed; the
// next tick tries again.
func (r *TickerRunner) fire(ctx context.Context, spec JobSpec, log *zap.Logger) {
	out, err := r.jobs.Run(ctx, spec.Name, "", model.TriggerScheduled)
	if err != nil {
		log.Error("scheduled job failed", zap.Error(err))
		return
	}
	log.Info("scheduled job complete",
		zap.String("status", string(out.Status)),
		zap.String("run_id", out.RunID),
		zap.Int("findings", out.Findings),
	)
}
