// Package orchestrator drives the learning runs: the scheduled batch over
// every active tenant, manual single-tenant runs, the backfill flow, and
// the drain of the retry queue. Tenants fan out under a concurrency cap
// and a rate limit; inside one tenant the four analyzers run concurrently.
// A failure in one analyzer or one tenant is logged and recorded in the
// run summary, never propagated to the rest of the batch.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/outfieldhq/learning-engine/internal/detector"
	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/optimizer"
	"github.com/outfieldhq/learning-engine/internal/outcome"
	"github.com/outfieldhq/learning-engine/internal/resilience"
	"github.com/outfieldhq/learning-engine/internal/weights"
)

// Config tunes a learning run.
type Config struct {
	// WindowDays bounds the outcome window, ending at the run start.
	WindowDays int

	// ValidityDays sets how long a stored pattern stays valid.
	ValidityDays int

	// MinConfidence is the promotion threshold. Results below it are
	// archived to history but never become the current pattern.
	MinConfidence float64

	// MaxConcurrentTenants caps the tenant fan-out.
	MaxConcurrentTenants int

	// TenantsPerSecond throttles tenant starts so a wide batch cannot
	// saturate the outcome database.
	TenantsPerSecond float64

	// StoreRetryDelay is the fixed delay between pattern write retries.
	StoreRetryDelay time.Duration

	// DryRun computes and logs results without writing anything: no run
	// record, no patterns, no history, no queue changes.
	DryRun bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		WindowDays:           90,
		ValidityDays:         14,
		MinConfidence:        0.3,
		MaxConcurrentTenants: 4,
		TenantsPerSecond:     2.0,
		StoreRetryDelay:      5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WindowDays <= 0 {
		c.WindowDays = def.WindowDays
	}
	if c.ValidityDays <= 0 {
		c.ValidityDays = def.ValidityDays
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = def.MinConfidence
	}
	if c.MaxConcurrentTenants <= 0 {
		c.MaxConcurrentTenants = def.MaxConcurrentTenants
	}
	if c.TenantsPerSecond <= 0 {
		c.TenantsPerSecond = def.TenantsPerSecond
	}
	if c.StoreRetryDelay <= 0 {
		c.StoreRetryDelay = def.StoreRetryDelay
	}
	return c
}

// Source feeds the analyzers with windowed outcome snapshots.
type Source interface {
	ListActiveTenants(ctx context.Context, window model.Window) ([]string, error)
	FetchSnapshot(ctx context.Context, tenantID string, window model.Window) (*outcome.Snapshot, error)
}

// PatternStore is the slice of the pattern store the orchestrator uses.
type PatternStore interface {
	SavePattern(ctx context.Context, p *model.Pattern) (*model.Pattern, error)
	RecordHistory(ctx context.Context, p *model.Pattern) error
	CreateRun(ctx context.Context, trigger model.RunTrigger, tenantID string) (*model.LearningRun, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
}

// Restorer rebuilds missing snapshot columns ahead of a backfill run.
type Restorer interface {
	Run(ctx context.Context, tenantID string) (outcome.Report, error)
}

// Orchestrator coordinates snapshot loads, analyzers, store writes, and
// run bookkeeping.
type Orchestrator struct {
	cfg       Config
	source    Source
	store     PatternStore
	weights   *weights.Cache
	restorer  Restorer
	analyzers []detector.Analyzer
	limiter   *rate.Limiter
	logger    *zap.Logger

	nowFunc func() time.Time
}

// New creates an Orchestrator. A nil or empty analyzers slice selects the
// four standard analyzers with default optimizer settings; restorer may be
// nil when the backfill flow is not needed.
func New(cfg Config, src Source, st PatternStore, wc *weights.Cache, restorer Restorer, analyzers []detector.Analyzer, logger *zap.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(analyzers) == 0 {
		analyzers = detector.All(optimizer.DefaultConfig())
	}
	return &Orchestrator{
		cfg:       cfg,
		source:    src,
		store:     st,
		weights:   wc,
		restorer:  restorer,
		analyzers: analyzers,
		limiter:   rate.NewLimiter(rate.Limit(cfg.TenantsPerSecond), cfg.MaxConcurrentTenants),
		logger:    logger.With(zap.String("component", "orchestrator")),
		nowFunc:   time.Now,
	}
}

// RunAll executes one learning pass over every tenant with terminal leads
// in the window. Individual tenant failures land in the run summary; only
// a failed tenant enumeration aborts the run.
func (o *Orchestrator) RunAll(ctx context.Context, trigger model.RunTrigger) (*model.LearningRun, error) {
	window := o.window()
	run, err := o.beginRun(ctx, trigger, "")
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create run")
	}

	tenants, err := o.source.ListActiveTenants(ctx, window)
	if err != nil {
		o.finishRun(ctx, run, model.RunStatusFailed, model.RunSummary{})
		return run, eris.Wrap(err, "orchestrator: list active tenants")
	}
	if len(tenants) == 0 {
		o.logger.Info("no active tenants in window",
			zap.Time("window_from", window.From),
			zap.Time("window_to", window.To),
		)
		o.finishRun(ctx, run, model.RunStatusComplete, model.RunSummary{})
		return run, nil
	}

	o.logger.Info("learning run started",
		zap.String("run_id", run.ID),
		zap.String("trigger", string(trigger)),
		zap.Int("tenants", len(tenants)),
		zap.Int("concurrency", o.cfg.MaxConcurrentTenants),
		zap.Time("window_from", window.From),
		zap.Time("window_to", window.To),
	)

	summary := o.processTenants(ctx, tenants, window)
	status := statusFor(summary)
	o.finishRun(ctx, run, status, summary)

	o.logger.Info("learning run complete",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Int("tenants_processed", summary.TenantsProcessed),
		zap.Int("tenants_failed", summary.TenantsFailed),
		zap.Int("patterns_stored", summary.PatternsStored),
		zap.Int("sentinels_recorded", summary.SentinelsRecorded),
		zap.Int("touches_skipped", summary.TouchesSkipped),
	)
	return run, nil
}

// RunTenant executes one learning pass for a single tenant.
func (o *Orchestrator) RunTenant(ctx context.Context, tenantID string, trigger model.RunTrigger) (*model.LearningRun, error) {
	window := o.window()
	run, err := o.beginRun(ctx, trigger, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create run")
	}

	res := o.learnTenant(ctx, tenantID, window)
	if res.failed {
		o.enqueueRetry(ctx, tenantID, res.causeType, res.cause)
	}

	var summary model.RunSummary
	res.mergeInto(&summary)
	o.finishRun(ctx, run, statusFor(summary), summary)
	return run, nil
}

// BackfillResult pairs the snapshot restoration report with the learning
// run that followed it.
type BackfillResult struct {
	Report outcome.Report     `json:"report"`
	Run    *model.LearningRun `json:"run"`
}

// Backfill reconstructs missing touch content and lead score snapshots for
// one tenant, then runs a full learning pass over the restored data.
func (o *Orchestrator) Backfill(ctx context.Context, tenantID string) (*BackfillResult, error) {
	if o.restorer == nil {
		return nil, eris.New("orchestrator: no restorer configured")
	}
	report, err := o.restorer.Run(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: backfill %s", tenantID)
	}

	run, err := o.RunTenant(ctx, tenantID, model.TriggerBackfill)
	if err != nil {
		return &BackfillResult{Report: report}, err
	}
	return &BackfillResult{Report: report, Run: run}, nil
}

// processTenants fans the batch out with a concurrency cap and rate limit.
// Goroutines record their outcome in the shared summary and never return
// errors, so one tenant can never cancel another's work.
func (o *Orchestrator) processTenants(ctx context.Context, tenants []string, window model.Window) model.RunSummary {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentTenants)

	var (
		mu      sync.Mutex
		summary model.RunSummary
	)
	for _, tenantID := range tenants {
		tenantID := tenantID
		g.Go(func() error {
			if err := o.limiter.Wait(gctx); err != nil {
				mu.Lock()
				summary.TenantsFailed++
				summary.Failures = append(summary.Failures, model.TenantFailure{TenantID: tenantID, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			res := o.learnTenant(gctx, tenantID, window)
			if res.failed {
				o.enqueueRetry(gctx, tenantID, res.causeType, res.cause)
			}

			mu.Lock()
			res.mergeInto(&summary)
			mu.Unlock()
			return nil // don't abort the batch on individual failure
		})
	}
	_ = g.Wait()
	return summary
}

func (o *Orchestrator) window() model.Window {
	to := o.nowFunc().UTC()
	return model.Window{From: to.AddDate(0, 0, -o.cfg.WindowDays), To: to}
}

// beginRun opens the run record. Dry runs get an in-memory record with an
// empty ID and never touch the store.
func (o *Orchestrator) beginRun(ctx context.Context, trigger model.RunTrigger, tenantID string) (*model.LearningRun, error) {
	if o.cfg.DryRun {
		o.logger.Info("dry run: results will not be persisted", zap.String("trigger", string(trigger)))
		return &model.LearningRun{
			Trigger:   trigger,
			TenantID:  tenantID,
			Status:    model.RunStatusRunning,
			StartedAt: o.nowFunc().UTC(),
		}, nil
	}
	return o.store.CreateRun(ctx, trigger, tenantID)
}

// finishRun stamps the outcome onto the in-memory run and persists it.
// The computed summary is returned to the caller either way, so a failed
// bookkeeping write is logged rather than propagated.
func (o *Orchestrator) finishRun(ctx context.Context, run *model.LearningRun, status model.RunStatus, summary model.RunSummary) {
	now := o.nowFunc().UTC()
	run.Status = status
	run.Summary = summary
	run.FinishedAt = &now
	if o.cfg.DryRun {
		return
	}
	if err := o.store.CompleteRun(ctx, run.ID, status, summary); err != nil {
		o.logger.Warn("failed to finalize run record",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

// statusFor maps a finished summary onto the run status: no failures means
// complete, nothing but failures means failed, a mix means partial.
func statusFor(summary model.RunSummary) model.RunStatus {
	switch {
	case summary.TenantsFailed == 0:
		return model.RunStatusComplete
	case summary.TenantsProcessed == 0:
		return model.RunStatusFailed
	default:
		return model.RunStatusPartial
	}
}
