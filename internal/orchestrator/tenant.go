package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/outfieldhq/learning-engine/internal/detector"
	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/resilience"
)

const (
	// dlqMaxRetries bounds how many drains may rerun one parked tenant.
	dlqMaxRetries = 5

	// dlqRetryDelay spaces a parked tenant's retries apart.
	dlqRetryDelay = time.Hour
)

// tenantResult is one tenant's contribution to the run summary.
type tenantResult struct {
	tenantID  string
	stored    int
	sentinels int
	skipped   int
	failures  []model.TenantFailure

	// failed marks the tenant for the retry queue: the snapshot was
	// unreadable or a pattern write exhausted its retries. cause holds the
	// first such error and causeType the pattern it hit, empty when the
	// whole tenant failed before any analyzer ran.
	failed    bool
	cause     error
	causeType model.PatternType
}

func (r tenantResult) mergeInto(s *model.RunSummary) {
	if r.failed {
		s.TenantsFailed++
	} else {
		s.TenantsProcessed++
	}
	s.PatternsStored += r.stored
	s.SentinelsRecorded += r.sentinels
	s.TouchesSkipped += r.skipped
	s.Failures = append(s.Failures, r.failures...)
}

// learnTenant loads one tenant's snapshot, runs the four analyzers
// concurrently, and persists each result. Analyzer and write failures are
// recorded per type; only an unreadable snapshot skips the whole tenant.
func (o *Orchestrator) learnTenant(ctx context.Context, tenantID string, window model.Window) tenantResult {
	log := o.logger.With(zap.String("tenant_id", tenantID))
	res := tenantResult{tenantID: tenantID}

	snap, err := o.source.FetchSnapshot(ctx, tenantID, window)
	if err != nil {
		log.Error("snapshot load failed", zap.Error(err))
		res.failed = true
		res.cause = err
		res.failures = append(res.failures, model.TenantFailure{TenantID: tenantID, Reason: err.Error()})
		return res
	}

	in := detector.Input{
		TenantID: snap.TenantID,
		Window:   snap.Window,
		Leads:    snap.Leads,
		Touches:  snap.Touches,
	}
	log.Debug("snapshot loaded",
		zap.Int("leads", len(in.Leads)),
		zap.Int("touches", len(in.Touches)),
	)

	results := make([]detector.Result, len(o.analyzers))
	errs := make([]error, len(o.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range o.analyzers {
		i, a := i, a
		g.Go(func() error {
			results[i], errs[i] = a.Analyze(gctx, in)
			return nil // analyzer failures are handled per type below
		})
	}
	_ = g.Wait()

	now := o.nowFunc().UTC()
	for i, a := range o.analyzers {
		t := a.Type()
		if errs[i] != nil {
			// The previous pattern stays current for this type.
			log.Error("detector failed",
				zap.String("pattern_type", string(t)),
				zap.Error(errs[i]),
			)
			res.failures = append(res.failures, model.TenantFailure{TenantID: tenantID, Type: t, Reason: errs[i].Error()})
			continue
		}
		o.persistResult(ctx, log, &res, t, results[i], now)
	}
	return res
}

// persistResult writes one analyzer result: promotion through SavePattern
// when the result clears both the sample floor and the confidence
// threshold, a version-0 history row otherwise.
func (o *Orchestrator) persistResult(ctx context.Context, log *zap.Logger, res *tenantResult, t model.PatternType, dr detector.Result, now time.Time) {
	res.skipped += dr.TouchesSkipped

	p := &model.Pattern{
		TenantID:   res.tenantID,
		Type:       t,
		SampleSize: dr.SampleSize,
		Confidence: dr.Confidence,
		ComputedAt: now,
		ValidUntil: now.AddDate(0, 0, o.cfg.ValidityDays),
		Payload:    dr.Payload,
	}

	if !dr.Sufficient || dr.Confidence < o.cfg.MinConfidence {
		reason := "low confidence"
		if !dr.Sufficient {
			reason = "insufficient data"
		}
		log.Info("archiving result without promotion",
			zap.String("pattern_type", string(t)),
			zap.String("reason", reason),
			zap.Int("sample_size", dr.SampleSize),
			zap.Float64("confidence", dr.Confidence),
		)
		if o.cfg.DryRun {
			res.sentinels++
			return
		}
		err := resilience.Do(ctx, o.storeRetry(log, t), func(ctx context.Context) error {
			return o.store.RecordHistory(ctx, p)
		})
		if err != nil {
			o.failWrite(log, res, t, err)
			return
		}
		res.sentinels++
		return
	}

	if o.cfg.DryRun {
		log.Info("dry run: would store pattern",
			zap.String("pattern_type", string(t)),
			zap.Int("sample_size", dr.SampleSize),
			zap.Float64("confidence", dr.Confidence),
		)
		res.stored++
		return
	}

	saved, err := resilience.DoVal(ctx, o.storeRetry(log, t), func(ctx context.Context) (*model.Pattern, error) {
		return o.store.SavePattern(ctx, p)
	})
	if err != nil {
		o.failWrite(log, res, t, err)
		return
	}
	res.stored++
	log.Info("pattern stored",
		zap.String("pattern_type", string(t)),
		zap.Int("version", saved.Version),
		zap.Int("sample_size", saved.SampleSize),
		zap.Float64("confidence", saved.Confidence),
	)

	if who, ok := saved.Who(); ok {
		o.refreshWeights(ctx, log, res, saved, who)
	}
}

// refreshWeights pushes a freshly stored WHO result into the weight cache.
// On failure the scorer keeps serving the previous consistent set, so the
// tenant is not marked failed.
func (o *Orchestrator) refreshWeights(ctx context.Context, log *zap.Logger, res *tenantResult, saved *model.Pattern, who *model.WhoPayload) {
	entry := &model.WeightCacheEntry{
		TenantID:   saved.TenantID,
		Weights:    who.RecommendedWeights,
		SampleSize: saved.SampleSize,
		Confidence: saved.Confidence,
		UpdatedAt:  saved.ComputedAt,
	}
	err := resilience.Do(ctx, o.storeRetry(log, saved.Type), func(ctx context.Context) error {
		return o.weights.Refresh(ctx, entry)
	})
	if err != nil {
		log.Error("weight cache refresh failed", zap.Error(err))
		res.failures = append(res.failures, model.TenantFailure{
			TenantID: saved.TenantID,
			Type:     saved.Type,
			Reason:   "refresh weight cache: " + err.Error(),
		})
	}
}

// storeRetry is the write policy: two retries with a fixed delay, then the
// tenant is parked in the retry queue.
func (o *Orchestrator) storeRetry(log *zap.Logger, t model.PatternType) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: o.cfg.StoreRetryDelay,
		MaxBackoff:     o.cfg.StoreRetryDelay,
		Multiplier:     1.0,
		JitterFraction: 0,
		OnRetry: func(attempt int, err error) {
			log.Warn("retrying pattern write",
				zap.String("pattern_type", string(t)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		},
	}
}

func (o *Orchestrator) failWrite(log *zap.Logger, res *tenantResult, t model.PatternType, err error) {
	log.Error("pattern write failed",
		zap.String("pattern_type", string(t)),
		zap.Error(err),
	)
	res.failures = append(res.failures, model.TenantFailure{TenantID: res.tenantID, Type: t, Reason: err.Error()})
	res.failed = true
	if res.cause == nil {
		res.cause = err
		res.causeType = t
	}
}

// enqueueRetry parks a failed tenant in the retry queue for a later drain.
// Dry runs and the drain itself never enqueue; the drain settles existing
// entries instead.
func (o *Orchestrator) enqueueRetry(ctx context.Context, tenantID string, t model.PatternType, cause error) {
	if o.cfg.DryRun || cause == nil {
		return
	}
	now := o.nowFunc().UTC()
	entry := resilience.DLQEntry{
		TenantID:     tenantID,
		PatternType:  string(t),
		Error:        cause.Error(),
		ErrorType:    resilience.ClassifyError(cause),
		MaxRetries:   dlqMaxRetries,
		NextRetryAt:  now.Add(dlqRetryDelay),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := o.store.EnqueueDLQ(ctx, entry); err != nil {
		o.logger.Error("failed to enqueue retry entry",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
}
