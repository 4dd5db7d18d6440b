// Package health watches stored patterns for staleness and broken learned
// weights. Findings are logged and optionally pushed to a webhook; a health
// pass never fails the run it watches.
package health

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/detector"
	"github.com/outfieldhq/learning-engine/internal/model"
)

// Severity grades a finding.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Kind identifies what a finding is about.
type Kind string

const (
	KindExpired       Kind = "pattern_expired"
	KindNearExpiry    Kind = "pattern_near_expiry"
	KindLowSamples    Kind = "low_sample_size"
	KindLowConfidence Kind = "low_confidence"
	KindBadWeights    Kind = "weights_out_of_band"
	KindDLQBacklog    Kind = "dlq_backlog"
)

// Finding is one health observation about the pattern store.
type Finding struct {
	Severity  Severity          `json:"severity"`
	Kind      Kind              `json:"kind"`
	TenantID  string            `json:"tenant_id,omitempty"`
	Type      model.PatternType `json:"pattern_type,omitempty"`
	Message   string            `json:"message"`
	Details   map[string]any    `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Thresholds control when the scanner reports a pattern.
type Thresholds struct {
	// NearExpiryDays flags patterns this close to valid_until.
	NearExpiryDays int
	// MinConfidence flags stored patterns under this confidence.
	MinConfidence float64
	// WeightSumTolerance allows float drift around the weight target sum.
	WeightSumTolerance float64
}

// DefaultThresholds returns the standing scan thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NearExpiryDays:     3,
		MinConfidence:      0.3,
		WeightSumTolerance: 0.01,
	}
}

// Store is the slice of the pattern store the scanner reads.
type Store interface {
	ListAllPatterns(ctx context.Context) ([]*model.Pattern, error)
	CountDLQ(ctx context.Context) (int, error)
}

// Scanner sweeps every stored pattern and reports findings.
type Scanner struct {
	store      Store
	thresholds Thresholds
	logger     *zap.Logger

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewScanner creates a scanner over st.
func NewScanner(st Store, thresholds Thresholds, logger *zap.Logger) *Scanner {
	if thresholds.NearExpiryDays <= 0 {
		thresholds.NearExpiryDays = 3
	}
	if thresholds.WeightSumTolerance <= 0 {
		thresholds.WeightSumTolerance = 0.01
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		store:      st,
		thresholds: thresholds,
		logger:     logger.With(zap.String("component", "health")),
		nowFunc:    time.Now,
	}
}

// Scan sweeps all stored patterns once. Findings come back in store order
// (tenant, then type), with a queue-depth finding last.
func (s *Scanner) Scan(ctx context.Context) ([]Finding, error) {
	patterns, err := s.store.ListAllPatterns(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "health: list patterns")
	}
	now := s.nowFunc().UTC()

	var findings []Finding
	for _, p := range patterns {
		findings = append(findings, s.checkPattern(now, p)...)
	}

	depth, err := s.store.CountDLQ(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "health: count dlq")
	}
	if depth > 0 {
		findings = append(findings, Finding{
			Severity:  SeverityWarning,
			Kind:      KindDLQBacklog,
			Message:   fmt.Sprintf("%d failed learning task(s) waiting in the dead letter queue", depth),
			Details:   map[string]any{"depth": depth},
			Timestamp: now,
		})
	}

	s.logger.Info("health scan complete",
		zap.Int("patterns", len(patterns)),
		zap.Int("findings", len(findings)),
	)
	return findings, nil
}

func (s *Scanner) checkPattern(now time.Time, p *model.Pattern) []Finding {
	var findings []Finding
	report := func(kind Kind, sev Severity, msg string, details map[string]any) {
		findings = append(findings, Finding{
			Severity:  sev,
			Kind:      kind,
			TenantID:  p.TenantID,
			Type:      p.Type,
			Message:   msg,
			Details:   details,
			Timestamp: now,
		})
	}

	nearExpiry := time.Duration(s.thresholds.NearExpiryDays) * 24 * time.Hour
	switch {
	case p.ValidUntil.Before(now):
		report(KindExpired, SeverityCritical,
			fmt.Sprintf("pattern expired %s ago", now.Sub(p.ValidUntil).Round(time.Hour)),
			map[string]any{"valid_until": p.ValidUntil, "version": p.Version})
	case p.ValidUntil.Sub(now) <= nearExpiry:
		report(KindNearExpiry, SeverityWarning,
			fmt.Sprintf("pattern expires in %s", p.ValidUntil.Sub(now).Round(time.Hour)),
			map[string]any{"valid_until": p.ValidUntil, "version": p.Version})
	}

	if _, minTotal := detector.FloorFor(p.Type); p.SampleSize < minTotal {
		report(KindLowSamples, SeverityWarning,
			fmt.Sprintf("sample size %d is under the %d floor", p.SampleSize, minTotal),
			map[string]any{"sample_size": p.SampleSize, "floor": minTotal})
	}
	if p.Confidence < s.thresholds.MinConfidence {
		report(KindLowConfidence, SeverityWarning,
			fmt.Sprintf("confidence %.2f is under the %.2f threshold", p.Confidence, s.thresholds.MinConfidence),
			map[string]any{"confidence": p.Confidence, "threshold": s.thresholds.MinConfidence})
	}

	if who, ok := p.Who(); ok {
		findings = append(findings, s.checkWeights(now, p, who.RecommendedWeights)...)
	}
	return findings
}

// checkWeights verifies a WHO pattern's recommended weights: every
// component present, each inside [WeightMin, WeightMax], and the set
// summing to WeightTargetSum. A pattern serving weights outside those
// bounds corrupts every lead score downstream.
func (s *Scanner) checkWeights(now time.Time, p *model.Pattern, weights map[string]float64) []Finding {
	var findings []Finding
	report := func(msg string, details map[string]any) {
		findings = append(findings, Finding{
			Severity:  SeverityCritical,
			Kind:      KindBadWeights,
			TenantID:  p.TenantID,
			Type:      p.Type,
			Message:   msg,
			Details:   details,
			Timestamp: now,
		})
	}

	sum := 0.0
	for _, name := range model.ScoreComponents {
		w, ok := weights[name]
		if !ok {
			report(fmt.Sprintf("recommended weights are missing %s", name),
				map[string]any{"component": name})
			continue
		}
		sum += w
		if w < model.WeightMin || w > model.WeightMax {
			report(fmt.Sprintf("weight %s=%.3f outside [%.2f, %.2f]",
				name, w, model.WeightMin, model.WeightMax),
				map[string]any{"component": name, "weight": w})
		}
	}
	if math.Abs(sum-model.WeightTargetSum) > s.thresholds.WeightSumTolerance {
		report(fmt.Sprintf("weights sum to %.3f, want %.2f", sum, model.WeightTargetSum),
			map[string]any{"sum": sum, "target": model.WeightTargetSum})
	}
	return findings
}
