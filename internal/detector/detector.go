// Package detector implements the four conversion-pattern analyzers. Each
// analyzer is a stateless pass over one tenant's windowed outcome snapshot;
// running one twice over the same snapshot produces an identical result.
package detector

import (
	"context"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/optimizer"
)

// Sample floors. Below the floor an analyzer reports the insufficient-data
// sentinel instead of a learned payload.
const (
	whoMinConverted   = 10
	whoMinTotal       = 30
	whatMinConverting = 5
	whatMinTotal      = 20
	whenMinConverting = 5
	whenMinTotal      = 20
	howMinConverted   = 5
	howMinTotal       = 20

	// minValueSamples gates individual categorical values, content
	// features, and mined sequences.
	minValueSamples = 5
	// minBucketSamples gates day, hour, and channel buckets.
	minBucketSamples = 3
)

// Input is one tenant's outcome snapshot for a learning window.
type Input struct {
	TenantID string
	Window   model.Window
	Leads    []model.Lead
	Touches  []model.Touch
}

// Result is one analyzer's output over one Input.
type Result struct {
	Payload    model.Payload
	SampleSize int
	Confidence float64

	// Sufficient is false when the input missed the analyzer's sample
	// floor and Payload carries the defaults.
	Sufficient bool

	// TouchesSkipped counts touches dropped for missing or unusable
	// content snapshots.
	TouchesSkipped int
}

// Analyzer computes one pattern type. Implementations are stateless and
// safe for concurrent use across tenants.
type Analyzer interface {
	Type() model.PatternType
	Analyze(ctx context.Context, in Input) (Result, error)
}

// All returns the four analyzers in canonical order.
func All(cfg optimizer.Config) []Analyzer {
	return []Analyzer{
		NewWhoAnalyzer(cfg),
		NewWhatAnalyzer(),
		NewWhenAnalyzer(),
		NewHowAnalyzer(),
	}
}

// FloorFor returns the converted and total sample floors for a pattern
// type. A stored pattern whose sample size sits under the total floor was
// promoted by mistake and is worth flagging.
func FloorFor(t model.PatternType) (minConverted, minTotal int) {
	switch t {
	case model.PatternWho:
		return whoMinConverted, whoMinTotal
	case model.PatternWhat:
		return whatMinConverting, whatMinTotal
	case model.PatternWhen:
		return whenMinConverting, whenMinTotal
	case model.PatternHow:
		return howMinConverted, howMinTotal
	default:
		return 0, 0
	}
}

func sentinel(t model.PatternType, sampleSize int) Result {
	return Result{
		Payload:    model.DefaultPayload(t),
		SampleSize: sampleSize,
	}
}
