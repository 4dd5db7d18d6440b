package detector

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// Confidence curve midpoints and scales. WHO ramps on converted leads and
// crosses 0.5 at 50; the touch-based analyzers ramp on converting touches
// and cross 0.5 at 25.
const (
	whoConfidenceMid     = 50.0
	whoConfidenceScale   = 15.0
	touchConfidenceMid   = 25.0
	touchConfidenceScale = 8.0
)

// maxLift caps a lift whose baseline is zero so payloads stay JSON-safe.
const maxLift = 10.0

func confidence(samples int, mid, scale float64) float64 {
	c := 1 / (1 + math.Exp(-(float64(samples)-mid)/scale))
	return clampFloat(c, 0, 1)
}

// liftOf returns rate/baseline. A zero baseline with a positive rate
// reports maxLift; zero over zero is neutral.
func liftOf(rate, baseline float64) float64 {
	if baseline <= 0 {
		if rate <= 0 {
			return 1
		}
		return maxLift
	}
	return rate / baseline
}

// medianOf returns the sample median. Even-length input takes the lower
// middle value, matching the empirical quantile convention, so repeated
// runs agree exactly.
func medianOf(xs []float64) float64 {
	return quantileOf(xs, 0.5)
}

// quantileOf returns the empirical p-quantile: the smallest sample whose
// cumulative weight reaches p.
func quantileOf(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// rankValueStats orders by lift descending, breaking ties by larger sample,
// then value ascending.
func rankValueStats(stats []model.ValueStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Lift != stats[j].Lift {
			return stats[i].Lift > stats[j].Lift
		}
		if stats[i].SampleSize != stats[j].SampleSize {
			return stats[i].SampleSize > stats[j].SampleSize
		}
		return stats[i].Value < stats[j].Value
	})
}

// rankFeatureLifts orders by lift descending, breaking ties by larger
// sample, then feature ascending.
func rankFeatureLifts(lifts []model.FeatureLift) {
	sort.Slice(lifts, func(i, j int) bool {
		if lifts[i].Lift != lifts[j].Lift {
			return lifts[i].Lift > lifts[j].Lift
		}
		if lifts[i].Samples != lifts[j].Samples {
			return lifts[i].Samples > lifts[j].Samples
		}
		return lifts[i].Feature < lifts[j].Feature
	})
}
