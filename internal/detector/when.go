package detector

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// Gap and timing sanity windows, in days.
const (
	minGapDays    = 1.0
	maxGapDays    = 14.0
	maxTimingDays = 90.0
)

// WhenAnalyzer answers "when should we reach out": day and hour conversion
// lift, converting touch position, inter-touch gaps, and time to convert.
type WhenAnalyzer struct{}

func NewWhenAnalyzer() *WhenAnalyzer { return &WhenAnalyzer{} }

func (a *WhenAnalyzer) Type() model.PatternType { return model.PatternWhen }

func (a *WhenAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	touches := in.Touches
	converting := 0
	for i := range touches {
		if touches[i].LedToBooking {
			converting++
		}
	}

	if converting < whenMinConverting || len(touches) < whenMinTotal {
		return sentinel(model.PatternWhen, len(touches)), nil
	}

	overall := float64(converting) / float64(len(touches))
	seqs := buildSequences(touches)
	convSeqs := convertedOnly(seqs)

	dist, peak, avg := touchDistribution(touches)

	payload := &model.WhenPayload{
		BestDays:                    dayStats(touches, overall),
		BestHours:                   hourStats(touches, overall),
		ConvertingTouchDistribution: dist,
		PeakConvertingTouch:         peak,
		AvgTouchesToConvert:         avg,
		OptimalSequenceGaps:         sequenceGaps(convSeqs),
		ConversionTiming:            conversionTiming(convSeqs),
	}

	return Result{
		Payload:    payload,
		SampleSize: len(touches),
		Confidence: confidence(converting, touchConfidenceMid, touchConfidenceScale),
		Sufficient: true,
	}, nil
}

func convertedOnly(seqs []sequence) []sequence {
	out := make([]sequence, 0, len(seqs))
	for _, s := range seqs {
		if s.converted {
			out = append(out, s)
		}
	}
	return out
}

// dayStats ranks weekdays by conversion rate. Send times are bucketed in
// UTC; buckets below minBucketSamples are dropped.
func dayStats(touches []model.Touch, overall float64) []model.DayStat {
	var total, converted [7]int
	for i := range touches {
		d := int(touches[i].SentAt.UTC().Weekday())
		total[d]++
		if touches[i].LedToBooking {
			converted[d]++
		}
	}

	stats := make([]model.DayStat, 0, 7)
	for d := 0; d < 7; d++ {
		if total[d] < minBucketSamples {
			continue
		}
		rate := float64(converted[d]) / float64(total[d])
		stats = append(stats, model.DayStat{
			Weekday:        d,
			Day:            time.Weekday(d).String(),
			ConversionRate: rate,
			Lift:           liftOf(rate, overall),
			Samples:        total[d],
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ConversionRate != stats[j].ConversionRate {
			return stats[i].ConversionRate > stats[j].ConversionRate
		}
		if stats[i].Samples != stats[j].Samples {
			return stats[i].Samples > stats[j].Samples
		}
		return stats[i].Weekday < stats[j].Weekday
	})
	return stats
}

// hourStats ranks send hours (UTC) by conversion rate.
func hourStats(touches []model.Touch, overall float64) []model.HourStat {
	var total, converted [24]int
	for i := range touches {
		h := touches[i].SentAt.UTC().Hour()
		total[h]++
		if touches[i].LedToBooking {
			converted[h]++
		}
	}

	stats := make([]model.HourStat, 0, 24)
	for h := 0; h < 24; h++ {
		if total[h] < minBucketSamples {
			continue
		}
		rate := float64(converted[h]) / float64(total[h])
		stats = append(stats, model.HourStat{
			Hour:           h,
			ConversionRate: rate,
			Lift:           liftOf(rate, overall),
			Samples:        total[h],
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ConversionRate != stats[j].ConversionRate {
			return stats[i].ConversionRate > stats[j].ConversionRate
		}
		if stats[i].Samples != stats[j].Samples {
			return stats[i].Samples > stats[j].Samples
		}
		return stats[i].Hour < stats[j].Hour
	})
	return stats
}

// touchDistribution histograms which 1-indexed touch number the converting
// action occupied. Peak is the modal position; a tie goes to the earlier
// position.
func touchDistribution(touches []model.Touch) (map[int]float64, int, float64) {
	counts := make(map[int]int)
	total := 0
	sum := 0
	for i := range touches {
		if !touches[i].LedToBooking {
			continue
		}
		counts[touches[i].TouchNumber]++
		sum += touches[i].TouchNumber
		total++
	}
	if total == 0 {
		return map[int]float64{}, 0, 0
	}

	dist := make(map[int]float64, len(counts))
	peak, peakCount := 0, 0
	positions := make([]int, 0, len(counts))
	for pos := range counts {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		dist[pos] = float64(counts[pos]) / float64(total)
		if counts[pos] > peakCount {
			peak = pos
			peakCount = counts[pos]
		}
	}

	return dist, peak, float64(sum) / float64(total)
}

// sequenceGaps reports the median day gap between each adjacent pair of
// touch positions across converted sequences, keyed by the earlier
// position. Medians take the lower middle value for even-length input and
// are clamped to [1,14] days.
func sequenceGaps(convSeqs []sequence) map[int]int {
	gapsByPosition := make(map[int][]float64)
	for _, s := range convSeqs {
		for i := 1; i < len(s.touches); i++ {
			gap := s.touches[i].SentAt.Sub(s.touches[i-1].SentAt).Hours() / 24
			gapsByPosition[i] = append(gapsByPosition[i], gap)
		}
	}

	out := make(map[int]int, len(gapsByPosition))
	for pos, gaps := range gapsByPosition {
		median := clampFloat(medianOf(gaps), minGapDays, maxGapDays)
		out[pos] = int(math.Round(median))
	}
	return out
}

// conversionTiming summarizes days from first to last touch across
// converted sequences, clamped to [0,90] before aggregation.
func conversionTiming(convSeqs []sequence) model.TimingStats {
	spans := make([]float64, 0, len(convSeqs))
	for _, s := range convSeqs {
		if len(s.touches) == 0 {
			continue
		}
		first := s.touches[0].SentAt
		last := s.touches[len(s.touches)-1].SentAt
		spans = append(spans, clampFloat(last.Sub(first).Hours()/24, 0, maxTimingDays))
	}
	if len(spans) == 0 {
		return model.TimingStats{}
	}

	return model.TimingStats{
		AvgDays:    meanOf(spans),
		MedianDays: medianOf(spans),
		P50Days:    quantileOf(spans, 0.50),
		P80Days:    quantileOf(spans, 0.80),
		P95Days:    quantileOf(spans, 0.95),
	}
}
