package detector

import (
	"context"
	"sort"
	"strconv"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// topSequences caps the winning-sequence list.
const topSequences = 5

// HowAnalyzer answers "which channel sequence converts": booking channel
// mix, first-touch effectiveness, multi-channel lift, winning sequences,
// tier splits, and the channel transition matrix.
type HowAnalyzer struct{}

func NewHowAnalyzer() *HowAnalyzer { return &HowAnalyzer{} }

func (a *HowAnalyzer) Type() model.PatternType { return model.PatternHow }

func (a *HowAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	seqs := buildSequences(in.Touches)
	total := len(seqs)
	converted := 0
	for _, s := range seqs {
		if s.converted {
			converted++
		}
	}

	if converted < howMinConverted || total < howMinTotal {
		return sentinel(model.PatternHow, total), nil
	}

	first, best := firstTouchEffectiveness(seqs)
	multiLift, optimalCount := multiChannelLift(seqs)

	payload := &model.HowPayload{
		BookingChannelDistribution: bookingChannelDistribution(in.Touches),
		FirstTouchEffectiveness:    first,
		BestFirstChannel:           best,
		MultiChannelLift:           multiLift,
		OptimalChannelCount:        optimalCount,
		WinningSequences:           winningSequences(seqs),
		ChannelEffectivenessByTier: channelEffectivenessByTier(seqs, in.Leads),
		ChannelTransitions:         channelTransitions(seqs),
	}

	return Result{
		Payload:    payload,
		SampleSize: total,
		Confidence: confidence(converted, touchConfidenceMid, touchConfidenceScale),
		Sufficient: true,
	}, nil
}

// bookingChannelDistribution reports the share of conversions each channel
// closed, over touches actually flagged as the converting touch.
func bookingChannelDistribution(touches []model.Touch) map[model.Channel]float64 {
	counts := make(map[model.Channel]int)
	total := 0
	for i := range touches {
		if !touches[i].LedToBooking {
			continue
		}
		counts[touches[i].Channel]++
		total++
	}

	dist := make(map[model.Channel]float64, len(counts))
	if total == 0 {
		return dist
	}
	for ch, n := range counts {
		dist[ch] = float64(n) / float64(total)
	}
	return dist
}

// firstTouchEffectiveness returns the conversion rate conditioned on the
// opening channel, plus the best opener. Ties on rate go to the larger
// sample, then the lexicographically smaller channel.
func firstTouchEffectiveness(seqs []sequence) (map[model.Channel]model.RateSample, model.Channel) {
	type bucket struct{ total, converted int }
	groups := make(map[model.Channel]*bucket)
	for _, s := range seqs {
		if len(s.touches) == 0 {
			continue
		}
		ch := s.touches[0].Channel
		g := groups[ch]
		if g == nil {
			g = &bucket{}
			groups[ch] = g
		}
		g.total++
		if s.converted {
			g.converted++
		}
	}

	out := make(map[model.Channel]model.RateSample, len(groups))
	var best model.Channel
	bestRate := -1.0
	bestSamples := 0
	for _, ch := range model.Channels {
		g := groups[ch]
		if g == nil || g.total < minBucketSamples {
			continue
		}
		rate := float64(g.converted) / float64(g.total)
		out[ch] = model.RateSample{Rate: rate, Samples: g.total}
		better := rate > bestRate ||
			(rate == bestRate && g.total > bestSamples) ||
			(rate == bestRate && g.total == bestSamples && ch < best)
		if better {
			best = ch
			bestRate = rate
			bestSamples = g.total
		}
	}
	return out, best
}

// multiChannelLift buckets sequences by distinct channel count and reports
// each bucket's conversion lift over the single-channel baseline. The
// optimal count is the bucket with the highest rate; ties go to the
// smaller count.
func multiChannelLift(seqs []sequence) (map[string]float64, int) {
	type bucket struct{ total, converted int }
	var buckets [5]bucket // index 1..4, 4 holds "4+"
	for _, s := range seqs {
		n := s.distinctChannels()
		if n < 1 {
			continue
		}
		if n > 4 {
			n = 4
		}
		buckets[n].total++
		if s.converted {
			buckets[n].converted++
		}
	}

	baseline := 0.0
	if buckets[1].total > 0 {
		baseline = float64(buckets[1].converted) / float64(buckets[1].total)
	}

	out := make(map[string]float64, 4)
	optimal := 0
	bestRate := -1.0
	for n := 1; n <= 4; n++ {
		if buckets[n].total < minBucketSamples {
			continue
		}
		rate := float64(buckets[n].converted) / float64(buckets[n].total)
		out[bucketLabel(n)] = liftOf(rate, baseline)
		if rate > bestRate {
			optimal = n
			bestRate = rate
		}
	}
	return out, optimal
}

func bucketLabel(n int) string {
	if n >= 4 {
		return "4+"
	}
	return strconv.Itoa(n)
}

// winningSequences groups sequences by their fixed-length channel key and
// returns the top converting ones. Order is conversion rate descending,
// then sample size descending, then the key's lexicographic order.
func winningSequences(seqs []sequence) []model.SequenceStat {
	type bucket struct{ total, converted int }
	groups := make(map[model.SequenceKey]*bucket)
	for _, s := range seqs {
		key := model.NewSequenceKey(s.channels())
		g := groups[key]
		if g == nil {
			g = &bucket{}
			groups[key] = g
		}
		g.total++
		if s.converted {
			g.converted++
		}
	}

	stats := make([]model.SequenceStat, 0, len(groups))
	for key, g := range groups {
		if g.total < minValueSamples {
			continue
		}
		stats = append(stats, model.SequenceStat{
			Sequence:       key,
			ConversionRate: float64(g.converted) / float64(g.total),
			Samples:        g.total,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ConversionRate != stats[j].ConversionRate {
			return stats[i].ConversionRate > stats[j].ConversionRate
		}
		if stats[i].Samples != stats[j].Samples {
			return stats[i].Samples > stats[j].Samples
		}
		return stats[i].Sequence.String() < stats[j].Sequence.String()
	})

	if len(stats) > topSequences {
		stats = stats[:topSequences]
	}
	return stats
}

// channelEffectivenessByTier repeats the per-channel lift computation
// within each lead tier. A channel counts for a sequence when it appears
// anywhere in it.
func channelEffectivenessByTier(seqs []sequence, leads []model.Lead) map[model.Tier]map[model.Channel]float64 {
	tierByLead := make(map[string]model.Tier, len(leads))
	for i := range leads {
		tierByLead[leads[i].ID] = leads[i].Tier()
	}

	type bucket struct{ total, converted int }
	type tierAgg struct {
		total, converted int
		byChannel        map[model.Channel]*bucket
	}
	tiers := make(map[model.Tier]*tierAgg)

	for _, s := range seqs {
		tier, ok := tierByLead[s.leadID]
		if !ok {
			continue
		}
		agg := tiers[tier]
		if agg == nil {
			agg = &tierAgg{byChannel: make(map[model.Channel]*bucket)}
			tiers[tier] = agg
		}
		agg.total++
		if s.converted {
			agg.converted++
		}

		seen := make(map[model.Channel]struct{}, 4)
		for _, ch := range s.channels() {
			if _, dup := seen[ch]; dup {
				continue
			}
			seen[ch] = struct{}{}
			g := agg.byChannel[ch]
			if g == nil {
				g = &bucket{}
				agg.byChannel[ch] = g
			}
			g.total++
			if s.converted {
				g.converted++
			}
		}
	}

	out := make(map[model.Tier]map[model.Channel]float64, len(tiers))
	for tier, agg := range tiers {
		if agg.total == 0 {
			continue
		}
		tierRate := float64(agg.converted) / float64(agg.total)
		lifts := make(map[model.Channel]float64)
		for ch, g := range agg.byChannel {
			if g.total < minBucketSamples {
				continue
			}
			lifts[ch] = liftOf(float64(g.converted)/float64(g.total), tierRate)
		}
		if len(lifts) > 0 {
			out[tier] = lifts
		}
	}
	return out
}

// channelTransitions reports, for each source channel with at least
// minBucketSamples outgoing transitions in converted sequences, the
// probability of each follow-up channel.
func channelTransitions(seqs []sequence) map[model.Channel]map[model.Channel]float64 {
	counts := make(map[model.Channel]map[model.Channel]int)
	totals := make(map[model.Channel]int)
	for _, s := range seqs {
		if !s.converted {
			continue
		}
		chans := s.channels()
		for i := 1; i < len(chans); i++ {
			from, to := chans[i-1], chans[i]
			if counts[from] == nil {
				counts[from] = make(map[model.Channel]int)
			}
			counts[from][to]++
			totals[from]++
		}
	}

	out := make(map[model.Channel]map[model.Channel]float64)
	for from, row := range counts {
		if totals[from] < minBucketSamples {
			continue
		}
		probs := make(map[model.Channel]float64, len(row))
		for to, n := range row {
			probs[to] = float64(n) / float64(totals[from])
		}
		out[from] = probs
	}
	return out
}
