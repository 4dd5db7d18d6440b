package model

// Recommended-weight constraints. The four component weights always sum to
// WeightTargetSum, leaving the remaining 0.15 of the composite score for
// the engagement signals computed outside this pipeline.
const (
	WeightTargetSum = 0.85
	WeightMin       = 0.05
	WeightMax       = 0.50
)

// DefaultWeights returns the scoring weights used until a tenant has
// enough outcomes to learn its own.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		ComponentDataQuality: 0.20,
		ComponentAuthority:   0.25,
		ComponentCompanyFit:  0.25,
		ComponentTiming:      0.15,
	}
}

// DefaultWhoPayload is the sentinel WHO result for tenants below the
// learning floor: empty rankings, neutral signals, default weights.
func DefaultWhoPayload() *WhoPayload {
	return &WhoPayload{
		TitleRankings:    []ValueStat{},
		IndustryRankings: []ValueStat{},
		SizeAnalysis:     SizeAnalysis{Distribution: []SizeBucketShare{}},
		TimingSignals:    TimingSignals{NewRoleLift: 1.0, HiringLift: 1.0, FundedLift: 1.0},
		RecommendedWeights: DefaultWeights(),
	}
}

// DefaultWhatPayload is the sentinel WHAT result.
func DefaultWhatPayload() *WhatPayload {
	return &WhatPayload{
		SubjectPatterns:     SubjectPatterns{Winning: []FeatureLift{}, Losing: []FeatureLift{}},
		PainPoints:          EffectivenessSplit{Effective: []FeatureLift{}, Ineffective: []FeatureLift{}},
		CTAs:                CTAStats{Effective: []FeatureLift{}},
		Angles:              AngleRankings{Rankings: []ValueStat{}},
		OptimalLength:       map[Channel]LengthBand{},
		PersonalizationLift: map[string]float64{},
	}
}

// DefaultWhenPayload is the sentinel WHEN result.
func DefaultWhenPayload() *WhenPayload {
	return &WhenPayload{
		BestDays:                    []DayStat{},
		BestHours:                   []HourStat{},
		ConvertingTouchDistribution: map[int]float64{},
		OptimalSequenceGaps:         map[int]int{},
	}
}

// DefaultHowPayload is the sentinel HOW result.
func DefaultHowPayload() *HowPayload {
	return &HowPayload{
		BookingChannelDistribution: map[Channel]float64{},
		FirstTouchEffectiveness:    map[Channel]RateSample{},
		MultiChannelLift:           map[string]float64{},
		WinningSequences:           []SequenceStat{},
		ChannelEffectivenessByTier: map[Tier]map[Channel]float64{},
		ChannelTransitions:         map[Channel]map[Channel]float64{},
	}
}

// DefaultPayload returns the sentinel payload for a pattern type.
func DefaultPayload(t PatternType) Payload {
	switch t {
	case PatternWho:
		return DefaultWhoPayload()
	case PatternWhat:
		return DefaultWhatPayload()
	case PatternWhen:
		return DefaultWhenPayload()
	case PatternHow:
		return DefaultHowPayload()
	default:
		return nil
	}
}
