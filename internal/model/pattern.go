package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// PatternType identifies one of the four pattern dimensions.
type PatternType string

const (
	PatternWho  PatternType = "who"  // which leads convert
	PatternWhat PatternType = "what" // which message content converts
	PatternWhen PatternType = "when" // which timing converts
	PatternHow  PatternType = "how"  // which channel mix converts
)

// PatternTypes lists all pattern types in canonical order.
var PatternTypes = []PatternType{PatternWho, PatternWhat, PatternWhen, PatternHow}

// Valid reports whether t is a known pattern type.
func (t PatternType) Valid() bool {
	switch t {
	case PatternWho, PatternWhat, PatternWhen, PatternHow:
		return true
	}
	return false
}

// Payload is the per-type pattern content. Exactly one concrete payload
// struct exists per pattern type; the store selects the variant from the
// row's pattern_type column, so a payload can never be decoded as the
// wrong shape.
type Payload interface {
	PatternType() PatternType
}

// Pattern is one versioned learning result for a (tenant, type) pair.
type Pattern struct {
	TenantID   string      `json:"tenant_id"`
	Type       PatternType `json:"type"`
	Version    int         `json:"version"`
	SampleSize int         `json:"sample_size"`
	Confidence float64     `json:"confidence"`
	ComputedAt time.Time   `json:"computed_at"`
	ValidUntil time.Time   `json:"valid_until"`
	Payload    Payload     `json:"payload"`
}

// Who returns the payload as a WhoPayload when the pattern carries one.
func (p *Pattern) Who() (*WhoPayload, bool) {
	v, ok := p.Payload.(*WhoPayload)
	return v, ok
}

// What returns the payload as a WhatPayload when the pattern carries one.
func (p *Pattern) What() (*WhatPayload, bool) {
	v, ok := p.Payload.(*WhatPayload)
	return v, ok
}

// When returns the payload as a WhenPayload when the pattern carries one.
func (p *Pattern) When() (*WhenPayload, bool) {
	v, ok := p.Payload.(*WhenPayload)
	return v, ok
}

// How returns the payload as a HowPayload when the pattern carries one.
func (p *Pattern) How() (*HowPayload, bool) {
	v, ok := p.Payload.(*HowPayload)
	return v, ok
}

// DecodePayload unmarshals stored payload JSON into the variant selected
// by the pattern type.
func DecodePayload(t PatternType, data []byte) (Payload, error) {
	switch t {
	case PatternWho:
		var p WhoPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "model: decode who payload")
		}
		return &p, nil
	case PatternWhat:
		var p WhatPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "model: decode what payload")
		}
		return &p, nil
	case PatternWhen:
		var p WhenPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "model: decode when payload")
		}
		return &p, nil
	case PatternHow:
		var p HowPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "model: decode how payload")
		}
		return &p, nil
	default:
		return nil, eris.Errorf("model: unknown pattern type %q", t)
	}
}

// ValueStat is a ranked categorical value with its lift over the tenant's
// overall conversion rate.
type ValueStat struct {
	Value          string  `json:"value"`
	Lift           float64 `json:"lift"`
	ConversionRate float64 `json:"conversion_rate"`
	SampleSize     int     `json:"sample_size"`
}

// RateSample pairs a conversion rate with the sample that produced it.
type RateSample struct {
	Rate    float64 `json:"rate"`
	Samples int     `json:"samples"`
}

// SizeBucketShare is one company-size bucket's slice of the converted pool.
type SizeBucketShare struct {
	Bucket    string  `json:"bucket"`
	Share     float64 `json:"share"`
	Converted int     `json:"converted"`
	Total     int     `json:"total"`
}

// SizeAnalysis summarizes which company sizes convert.
type SizeAnalysis struct {
	SweetSpot    string            `json:"sweet_spot"`
	Distribution []SizeBucketShare `json:"distribution"`
}

// TimingSignals holds the lift of each boolean sourcing signal, computed
// as rate-with-flag over rate-without-flag.
type TimingSignals struct {
	NewRoleLift float64 `json:"new_role_lift"`
	HiringLift  float64 `json:"hiring_lift"`
	FundedLift  float64 `json:"funded_lift"`
}

// WhoPayload describes which lead profiles convert for a tenant.
type WhoPayload struct {
	TitleRankings      []ValueStat        `json:"title_rankings"`
	IndustryRankings   []ValueStat        `json:"industry_rankings"`
	SizeAnalysis       SizeAnalysis       `json:"size_analysis"`
	TimingSignals      TimingSignals      `json:"timing_signals"`
	RecommendedWeights map[string]float64 `json:"recommended_weights"`
}

func (*WhoPayload) PatternType() PatternType { return PatternWho }

// FeatureLift is a content feature with its converting-over-nonconverting
// frequency lift.
type FeatureLift struct {
	Feature string  `json:"feature"`
	Lift    float64 `json:"lift"`
	Samples int     `json:"samples"`
}

// SubjectPatterns splits subject-line features into those overrepresented
// in converting messages and those overrepresented in losing ones.
type SubjectPatterns struct {
	Winning []FeatureLift `json:"winning"`
	Losing  []FeatureLift `json:"losing"`
}

// EffectivenessSplit separates features by lift above or below 1.0.
type EffectivenessSplit struct {
	Effective   []FeatureLift `json:"effective"`
	Ineffective []FeatureLift `json:"ineffective"`
}

// CTAStats ranks call-to-action phrasings that convert.
type CTAStats struct {
	Effective []FeatureLift `json:"effective"`
}

// AngleRankings ranks message angles by conversion lift.
type AngleRankings struct {
	Rankings []ValueStat `json:"rankings"`
}

// LengthBand is the word-count range around the converting median for a
// channel.
type LengthBand struct {
	MinWords    int `json:"min_words"`
	MaxWords    int `json:"max_words"`
	MedianWords int `json:"median_words"`
	Samples     int `json:"samples"`
}

// WhatPayload describes which message content converts for a tenant.
type WhatPayload struct {
	SubjectPatterns     SubjectPatterns        `json:"subject_patterns"`
	PainPoints          EffectivenessSplit     `json:"pain_points"`
	CTAs                CTAStats               `json:"ctas"`
	Angles              AngleRankings          `json:"angles"`
	OptimalLength       map[Channel]LengthBand `json:"optimal_length"`
	PersonalizationLift map[string]float64     `json:"personalization_lift"`
}

func (*WhatPayload) PatternType() PatternType { return PatternWhat }

// DayStat is a weekday's conversion performance. Weekday follows
// time.Weekday numbering (Sunday = 0).
type DayStat struct {
	Weekday        int     `json:"weekday"`
	Day            string  `json:"day"`
	ConversionRate float64 `json:"conversion_rate"`
	Lift           float64 `json:"lift"`
	Samples        int     `json:"samples"`
}

// HourStat is an hour-of-day's conversion performance (tenant-local time).
type HourStat struct {
	Hour           int     `json:"hour"`
	ConversionRate float64 `json:"conversion_rate"`
	Lift           float64 `json:"lift"`
	Samples        int     `json:"samples"`
}

// TimingStats summarizes days elapsed from first touch to conversion.
type TimingStats struct {
	AvgDays    float64 `json:"avg_days"`
	MedianDays float64 `json:"median_days"`
	P50Days    float64 `json:"p50_days"`
	P80Days    float64 `json:"p80_days"`
	P95Days    float64 `json:"p95_days"`
}

// WhenPayload describes which timing converts for a tenant.
type WhenPayload struct {
	BestDays                    []DayStat       `json:"best_days"`
	BestHours                   []HourStat      `json:"best_hours"`
	ConvertingTouchDistribution map[int]float64 `json:"converting_touch_distribution"`
	PeakConvertingTouch         int             `json:"peak_converting_touch"`
	AvgTouchesToConvert         float64         `json:"avg_touches_to_convert"`
	OptimalSequenceGaps         map[int]int     `json:"optimal_sequence_gaps"`
	ConversionTiming            TimingStats     `json:"conversion_timing"`
}

func (*WhenPayload) PatternType() PatternType { return PatternWhen }

// SequenceStat is a fixed-length channel sequence with its conversion rate.
type SequenceStat struct {
	Sequence       SequenceKey `json:"sequence"`
	ConversionRate float64     `json:"conversion_rate"`
	Samples        int         `json:"samples"`
}

// HowPayload describes which channel mix converts for a tenant.
type HowPayload struct {
	BookingChannelDistribution map[Channel]float64         `json:"booking_channel_distribution"`
	FirstTouchEffectiveness    map[Channel]RateSample      `json:"first_touch_effectiveness"`
	BestFirstChannel           Channel                     `json:"best_first_channel"`
	MultiChannelLift           map[string]float64          `json:"multi_channel_lift"`
	OptimalChannelCount        int                         `json:"optimal_channel_count"`
	WinningSequences           []SequenceStat              `json:"winning_sequences"`
	ChannelEffectivenessByTier map[Tier]map[Channel]float64 `json:"channel_effectiveness_by_tier"`
	ChannelTransitions         map[Channel]map[Channel]float64 `json:"channel_transitions"`
}

func (*HowPayload) PatternType() PatternType { return PatternHow }
