// Package model defines the lead, touch, and conversion-pattern domain types
// shared across the learning pipeline.
package model

import "time"

// LeadStatus represents the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusActive        LeadStatus = "active"
	LeadStatusConverted     LeadStatus = "converted"
	LeadStatusUnsubscribed  LeadStatus = "unsubscribed"
	LeadStatusBounced       LeadStatus = "bounced"
	LeadStatusNotInterested LeadStatus = "not_interested"
	LeadStatusDead          LeadStatus = "dead"
)

// Terminal reports whether the lead has reached a final outcome. Only
// terminal leads carry an outcome label usable for learning.
func (s LeadStatus) Terminal() bool {
	switch s {
	case LeadStatusConverted, LeadStatusUnsubscribed, LeadStatusBounced,
		LeadStatusNotInterested, LeadStatusDead:
		return true
	}
	return false
}

// Score component names in canonical order. Each component contributes
// 0-25 points toward the composite lead score.
const (
	ComponentDataQuality = "data_quality"
	ComponentAuthority   = "authority"
	ComponentCompanyFit  = "company_fit"
	ComponentTiming      = "timing"
)

// ScoreComponents lists the component names in canonical order.
var ScoreComponents = []string{
	ComponentDataQuality,
	ComponentAuthority,
	ComponentCompanyFit,
	ComponentTiming,
}

// ComponentMaxScore is the highest value one component score can take.
// Dividing by it normalizes a snapshot to [0,1] per component.
const ComponentMaxScore = 25.0

// Tier buckets leads by composite score for channel allocation.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCool Tier = "cool"
)

// Tier score cutoffs.
const (
	hotScoreCutoff  = 70.0
	warmScoreCutoff = 45.0
)

// TierForScore maps a composite 0-100 score to a tier.
func TierForScore(score float64) Tier {
	switch {
	case score >= hotScoreCutoff:
		return TierHot
	case score >= warmScoreCutoff:
		return TierWarm
	default:
		return TierCool
	}
}

// Lead is an outcome-labeled prospect record as stored by the outreach
// system. The learning pipeline reads these rows and never mutates them,
// except when a backfill reconstructs missing score snapshots.
type Lead struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	// Attributes captured at scoring time.
	Title      string `json:"title"`
	Industry   string `json:"industry"`
	SizeBucket string `json:"size_bucket"`
	Country    string `json:"country,omitempty"`

	// Timing signals observed when the lead was sourced.
	NewRole bool `json:"new_role"`
	Hiring  bool `json:"hiring"`
	Funded  bool `json:"funded"`

	Status LeadStatus `json:"status"`

	// Score snapshot from the time the lead was scored. ComponentScores
	// holds the named sub-scores (0-25 each); ScoreWeights holds the
	// weights that were applied to produce Score.
	ComponentScores map[string]float64 `json:"component_scores,omitempty"`
	ScoreWeights    map[string]float64 `json:"score_weights,omitempty"`
	Score           float64            `json:"score"`
	ScoredAt        *time.Time         `json:"scored_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Converted reports whether the lead booked a meeting.
func (l *Lead) Converted() bool {
	return l.Status == LeadStatusConverted
}

// Tier returns the allocation tier for the lead's composite score.
func (l *Lead) Tier() Tier {
	return TierForScore(l.Score)
}

// Window bounds a learning pass to leads and touches inside [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}
