package detector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/optimizer"
)

// ceoLiftInput builds 30 terminal leads, 10 converted overall: 5 CEOs with
// 3 conversions, 5 Directors with 1, 20 Engineers with 6.
func ceoLiftInput() Input {
	var leads []model.Lead
	add := func(title string, total, converted int) {
		for i := 0; i < total; i++ {
			l := testLead(fmt.Sprintf("%s-%d", title, i), i < converted)
			l.Title = title
			leads = append(leads, l)
		}
	}
	add("CEO", 5, 3)
	add("Director", 5, 1)
	add("Engineer", 20, 6)
	return Input{TenantID: "t1", Leads: leads}
}

func TestWhoCEOLiftMatchesHandComputedRatio(t *testing.T) {
	res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), ceoLiftInput())
	require.True(t, res.Sufficient)

	who, ok := res.Payload.(*model.WhoPayload)
	require.True(t, ok)
	require.NotEmpty(t, who.TitleRankings)

	top := who.TitleRankings[0]
	assert.Equal(t, "CEO", top.Value)
	assert.Greater(t, top.Lift, 1.0)
	assert.InDelta(t, (3.0/5.0)/(10.0/30.0), top.Lift, 1e-12)
	assert.InDelta(t, 0.6, top.ConversionRate, 1e-12)
	assert.Equal(t, 5, top.SampleSize)

	// Engineer (lift 0.9) outranks Director (lift 0.6).
	require.Len(t, who.TitleRankings, 3)
	assert.Equal(t, "Engineer", who.TitleRankings[1].Value)
	assert.Equal(t, "Director", who.TitleRankings[2].Value)
}

func TestWhoSentinelBelowFloor(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		converted int
	}{
		{"too few converted", 50, 9},
		{"too few total", 29, 15},
		{"empty", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var leads []model.Lead
			for i := 0; i < tt.total; i++ {
				leads = append(leads, testLead(fmt.Sprintf("l-%d", i), i < tt.converted))
			}

			res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), Input{TenantID: "t1", Leads: leads})

			assert.False(t, res.Sufficient)
			assert.Zero(t, res.Confidence)
			assert.Equal(t, tt.total, res.SampleSize)

			who, ok := res.Payload.(*model.WhoPayload)
			require.True(t, ok)
			assert.Equal(t, model.DefaultWeights(), who.RecommendedWeights)
			assert.Empty(t, who.TitleRankings)
		})
	}
}

func TestWhoIgnoresActiveLeads(t *testing.T) {
	// 29 terminal leads plus actives: still under the 30-lead floor.
	var leads []model.Lead
	for i := 0; i < 29; i++ {
		leads = append(leads, testLead(fmt.Sprintf("l-%d", i), i < 15))
	}
	for i := 0; i < 10; i++ {
		l := testLead(fmt.Sprintf("a-%d", i), false)
		l.Status = model.LeadStatusActive
		leads = append(leads, l)
	}

	res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), Input{TenantID: "t1", Leads: leads})
	assert.False(t, res.Sufficient)
	assert.Equal(t, 29, res.SampleSize)
}

func TestWhoTimingSignalLift(t *testing.T) {
	// 20 flagged leads converting at 0.5, 20 unflagged at 0.25: lift 2.0.
	var leads []model.Lead
	for i := 0; i < 20; i++ {
		l := testLead(fmt.Sprintf("f-%d", i), i < 10)
		l.NewRole = true
		leads = append(leads, l)
	}
	for i := 0; i < 20; i++ {
		leads = append(leads, testLead(fmt.Sprintf("u-%d", i), i < 5))
	}

	res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), Input{TenantID: "t1", Leads: leads})
	who := res.Payload.(*model.WhoPayload)

	assert.InDelta(t, 2.0, who.TimingSignals.NewRoleLift, 1e-12)
	// Nobody is flagged hiring or funded, so those have no evidence.
	assert.Equal(t, 1.0, who.TimingSignals.HiringLift)
	assert.Equal(t, 1.0, who.TimingSignals.FundedLift)
}

func TestWhoTimingSignalNeedsBothSides(t *testing.T) {
	// Only 4 flagged leads: below the per-side floor, lift must be 1.0
	// no matter how well they converted.
	var leads []model.Lead
	for i := 0; i < 4; i++ {
		l := testLead(fmt.Sprintf("f-%d", i), true)
		l.Funded = true
		leads = append(leads, l)
	}
	for i := 0; i < 30; i++ {
		leads = append(leads, testLead(fmt.Sprintf("u-%d", i), i < 8))
	}

	res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), Input{TenantID: "t1", Leads: leads})
	who := res.Payload.(*model.WhoPayload)
	assert.Equal(t, 1.0, who.TimingSignals.FundedLift)
}

func TestWhoSizeSweetSpot(t *testing.T) {
	var leads []model.Lead
	add := func(bucket string, total, converted int) {
		for i := 0; i < total; i++ {
			l := testLead(fmt.Sprintf("%s-%d", bucket, i), i < converted)
			l.SizeBucket = bucket
			leads = append(leads, l)
		}
	}
	add("11-50", 20, 10)  // rate 0.50
	add("51-200", 10, 2)  // rate 0.20
	add("201-500", 4, 4)  // rate 1.0 but under the sample floor
	res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), Input{TenantID: "t1", Leads: leads})
	who := res.Payload.(*model.WhoPayload)

	assert.Equal(t, "11-50", who.SizeAnalysis.SweetSpot)
	require.Len(t, who.SizeAnalysis.Distribution, 3)
	assert.Equal(t, "11-50", who.SizeAnalysis.Distribution[0].Bucket)
	assert.InDelta(t, 10.0/16.0, who.SizeAnalysis.Distribution[0].Share, 1e-12)
}

func TestWhoLearnsWeightsFromScoredOutcomes(t *testing.T) {
	// 200 leads, 60 converted. Authority separates winners from losers,
	// so the learned weights must leave the defaults.
	var leads []model.Lead
	for i := 0; i < 200; i++ {
		converted := i < 60
		l := testLead(fmt.Sprintf("l-%d", i), converted)
		authority := 2.5
		if converted {
			authority = 22.5
		}
		l.ComponentScores = map[string]float64{
			model.ComponentDataQuality: 12.5,
			model.ComponentAuthority:   authority,
			model.ComponentCompanyFit:  12.5,
			model.ComponentTiming:      12.5,
		}
		leads = append(leads, l)
	}

	res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), Input{TenantID: "t1", Leads: leads})
	require.True(t, res.Sufficient)
	assert.Greater(t, res.Confidence, 0.5, "60 conversions should clear the midpoint")

	who := res.Payload.(*model.WhoPayload)
	assert.NotEqual(t, model.DefaultWeights(), who.RecommendedWeights)

	sum := 0.0
	for _, name := range model.ScoreComponents {
		w := who.RecommendedWeights[name]
		assert.GreaterOrEqual(t, w, model.WeightMin)
		assert.LessOrEqual(t, w, model.WeightMax)
		sum += w
	}
	assert.InDelta(t, model.WeightTargetSum, sum, 1e-9)
	assert.Greater(t, who.RecommendedWeights[model.ComponentAuthority],
		who.RecommendedWeights[model.ComponentDataQuality])
}

func TestWhoFallsBackToDefaultWeightsWithoutScores(t *testing.T) {
	res := analyze(t, NewWhoAnalyzer(optimizer.DefaultConfig()), ceoLiftInput())
	who := res.Payload.(*model.WhoPayload)
	assert.Equal(t, model.DefaultWeights(), who.RecommendedWeights)
}

func TestWhoIdempotent(t *testing.T) {
	in := ceoLiftInput()
	a := NewWhoAnalyzer(optimizer.DefaultConfig())

	first := analyze(t, a, in)
	second := analyze(t, a, in)

	assert.Equal(t, marshalPayload(t, first.Payload), marshalPayload(t, second.Payload),
		"same snapshot must produce a byte-identical payload")
	assert.Equal(t, first.Confidence, second.Confidence)
}
