package detector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// channelSeq appends one lead's touches, one per channel, a day apart.
// booked marks the final touch as the converting one.
func channelSeq(touches []model.Touch, leadID string, booked bool, channels ...model.Channel) []model.Touch {
	for i, ch := range channels {
		last := i == len(channels)-1
		touches = append(touches, testTouch(leadID, i+1, ch, tuesday.Add(time.Duration(i)*24*time.Hour), booked && last))
	}
	return touches
}

func TestHowSentinelBelowFloor(t *testing.T) {
	var touches []model.Touch
	for i := 0; i < 19; i++ {
		touches = channelSeq(touches, fmt.Sprintf("l-%d", i), i < 6, model.ChannelEmail)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Touches: touches})
	assert.False(t, res.Sufficient, "19 sequences is under the 20 floor")
}

// A sequence seen five times among converted leads and never among failed
// ones must top winning_sequences at rate 1.0.
func TestHowWinningSequenceRanksFirst(t *testing.T) {
	var touches []model.Touch
	for i := 0; i < 5; i++ {
		touches = channelSeq(touches, fmt.Sprintf("win-%d", i), true, model.ChannelEmail, model.ChannelSMS)
	}
	for i := 0; i < 15; i++ {
		touches = channelSeq(touches, fmt.Sprintf("v-%d", i), false, model.ChannelVoice)
	}
	for i := 0; i < 5; i++ {
		touches = channelSeq(touches, fmt.Sprintf("s-%d", i), false, model.ChannelSMS)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Touches: touches})
	require.True(t, res.Sufficient)

	how := res.Payload.(*model.HowPayload)
	require.NotEmpty(t, how.WinningSequences)

	top := how.WinningSequences[0]
	assert.Equal(t, model.NewSequenceKey([]model.Channel{model.ChannelEmail, model.ChannelSMS}), top.Sequence)
	assert.Equal(t, 1.0, top.ConversionRate)
	assert.Equal(t, 5, top.Samples)

	for i := 1; i < len(how.WinningSequences); i++ {
		assert.LessOrEqual(t, how.WinningSequences[i].ConversionRate, how.WinningSequences[i-1].ConversionRate,
			"winning sequences must be sorted by rate descending")
	}
}

func TestHowWinningSequenceTieBreaks(t *testing.T) {
	var touches []model.Touch
	// Two sequences at rate 1.0: email (6 samples) and sms (5 samples).
	for i := 0; i < 6; i++ {
		touches = channelSeq(touches, fmt.Sprintf("e-%d", i), true, model.ChannelEmail)
	}
	for i := 0; i < 5; i++ {
		touches = channelSeq(touches, fmt.Sprintf("s-%d", i), true, model.ChannelSMS)
	}
	for i := 0; i < 10; i++ {
		touches = channelSeq(touches, fmt.Sprintf("v-%d", i), false, model.ChannelVoice)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Touches: touches})
	how := res.Payload.(*model.HowPayload)

	require.GreaterOrEqual(t, len(how.WinningSequences), 2)
	assert.Equal(t, model.ChannelEmail, how.WinningSequences[0].Sequence[0],
		"equal rates break the tie toward the larger sample")
	assert.Equal(t, model.ChannelSMS, how.WinningSequences[1].Sequence[0])
}

func TestHowBookingChannelDistribution(t *testing.T) {
	var touches []model.Touch
	// 6 bookings closed over email, 2 over voice.
	for i := 0; i < 6; i++ {
		touches = channelSeq(touches, fmt.Sprintf("e-%d", i), true, model.ChannelSMS, model.ChannelEmail)
	}
	for i := 0; i < 2; i++ {
		touches = channelSeq(touches, fmt.Sprintf("v-%d", i), true, model.ChannelSMS, model.ChannelVoice)
	}
	for i := 0; i < 14; i++ {
		touches = channelSeq(touches, fmt.Sprintf("f-%d", i), false, model.ChannelSMS)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Touches: touches})
	how := res.Payload.(*model.HowPayload)

	assert.InDelta(t, 0.75, how.BookingChannelDistribution[model.ChannelEmail], 1e-12)
	assert.InDelta(t, 0.25, how.BookingChannelDistribution[model.ChannelVoice], 1e-12)
	_, sms := how.BookingChannelDistribution[model.ChannelSMS]
	assert.False(t, sms, "sms never closed a booking")
}

func TestHowFirstTouchEffectiveness(t *testing.T) {
	var touches []model.Touch
	// Email openers: 8 of 10 convert. Voice openers: 2 of 10.
	for i := 0; i < 10; i++ {
		touches = channelSeq(touches, fmt.Sprintf("e-%d", i), i < 8, model.ChannelEmail, model.ChannelSMS)
	}
	for i := 0; i < 10; i++ {
		touches = channelSeq(touches, fmt.Sprintf("v-%d", i), i < 2, model.ChannelVoice, model.ChannelSMS)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Touches: touches})
	how := res.Payload.(*model.HowPayload)

	require.Contains(t, how.FirstTouchEffectiveness, model.ChannelEmail)
	assert.InDelta(t, 0.8, how.FirstTouchEffectiveness[model.ChannelEmail].Rate, 1e-12)
	assert.Equal(t, 10, how.FirstTouchEffectiveness[model.ChannelEmail].Samples)
	assert.Equal(t, model.ChannelEmail, how.BestFirstChannel)
}

func TestHowMultiChannelLift(t *testing.T) {
	var touches []model.Touch
	// Single-channel: 2 of 10 convert. Two-channel: 6 of 10.
	for i := 0; i < 10; i++ {
		touches = channelSeq(touches, fmt.Sprintf("one-%d", i), i < 2, model.ChannelEmail, model.ChannelEmail)
	}
	for i := 0; i < 10; i++ {
		touches = channelSeq(touches, fmt.Sprintf("two-%d", i), i < 6, model.ChannelEmail, model.ChannelSMS)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Touches: touches})
	how := res.Payload.(*model.HowPayload)

	assert.InDelta(t, 1.0, how.MultiChannelLift["1"], 1e-12)
	assert.InDelta(t, 3.0, how.MultiChannelLift["2"], 1e-12)
	assert.Equal(t, 2, how.OptimalChannelCount)
}

func TestHowChannelTransitions(t *testing.T) {
	var touches []model.Touch
	// Converted: email->sms six times, email->voice twice.
	for i := 0; i < 6; i++ {
		touches = channelSeq(touches, fmt.Sprintf("es-%d", i), true, model.ChannelEmail, model.ChannelSMS)
	}
	for i := 0; i < 2; i++ {
		touches = channelSeq(touches, fmt.Sprintf("ev-%d", i), true, model.ChannelEmail, model.ChannelVoice)
	}
	// Failed sequences must not contribute transitions.
	for i := 0; i < 12; i++ {
		touches = channelSeq(touches, fmt.Sprintf("f-%d", i), false, model.ChannelVoice, model.ChannelVoice)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Touches: touches})
	how := res.Payload.(*model.HowPayload)

	require.Contains(t, how.ChannelTransitions, model.ChannelEmail)
	assert.InDelta(t, 0.75, how.ChannelTransitions[model.ChannelEmail][model.ChannelSMS], 1e-12)
	assert.InDelta(t, 0.25, how.ChannelTransitions[model.ChannelEmail][model.ChannelVoice], 1e-12)
	_, voice := how.ChannelTransitions[model.ChannelVoice]
	assert.False(t, voice, "failed sequences contribute no transitions")
}

func TestHowChannelEffectivenessByTier(t *testing.T) {
	var touches []model.Touch
	var leads []model.Lead
	// Hot tier: email sequences convert 6 of 8; cool tier: 1 of 12.
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("hot-%d", i)
		l := testLead(id, i < 6)
		l.Score = 80
		leads = append(leads, l)
		touches = channelSeq(touches, id, i < 6, model.ChannelEmail, model.ChannelEmail)
	}
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("cool-%d", i)
		l := testLead(id, i < 1)
		l.Score = 20
		leads = append(leads, l)
		touches = channelSeq(touches, id, i < 1, model.ChannelEmail)
	}

	res := analyze(t, NewHowAnalyzer(), Input{TenantID: "t1", Leads: leads, Touches: touches})
	how := res.Payload.(*model.HowPayload)

	require.Contains(t, how.ChannelEffectivenessByTier, model.TierHot)
	require.Contains(t, how.ChannelEffectivenessByTier, model.TierCool)
	// Every hot sequence used email, so within-tier lift is neutral.
	assert.InDelta(t, 1.0, how.ChannelEffectivenessByTier[model.TierHot][model.ChannelEmail], 1e-12)
}

func TestHowIdempotent(t *testing.T) {
	var touches []model.Touch
	for i := 0; i < 7; i++ {
		touches = channelSeq(touches, fmt.Sprintf("c-%d", i), true, model.ChannelEmail, model.ChannelSMS, model.ChannelVoice)
	}
	for i := 0; i < 15; i++ {
		touches = channelSeq(touches, fmt.Sprintf("f-%d", i), false, model.ChannelSMS, model.ChannelEmail)
	}
	in := Input{TenantID: "t1", Touches: touches}

	first := analyze(t, NewHowAnalyzer(), in)
	second := analyze(t, NewHowAnalyzer(), in)
	assert.Equal(t, marshalPayload(t, first.Payload), marshalPayload(t, second.Payload))
}
