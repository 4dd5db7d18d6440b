package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadSelectsVariant(t *testing.T) {
	tests := []struct {
		name    string
		typ     PatternType
		payload Payload
	}{
		{"who", PatternWho, &WhoPayload{
			TitleRankings:      []ValueStat{{Value: "CEO", Lift: 3.0, ConversionRate: 0.3, SampleSize: 40}},
			RecommendedWeights: DefaultWeights(),
		}},
		{"what", PatternWhat, &WhatPayload{
			PainPoints: EffectivenessSplit{
				Effective: []FeatureLift{{Feature: "compliance", Lift: 2.1, Samples: 12}},
			},
			OptimalLength: map[Channel]LengthBand{ChannelEmail: {MinWords: 48, MaxWords: 72, MedianWords: 60, Samples: 9}},
		}},
		{"when", PatternWhen, &WhenPayload{
			BestDays:            []DayStat{{Weekday: 2, Day: "Tuesday", ConversionRate: 0.2, Lift: 1.6, Samples: 25}},
			PeakConvertingTouch: 3,
			OptimalSequenceGaps: map[int]int{1: 2, 2: 3},
		}},
		{"how", PatternHow, &HowPayload{
			BestFirstChannel: ChannelEmail,
			WinningSequences: []SequenceStat{
				{Sequence: NewSequenceKey([]Channel{ChannelEmail, ChannelLinkedIn}), ConversionRate: 0.4, Samples: 10},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.payload)
			require.NoError(t, err)

			decoded, err := DecodePayload(tt.typ, data)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, decoded.PatternType())
			assert.Equal(t, tt.payload, decoded)

			// Re-encoding the decoded payload reproduces the original bytes.
			again, err := json.Marshal(decoded)
			require.NoError(t, err)
			assert.Equal(t, data, again)
		})
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	_, err := DecodePayload(PatternType("where"), []byte(`{}`))
	assert.Error(t, err)
}

func TestPatternAccessors(t *testing.T) {
	p := Pattern{Type: PatternWho, Payload: DefaultWhoPayload()}

	who, ok := p.Who()
	require.True(t, ok)
	assert.InDelta(t, WeightTargetSum, sumWeights(who.RecommendedWeights), 1e-9)

	_, ok = p.What()
	assert.False(t, ok)
	_, ok = p.When()
	assert.False(t, ok)
	_, ok = p.How()
	assert.False(t, ok)
}

func TestDefaultPayloadPerType(t *testing.T) {
	for _, typ := range PatternTypes {
		p := DefaultPayload(typ)
		require.NotNil(t, p, string(typ))
		assert.Equal(t, typ, p.PatternType())
	}
	assert.Nil(t, DefaultPayload(PatternType("nope")))
}

func sumWeights(w map[string]float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}
