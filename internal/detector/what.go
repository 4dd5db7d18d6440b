package detector

import (
	"context"
	"math"
	"sort"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// Subject-line feature names.
const (
	subjectHasQuestion = "has_question"
	subjectHasNumber   = "has_number"
	subjectShort       = "short_subject"  // at most 4 words
	subjectMedium      = "medium_subject" // 5 to 8 words
	subjectLong        = "long_subject"   // 9 words or more
)

// WhatAnalyzer answers "which content converts": feature frequency lift of
// converting touches over non-converting ones.
type WhatAnalyzer struct{}

func NewWhatAnalyzer() *WhatAnalyzer { return &WhatAnalyzer{} }

func (a *WhatAnalyzer) Type() model.PatternType { return model.PatternWhat }

func (a *WhatAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	var conv, non []model.Touch
	skipped := 0
	for _, t := range in.Touches {
		if t.Content == nil {
			skipped++
			continue
		}
		if t.LedToBooking {
			conv = append(conv, t)
		} else {
			non = append(non, t)
		}
	}

	total := len(conv) + len(non)
	if len(conv) < whatMinConverting || total < whatMinTotal {
		r := sentinel(model.PatternWhat, total)
		r.TouchesSkipped = skipped
		return r, nil
	}

	payload := &model.WhatPayload{
		SubjectPatterns:     subjectPatterns(conv, non),
		PainPoints:          splitByLift(featureLifts(conv, non, painPointFeatures)),
		CTAs:                model.CTAStats{Effective: effectiveOnly(featureLifts(conv, non, ctaFeatures))},
		Angles:              angleRankings(conv, non),
		OptimalLength:       optimalLengths(conv),
		PersonalizationLift: personalizationLift(conv, non),
	}

	return Result{
		Payload:        payload,
		SampleSize:     total,
		Confidence:     confidence(len(conv), touchConfidenceMid, touchConfidenceScale),
		Sufficient:     true,
		TouchesSkipped: skipped,
	}, nil
}

func painPointFeatures(c *model.ContentSnapshot) []string { return c.PainPoints }

func ctaFeatures(c *model.ContentSnapshot) []string {
	if c.CTA == "" {
		return nil
	}
	return []string{c.CTA}
}

func subjectFeatures(c *model.ContentSnapshot) []string {
	var fs []string
	if c.SubjectHasQuestion {
		fs = append(fs, subjectHasQuestion)
	}
	if c.SubjectHasNumber {
		fs = append(fs, subjectHasNumber)
	}
	switch {
	case c.SubjectWordCount <= 4:
		fs = append(fs, subjectShort)
	case c.SubjectWordCount <= 8:
		fs = append(fs, subjectMedium)
	default:
		fs = append(fs, subjectLong)
	}
	return fs
}

// featureLifts contrasts each feature's frequency among converting touches
// with its frequency among non-converting ones. Features seen on fewer
// than minValueSamples converting touches are dropped.
func featureLifts(conv, non []model.Touch, extract func(*model.ContentSnapshot) []string) []model.FeatureLift {
	convCounts := countFeatures(conv, extract)
	nonCounts := countFeatures(non, extract)

	features := make([]string, 0, len(convCounts))
	for f := range convCounts {
		features = append(features, f)
	}
	sort.Strings(features)

	lifts := make([]model.FeatureLift, 0, len(features))
	for _, f := range features {
		c := convCounts[f]
		if c < minValueSamples {
			continue
		}
		convFreq := float64(c) / float64(len(conv))
		nonFreq := float64(nonCounts[f]) / float64(len(non))
		lifts = append(lifts, model.FeatureLift{
			Feature: f,
			Lift:    liftOf(convFreq, nonFreq),
			Samples: c,
		})
	}
	rankFeatureLifts(lifts)
	return lifts
}

func countFeatures(touches []model.Touch, extract func(*model.ContentSnapshot) []string) map[string]int {
	counts := make(map[string]int)
	for i := range touches {
		for _, f := range extract(touches[i].Content) {
			counts[f]++
		}
	}
	return counts
}

// splitByLift buckets features into effective (lift above 1) and
// ineffective (below 1). Exactly neutral features land in neither.
func splitByLift(lifts []model.FeatureLift) model.EffectivenessSplit {
	split := model.EffectivenessSplit{
		Effective:   []model.FeatureLift{},
		Ineffective: []model.FeatureLift{},
	}
	for _, l := range lifts {
		switch {
		case l.Lift > 1:
			split.Effective = append(split.Effective, l)
		case l.Lift < 1:
			split.Ineffective = append(split.Ineffective, l)
		}
	}
	// Worst offenders first on the ineffective side.
	sort.Slice(split.Ineffective, func(i, j int) bool {
		a, b := split.Ineffective[i], split.Ineffective[j]
		if a.Lift != b.Lift {
			return a.Lift < b.Lift
		}
		if a.Samples != b.Samples {
			return a.Samples > b.Samples
		}
		return a.Feature < b.Feature
	})
	return split
}

func effectiveOnly(lifts []model.FeatureLift) []model.FeatureLift {
	out := []model.FeatureLift{}
	for _, l := range lifts {
		if l.Lift > 1 {
			out = append(out, l)
		}
	}
	return out
}

func subjectPatterns(conv, non []model.Touch) model.SubjectPatterns {
	split := splitByLift(featureLifts(conv, non, subjectFeatures))
	return model.SubjectPatterns{Winning: split.Effective, Losing: split.Ineffective}
}

// angleRankings ranks message angles by their touch conversion rate's lift
// over the overall touch conversion rate.
func angleRankings(conv, non []model.Touch) model.AngleRankings {
	type bucket struct{ total, converted int }
	groups := make(map[string]*bucket)

	add := func(touches []model.Touch, converted bool) {
		for i := range touches {
			angle := touches[i].Content.Angle
			if angle == "" {
				continue
			}
			g := groups[angle]
			if g == nil {
				g = &bucket{}
				groups[angle] = g
			}
			g.total++
			if converted {
				g.converted++
			}
		}
	}
	add(conv, true)
	add(non, false)

	overall := float64(len(conv)) / float64(len(conv)+len(non))

	stats := make([]model.ValueStat, 0, len(groups))
	for angle, g := range groups {
		if g.total < minValueSamples {
			continue
		}
		rate := float64(g.converted) / float64(g.total)
		stats = append(stats, model.ValueStat{
			Value:          angle,
			Lift:           liftOf(rate, overall),
			ConversionRate: rate,
			SampleSize:     g.total,
		})
	}
	rankValueStats(stats)
	return model.AngleRankings{Rankings: stats}
}

// optimalLengths reports, per channel, the median converting word count
// with a ±20% tolerance band.
func optimalLengths(conv []model.Touch) map[model.Channel]model.LengthBand {
	byChannel := make(map[model.Channel][]float64)
	for i := range conv {
		byChannel[conv[i].Channel] = append(byChannel[conv[i].Channel], float64(conv[i].Content.WordCount))
	}

	out := make(map[model.Channel]model.LengthBand)
	for ch, counts := range byChannel {
		if len(counts) < minValueSamples {
			continue
		}
		median := medianOf(counts)
		out[ch] = model.LengthBand{
			MinWords:    int(math.Floor(median * 0.8)),
			MaxWords:    int(math.Ceil(median * 1.2)),
			MedianWords: int(median),
			Samples:     len(counts),
		}
	}
	return out
}

// personalizationLift contrasts each personalization flag's frequency in
// converting touches with its frequency in non-converting ones.
func personalizationLift(conv, non []model.Touch) map[string]float64 {
	out := make(map[string]float64, len(model.PersonalizationFlagNames))
	for _, flag := range model.PersonalizationFlagNames {
		convCount := countFlag(conv, flag)
		if convCount < minValueSamples {
			continue
		}
		convFreq := float64(convCount) / float64(len(conv))
		nonFreq := float64(countFlag(non, flag)) / float64(len(non))
		out[flag] = liftOf(convFreq, nonFreq)
	}
	return out
}

func countFlag(touches []model.Touch, flag string) int {
	n := 0
	for i := range touches {
		if touches[i].Content.PersonalizationFlags()[flag] {
			n++
		}
	}
	return n
}
