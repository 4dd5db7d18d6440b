package detector

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/optimizer"
)

// WhoAnalyzer answers "which leads convert": categorical lift over lead
// attributes, timing-signal lift, and a fitted scoring-weight vector.
type WhoAnalyzer struct {
	optCfg optimizer.Config
	logger *zap.Logger
}

func NewWhoAnalyzer(cfg optimizer.Config) *WhoAnalyzer {
	return &WhoAnalyzer{
		optCfg: cfg,
		logger: zap.L().With(zap.String("component", "detector.who")),
	}
}

func (a *WhoAnalyzer) Type() model.PatternType { return model.PatternWho }

func (a *WhoAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	leads := terminalLeads(in.Leads)
	total := len(leads)
	converted := 0
	for i := range leads {
		if leads[i].Converted() {
			converted++
		}
	}

	if converted < whoMinConverted || total < whoMinTotal {
		return sentinel(model.PatternWho, total), nil
	}

	overall := float64(converted) / float64(total)

	payload := &model.WhoPayload{
		TitleRankings: rankCategorical(leads, overall, func(l *model.Lead) string {
			return strings.TrimSpace(l.Title)
		}),
		IndustryRankings: rankCategorical(leads, overall, func(l *model.Lead) string {
			return strings.TrimSpace(l.Industry)
		}),
		SizeAnalysis: sizeAnalysis(leads),
		TimingSignals: model.TimingSignals{
			NewRoleLift: flagLift(leads, func(l *model.Lead) bool { return l.NewRole }),
			HiringLift:  flagLift(leads, func(l *model.Lead) bool { return l.Hiring }),
			FundedLift:  flagLift(leads, func(l *model.Lead) bool { return l.Funded }),
		},
		RecommendedWeights: a.recommendWeights(in.TenantID, leads),
	}

	return Result{
		Payload:    payload,
		SampleSize: total,
		Confidence: confidence(converted, whoConfidenceMid, whoConfidenceScale),
		Sufficient: true,
	}, nil
}

// recommendWeights fits scoring weights to the leads' component-score
// snapshots. Any fit failure falls back to the default vector; learning
// must not abort because the solver gave up.
func (a *WhoAnalyzer) recommendWeights(tenantID string, leads []model.Lead) map[string]float64 {
	obs := make([]optimizer.Observation, 0, len(leads))
	for i := range leads {
		if len(leads[i].ComponentScores) == 0 {
			continue
		}
		components := make(map[string]float64, len(model.ScoreComponents))
		for _, name := range model.ScoreComponents {
			components[name] = leads[i].ComponentScores[name] / model.ComponentMaxScore
		}
		obs = append(obs, optimizer.Observation{
			Components: components,
			Converted:  leads[i].Converted(),
		})
	}

	weights, err := optimizer.Fit(obs, a.optCfg)
	if err != nil {
		a.logger.Warn("weight fit fell back to defaults",
			zap.String("tenant_id", tenantID),
			zap.Int("scored_leads", len(obs)),
			zap.Error(err))
		return model.DefaultWeights()
	}
	return weights
}

// terminalLeads filters to leads with a final outcome. Leads still being
// sequenced carry no label and are excluded from both pools.
func terminalLeads(leads []model.Lead) []model.Lead {
	out := make([]model.Lead, 0, len(leads))
	for i := range leads {
		if leads[i].Status.Terminal() {
			out = append(out, leads[i])
		}
	}
	return out
}

// rankCategorical computes per-value conversion lift against the overall
// rate for values carried by at least minValueSamples leads.
func rankCategorical(leads []model.Lead, overall float64, key func(*model.Lead) string) []model.ValueStat {
	type bucket struct{ total, converted int }
	groups := make(map[string]*bucket)
	for i := range leads {
		k := key(&leads[i])
		if k == "" {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &bucket{}
			groups[k] = g
		}
		g.total++
		if leads[i].Converted() {
			g.converted++
		}
	}

	stats := make([]model.ValueStat, 0, len(groups))
	for value, g := range groups {
		if g.total < minValueSamples {
			continue
		}
		rate := float64(g.converted) / float64(g.total)
		stats = append(stats, model.ValueStat{
			Value:          value,
			Lift:           liftOf(rate, overall),
			ConversionRate: rate,
			SampleSize:     g.total,
		})
	}
	rankValueStats(stats)
	return stats
}

// flagLift contrasts the conversion rate of flagged leads against
// unflagged ones. Either side below the sample floor means no evidence,
// reported as a neutral 1.0.
func flagLift(leads []model.Lead, flag func(*model.Lead) bool) float64 {
	var fTotal, fConv, uTotal, uConv int
	for i := range leads {
		if flag(&leads[i]) {
			fTotal++
			if leads[i].Converted() {
				fConv++
			}
		} else {
			uTotal++
			if leads[i].Converted() {
				uConv++
			}
		}
	}

	if fTotal < minValueSamples || uTotal < minValueSamples {
		return 1
	}
	return liftOf(float64(fConv)/float64(fTotal), float64(uConv)/float64(uTotal))
}

// sizeAnalysis reports each size bucket's share of the converted pool and
// names the bucket with the best conversion rate the sweet spot.
func sizeAnalysis(leads []model.Lead) model.SizeAnalysis {
	type bucket struct{ total, converted int }
	groups := make(map[string]*bucket)
	totalConverted := 0
	for i := range leads {
		k := strings.TrimSpace(leads[i].SizeBucket)
		if k == "" {
			continue
		}
		g := groups[k]
		if g == nil {
			g = &bucket{}
			groups[k] = g
		}
		g.total++
		if leads[i].Converted() {
			g.converted++
			totalConverted++
		}
	}

	dist := make([]model.SizeBucketShare, 0, len(groups))
	for name, g := range groups {
		share := 0.0
		if totalConverted > 0 {
			share = float64(g.converted) / float64(totalConverted)
		}
		dist = append(dist, model.SizeBucketShare{
			Bucket:    name,
			Share:     share,
			Converted: g.converted,
			Total:     g.total,
		})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Share != dist[j].Share {
			return dist[i].Share > dist[j].Share
		}
		return dist[i].Bucket < dist[j].Bucket
	})

	sweetSpot := ""
	bestRate := -1.0
	bestTotal := 0
	for _, d := range dist {
		if d.Total < minValueSamples {
			continue
		}
		rate := float64(d.Converted) / float64(d.Total)
		better := rate > bestRate ||
			(rate == bestRate && d.Total > bestTotal) ||
			(rate == bestRate && d.Total == bestTotal && d.Bucket < sweetSpot)
		if better {
			sweetSpot = d.Bucket
			bestRate = rate
			bestTotal = d.Total
		}
	}

	return model.SizeAnalysis{SweetSpot: sweetSpot, Distribution: dist}
}
