package outcome

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/db"
	"github.com/outfieldhq/learning-engine/internal/features"
	"github.com/outfieldhq/learning-engine/internal/model"
)

// Backfiller reconstructs snapshot columns on rows written before capture
// existed. Touch content is re-extracted from the retained subject and
// body; lead component scores are rebuilt from the lead's attributes with
// a fixed ladder, so a second pass writes identical values.
type Backfiller struct {
	pool      db.Pool
	extractor *features.Extractor
	logger    *zap.Logger
}

// NewBackfiller returns a backfiller over pool. A nil extractor gets the
// default vocabulary.
func NewBackfiller(pool db.Pool, extractor *features.Extractor, logger *zap.Logger) *Backfiller {
	if extractor == nil {
		extractor = features.NewExtractor(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{
		pool:      pool,
		extractor: extractor,
		logger:    logger.With(zap.String("component", "backfill")),
	}
}

// Report tallies one backfill pass over a tenant.
type Report struct {
	TouchesScanned  int `json:"touches_scanned"`
	TouchesRestored int `json:"touches_restored"`
	TouchesSkipped  int `json:"touches_skipped"`
	LeadsScanned    int `json:"leads_scanned"`
	LeadsRestored   int `json:"leads_restored"`
}

// Run reconstructs missing touch content and missing lead component
// snapshots for one tenant.
func (b *Backfiller) Run(ctx context.Context, tenantID string) (Report, error) {
	var report Report
	if err := b.restoreTouchContent(ctx, tenantID, &report); err != nil {
		return report, err
	}
	if err := b.restoreLeadScores(ctx, tenantID, &report); err != nil {
		return report, err
	}

	b.logger.Info("backfill finished",
		zap.String("tenant_id", tenantID),
		zap.Int("touches_scanned", report.TouchesScanned),
		zap.Int("touches_restored", report.TouchesRestored),
		zap.Int("touches_skipped", report.TouchesSkipped),
		zap.Int("leads_scanned", report.LeadsScanned),
		zap.Int("leads_restored", report.LeadsRestored),
	)
	return report, nil
}

// restoreTouchContent extracts a ContentSnapshot for every touch whose
// content column is NULL. Extraction hints come straight off the lead row;
// the learning model never carries the contact's name or company.
func (b *Backfiller) restoreTouchContent(ctx context.Context, tenantID string, report *Report) error {
	rows, err := b.pool.Query(ctx, `
		SELECT t.id, COALESCE(t.subject, ''), COALESCE(t.body, ''),
		       COALESCE(l.first_name, ''), COALESCE(l.company_name, ''),
		       COALESCE(l.industry, '')
		FROM outreach.touches t
		JOIN outreach.leads l ON l.id = t.lead_id
		WHERE t.tenant_id = $1 AND t.content IS NULL
		ORDER BY t.id
	`, tenantID)
	if err != nil {
		return eris.Wrapf(err, "outcome: query legacy touches for tenant %s", tenantID)
	}
	defer rows.Close()

	var updates [][]any
	for rows.Next() {
		var id, subject, body string
		var hints features.Hints
		if err := rows.Scan(&id, &subject, &body, &hints.FirstName, &hints.CompanyName, &hints.Industry); err != nil {
			return eris.Wrap(err, "outcome: scan legacy touch")
		}
		report.TouchesScanned++

		snap, err := b.extractor.Extract(subject, body, hints)
		if err != nil {
			// Blank messages carry nothing to extract. Count and move on.
			report.TouchesSkipped++
			b.logger.Debug("skipped unextractable touch",
				zap.String("tenant_id", tenantID),
				zap.String("touch_id", id),
				zap.Error(err),
			)
			continue
		}
		contentJSON, err := json.Marshal(snap)
		if err != nil {
			return eris.Wrapf(err, "outcome: marshal restored content for touch %s", id)
		}
		updates = append(updates, []any{id, contentJSON})
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "outcome: iterate legacy touches")
	}
	if len(updates) == 0 {
		return nil
	}

	// Every selected id already exists, so the upsert degrades to a bulk
	// UPDATE of the content column.
	n, err := db.BulkUpsert(ctx, b.pool, db.UpsertConfig{
		Table:        "outreach.touches",
		Columns:      []string{"id", "content"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"content"},
	}, updates)
	if err != nil {
		return eris.Wrapf(err, "outcome: write restored content for tenant %s", tenantID)
	}
	report.TouchesRestored = int(n)
	return nil
}

// restoreLeadScores rebuilds component snapshots for leads that predate
// component capture. The composite score and scored_at stay untouched; the
// value the outreach system served remains authoritative.
func (b *Backfiller) restoreLeadScores(ctx context.Context, tenantID string, report *Report) error {
	rows, err := b.pool.Query(ctx, `
		SELECT id, COALESCE(title, ''), COALESCE(industry, ''),
		       COALESCE(size_bucket, ''), COALESCE(country, ''),
		       new_role, hiring, funded
		FROM outreach.leads
		WHERE tenant_id = $1 AND component_scores IS NULL
		ORDER BY id
	`, tenantID)
	if err != nil {
		return eris.Wrapf(err, "outcome: query unscored leads for tenant %s", tenantID)
	}
	defer rows.Close()

	weightsJSON, err := json.Marshal(model.DefaultWeights())
	if err != nil {
		return eris.Wrap(err, "outcome: marshal default weights")
	}

	var updates [][]any
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ID, &l.Title, &l.Industry, &l.SizeBucket, &l.Country,
			&l.NewRole, &l.Hiring, &l.Funded); err != nil {
			return eris.Wrap(err, "outcome: scan unscored lead")
		}
		report.LeadsScanned++

		componentsJSON, err := json.Marshal(reconstructComponents(&l))
		if err != nil {
			return eris.Wrapf(err, "outcome: marshal restored components for lead %s", l.ID)
		}
		updates = append(updates, []any{l.ID, componentsJSON, weightsJSON})
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "outcome: iterate unscored leads")
	}
	if len(updates) == 0 {
		return nil
	}

	n, err := db.BulkUpsert(ctx, b.pool, db.UpsertConfig{
		Table:        "outreach.leads",
		Columns:      []string{"id", "component_scores", "score_weights"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"component_scores", "score_weights"},
	}, updates)
	if err != nil {
		return eris.Wrapf(err, "outcome: write restored components for tenant %s", tenantID)
	}
	report.LeadsRestored = int(n)
	return nil
}

// reconstructComponents rebuilds a lead's component snapshot from its
// attributes. Each component lands in the same 0-25 band the live scorer
// uses.
func reconstructComponents(l *model.Lead) map[string]float64 {
	return map[string]float64{
		model.ComponentDataQuality: dataQualityScore(l),
		model.ComponentAuthority:   authorityScore(l.Title),
		model.ComponentCompanyFit:  companyFitScore(l.SizeBucket),
		model.ComponentTiming:      timingScore(l),
	}
}

// dataQualityScore awards completeness of the attributes the analyzers
// read.
func dataQualityScore(l *model.Lead) float64 {
	fields := []string{l.Title, l.Industry, l.SizeBucket, l.Country}
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return model.ComponentMaxScore * float64(filled) / float64(len(fields))
}

// authorityScore maps title seniority onto the authority band. The VP rung
// is checked before the executive rung because "vice president" contains
// "president".
func authorityScore(title string) float64 {
	t := strings.ToLower(strings.TrimSpace(title))
	switch {
	case t == "":
		return 0
	case containsAny(t, "vice president", "vp", "partner", "principal"):
		return 20
	case containsAny(t, "founder", "owner", "ceo", "president", "chief"):
		return 25
	case containsAny(t, "director", "head of"):
		return 16
	case containsAny(t, "manager", "lead"):
		return 10
	default:
		return 6
	}
}

// companyFitScore favors the mid-market buckets the outreach playbooks
// target.
func companyFitScore(sizeBucket string) float64 {
	switch strings.TrimSpace(sizeBucket) {
	case "11-50", "51-200":
		return 25
	case "201-500":
		return 18
	case "1-10":
		return 14
	case "501-1000":
		return 10
	case "":
		return 0
	default:
		return 8
	}
}

// timingScore splits the band across the three sourcing signals.
func timingScore(l *model.Lead) float64 {
	score := 0.0
	if l.NewRole {
		score += 9
	}
	if l.Hiring {
		score += 8
	}
	if l.Funded {
		score += 8
	}
	return score
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
