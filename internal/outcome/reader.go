// Package outcome reads the outreach system's outcome-labeled lead and
// touch rows. The reader never writes; the backfiller is the single write
// path and it only fills snapshot columns that were never captured.
package outcome

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/db"
	"github.com/outfieldhq/learning-engine/internal/model"
)

// Snapshot is one tenant's windowed view of the outcome store. Every touch
// in Touches belongs to a lead in Leads.
type Snapshot struct {
	TenantID string
	Window   model.Window
	Leads    []model.Lead
	Touches  []model.Touch
}

// Reader loads outcome snapshots from the outreach schema.
type Reader struct {
	pool   db.Pool
	logger *zap.Logger
}

// NewReader returns a reader over pool.
func NewReader(pool db.Pool, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{pool: pool, logger: logger.With(zap.String("component", "outcome"))}
}

// ListActiveTenants returns the sorted tenant IDs that resolved at least
// one lead inside the window. Tenants with only in-flight leads have
// nothing to learn from and are not listed.
func (r *Reader) ListActiveTenants(ctx context.Context, window model.Window) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT tenant_id FROM outreach.leads
		WHERE status <> 'active' AND created_at >= $1 AND created_at < $2
		ORDER BY tenant_id
	`, window.From, window.To)
	if err != nil {
		return nil, eris.Wrap(err, "outcome: query active tenants")
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "outcome: scan tenant id")
		}
		tenants = append(tenants, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "outcome: iterate active tenants")
	}

	r.logger.Info("listed active tenants",
		zap.Int("count", len(tenants)),
		zap.Time("from", window.From),
		zap.Time("to", window.To),
	)
	return tenants, nil
}

// FetchSnapshot loads the tenant's terminal leads created inside the window
// together with every touch sent to them. Touches keep their per-lead send
// order so sequence analysis never has to re-sort.
func (r *Reader) FetchSnapshot(ctx context.Context, tenantID string, window model.Window) (*Snapshot, error) {
	leads, err := r.fetchLeads(ctx, tenantID, window)
	if err != nil {
		return nil, err
	}
	touches, err := r.fetchTouches(ctx, tenantID, window)
	if err != nil {
		return nil, err
	}

	r.logger.Info("loaded outcome snapshot",
		zap.String("tenant_id", tenantID),
		zap.Int("leads", len(leads)),
		zap.Int("touches", len(touches)),
		zap.Time("from", window.From),
		zap.Time("to", window.To),
	)
	return &Snapshot{TenantID: tenantID, Window: window, Leads: leads, Touches: touches}, nil
}

func (r *Reader) fetchLeads(ctx context.Context, tenantID string, window model.Window) ([]model.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, COALESCE(title, ''), COALESCE(industry, ''),
		       COALESCE(size_bucket, ''), COALESCE(country, ''),
		       new_role, hiring, funded, status,
		       component_scores, score_weights, COALESCE(score, 0),
		       scored_at, created_at
		FROM outreach.leads
		WHERE tenant_id = $1 AND status <> 'active'
		  AND created_at >= $2 AND created_at < $3
		ORDER BY id
	`, tenantID, window.From, window.To)
	if err != nil {
		return nil, eris.Wrapf(err, "outcome: query leads for tenant %s", tenantID)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var (
			l              model.Lead
			status         string
			componentsJSON []byte
			weightsJSON    []byte
		)
		err := rows.Scan(
			&l.ID, &l.TenantID, &l.Title, &l.Industry,
			&l.SizeBucket, &l.Country,
			&l.NewRole, &l.Hiring, &l.Funded, &status,
			&componentsJSON, &weightsJSON, &l.Score,
			&l.ScoredAt, &l.CreatedAt,
		)
		if err != nil {
			return nil, eris.Wrap(err, "outcome: scan lead")
		}
		l.Status = model.LeadStatus(status)
		if len(componentsJSON) > 0 {
			if err := json.Unmarshal(componentsJSON, &l.ComponentScores); err != nil {
				return nil, eris.Wrapf(err, "outcome: unmarshal component scores for lead %s", l.ID)
			}
		}
		if len(weightsJSON) > 0 {
			if err := json.Unmarshal(weightsJSON, &l.ScoreWeights); err != nil {
				return nil, eris.Wrapf(err, "outcome: unmarshal score weights for lead %s", l.ID)
			}
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "outcome: iterate leads")
	}
	return leads, nil
}

func (r *Reader) fetchTouches(ctx context.Context, tenantID string, window model.Window) ([]model.Touch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.tenant_id, t.lead_id, t.channel, t.sent_at,
		       t.touch_number, COALESCE(t.sequence_id, ''),
		       COALESCE(t.subject, ''), COALESCE(t.body, ''),
		       t.content, t.led_to_booking
		FROM outreach.touches t
		JOIN outreach.leads l ON l.id = t.lead_id
		WHERE t.tenant_id = $1 AND l.status <> 'active'
		  AND l.created_at >= $2 AND l.created_at < $3
		ORDER BY t.lead_id, t.touch_number
	`, tenantID, window.From, window.To)
	if err != nil {
		return nil, eris.Wrapf(err, "outcome: query touches for tenant %s", tenantID)
	}
	defer rows.Close()

	var touches []model.Touch
	for rows.Next() {
		var (
			t           model.Touch
			channel     string
			contentJSON []byte
		)
		err := rows.Scan(
			&t.ID, &t.TenantID, &t.LeadID, &channel, &t.SentAt,
			&t.TouchNumber, &t.SequenceID,
			&t.Subject, &t.Body,
			&contentJSON, &t.LedToBooking,
		)
		if err != nil {
			return nil, eris.Wrap(err, "outcome: scan touch")
		}
		t.Channel = model.Channel(channel)
		if len(contentJSON) > 0 {
			var snap model.ContentSnapshot
			if err := json.Unmarshal(contentJSON, &snap); err != nil {
				// A corrupt snapshot must not sink the whole tenant. The
				// touch stays in the set with nil content and the analyzers
				// count it as skipped.
				r.logger.Warn("unreadable content snapshot",
					zap.String("tenant_id", tenantID),
					zap.String("touch_id", t.ID),
					zap.Error(err),
				)
			} else {
				t.Content = &snap
			}
		}
		touches = append(touches, t)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "outcome: iterate touches")
	}
	return touches, nil
}
