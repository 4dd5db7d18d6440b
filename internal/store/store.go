// Package store persists learned conversion patterns, their version
// history, the per-tenant weight cache, learning-run records, and the
// retry queue for failed tenant runs. Two backends implement the same
// interface: Postgres for deployments and SQLite for local runs and
// tests.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/resilience"
)

// RunFilter narrows ListRuns results. Zero values match everything.
type RunFilter struct {
	TenantID string
	Status   model.RunStatus
	Trigger  model.RunTrigger
	Since    time.Time
	Limit    int
}

// HistoryFilter narrows ListHistory results.
type HistoryFilter struct {
	TenantID string
	Type     model.PatternType
	Limit    int
}

// Store is the persistence interface for the learning pipeline.
type Store interface {
	// SavePattern upserts the current pattern for (tenant, type) inside a
	// transaction: the version increments atomically and a history row is
	// appended with the new version. The returned pattern carries the
	// assigned version.
	SavePattern(ctx context.Context, p *model.Pattern) (*model.Pattern, error)

	// RecordHistory appends a history row without touching the current
	// pattern. Used for sentinel and low-confidence results that are
	// archived but never promoted; those rows keep version 0.
	RecordHistory(ctx context.Context, p *model.Pattern) error

	// GetPattern returns the current pattern for (tenant, type), or
	// (nil, nil) when none has been stored yet.
	GetPattern(ctx context.Context, tenantID string, t model.PatternType) (*model.Pattern, error)

	// ListPatterns returns all current patterns for a tenant in canonical
	// type order (who, what, when, how).
	ListPatterns(ctx context.Context, tenantID string) ([]*model.Pattern, error)

	// ListAllPatterns returns every tenant's current patterns, ordered by
	// tenant then type. The health checker scans these.
	ListAllPatterns(ctx context.Context) ([]*model.Pattern, error)

	// ListHistory returns archived pattern rows, newest first.
	ListHistory(ctx context.Context, filter HistoryFilter) ([]*model.Pattern, error)

	// GetWeightCache returns a tenant's cached scoring weights, or
	// (nil, nil) when the tenant has none.
	GetWeightCache(ctx context.Context, tenantID string) (*model.WeightCacheEntry, error)

	// PutWeightCache upserts a tenant's cached scoring weights.
	PutWeightCache(ctx context.Context, entry *model.WeightCacheEntry) error

	// CreateRun inserts a new learning run in the running state and
	// returns it with its assigned ID.
	CreateRun(ctx context.Context, trigger model.RunTrigger, tenantID string) (*model.LearningRun, error)

	// CompleteRun finalizes a run with its terminal status and summary.
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error

	// GetRun returns a run by ID, or (nil, nil) when it does not exist.
	GetRun(ctx context.Context, runID string) (*model.LearningRun, error)

	// ListRuns returns runs matching the filter, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]*model.LearningRun, error)

	// EnqueueDLQ adds a failed tenant to the retry queue.
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error

	// DequeueDLQ returns queue entries matching the filter that are due
	// for retry, oldest first.
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)

	// IncrementDLQRetry bumps an entry's retry count after a failed
	// retry attempt and schedules the next one.
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error

	// RemoveDLQ deletes an entry after a successful retry.
	RemoveDLQ(ctx context.Context, id string) error

	// CountDLQ returns the number of entries in the retry queue.
	CountDLQ(ctx context.Context) (int, error)

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}

// scannable abstracts over pgx.Row, pgx.Rows, *sql.Row, and *sql.Rows so
// both backends share one pattern scanner.
type scannable interface {
	Scan(dest ...any) error
}

// patternColumns is the column order every pattern query selects.
const patternColumns = `tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until`

func scanPattern(row scannable) (*model.Pattern, error) {
	var (
		p          model.Pattern
		typ        string
		payloadRaw []byte
	)
	if err := row.Scan(&p.TenantID, &typ, &p.Version, &payloadRaw,
		&p.SampleSize, &p.Confidence, &p.ComputedAt, &p.ValidUntil); err != nil {
		return nil, err
	}
	p.Type = model.PatternType(typ)
	payload, err := model.DecodePayload(p.Type, payloadRaw)
	if err != nil {
		return nil, err
	}
	p.Payload = payload
	return &p, nil
}

// validatePattern enforces the write invariants both backends share: a
// known type, a payload matching it, confidence in [0,1], and a validity
// window that ends after it starts.
func validatePattern(p *model.Pattern) error {
	if p == nil {
		return eris.New("store: nil pattern")
	}
	if p.TenantID == "" {
		return eris.New("store: pattern missing tenant id")
	}
	if !p.Type.Valid() {
		return eris.Errorf("store: unknown pattern type %q", p.Type)
	}
	if p.Payload == nil {
		return eris.Errorf("store: pattern %s/%s has no payload", p.TenantID, p.Type)
	}
	if got := p.Payload.PatternType(); got != p.Type {
		return eris.Errorf("store: payload type %s does not match pattern type %s", got, p.Type)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return eris.Errorf("store: confidence %v outside [0,1] for %s/%s", p.Confidence, p.TenantID, p.Type)
	}
	if !p.ValidUntil.After(p.ComputedAt) {
		return eris.Errorf("store: valid_until not after computed_at for %s/%s", p.TenantID, p.Type)
	}
	return nil
}

// validateWeightEntry rejects partial weight sets so the scorer's cache
// never serves a half-learned configuration.
func validateWeightEntry(entry *model.WeightCacheEntry) error {
	if entry == nil {
		return eris.New("store: nil weight cache entry")
	}
	if entry.TenantID == "" {
		return eris.New("store: weight cache entry missing tenant id")
	}
	for _, name := range model.ScoreComponents {
		if _, ok := entry.Weights[name]; !ok {
			return eris.Errorf("store: weight cache entry missing component %s", name)
		}
	}
	return nil
}
