package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS conversion_patterns (
	tenant_id    TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	version      INTEGER NOT NULL DEFAULT 1,
	payload      TEXT NOT NULL,
	sample_size  INTEGER NOT NULL DEFAULT 0,
	confidence   REAL NOT NULL DEFAULT 0,
	computed_at  DATETIME NOT NULL,
	valid_until  DATETIME NOT NULL,
	PRIMARY KEY (tenant_id, pattern_type)
);

CREATE INDEX IF NOT EXISTS idx_patterns_valid_until ON conversion_patterns(valid_until);

CREATE TABLE IF NOT EXISTS pattern_history (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	version      INTEGER NOT NULL DEFAULT 0,
	payload      TEXT NOT NULL,
	sample_size  INTEGER NOT NULL DEFAULT 0,
	confidence   REAL NOT NULL DEFAULT 0,
	computed_at  DATETIME NOT NULL,
	valid_until  DATETIME NOT NULL,
	recorded_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_tenant_type ON pattern_history(tenant_id, pattern_type, recorded_at DESC);

CREATE TABLE IF NOT EXISTS client_weight_cache (
	tenant_id   TEXT PRIMARY KEY,
	weights     TEXT NOT NULL,
	sample_size INTEGER NOT NULL DEFAULT 0,
	confidence  REAL NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS learning_runs (
	id           TEXT PRIMARY KEY,
	triggered_by TEXT NOT NULL,
	tenant_id    TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	summary      TEXT,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_learning_runs_started_at ON learning_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_learning_runs_tenant ON learning_runs(tenant_id);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	pattern_type   TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
CREATE INDEX IF NOT EXISTS idx_dlq_tenant ON dead_letter_queue(tenant_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePattern(ctx context.Context, p *model.Pattern) (*model.Pattern, error) {
	if err := validatePattern(p); err != nil {
		return nil, err
	}
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal pattern payload")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin save pattern")
	}
	defer tx.Rollback()

	version := 1
	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT version FROM conversion_patterns WHERE tenant_id = ? AND pattern_type = ?`,
		p.TenantID, string(p.Type),
	).Scan(&current)
	switch {
	case err == nil:
		version = current + 1
	case errors.Is(err, sql.ErrNoRows):
		// first version for this tenant and type
	default:
		return nil, eris.Wrapf(err, "sqlite: read pattern version %s/%s", p.TenantID, p.Type)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversion_patterns (tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, pattern_type) DO UPDATE SET
		   version = excluded.version, payload = excluded.payload, sample_size = excluded.sample_size,
		   confidence = excluded.confidence, computed_at = excluded.computed_at, valid_until = excluded.valid_until`,
		p.TenantID, string(p.Type), version, string(payloadJSON), p.SampleSize, p.Confidence, p.ComputedAt, p.ValidUntil,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert pattern %s/%s", p.TenantID, p.Type)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pattern_history (id, tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), p.TenantID, string(p.Type), version, string(payloadJSON),
		p.SampleSize, p.Confidence, p.ComputedAt, p.ValidUntil, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert pattern history %s/%s", p.TenantID, p.Type)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit save pattern")
	}

	stored := *p
	stored.Version = version
	return &stored, nil
}

func (s *SQLiteStore) RecordHistory(ctx context.Context, p *model.Pattern) error {
	if err := validatePattern(p); err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pattern payload")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pattern_history (id, tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), p.TenantID, string(p.Type), p.Version, string(payloadJSON),
		p.SampleSize, p.Confidence, p.ComputedAt, p.ValidUntil, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record history %s/%s", p.TenantID, p.Type)
}

func (s *SQLiteStore) GetPattern(ctx context.Context, tenantID string, t model.PatternType) (*model.Pattern, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM conversion_patterns WHERE tenant_id = ? AND pattern_type = ?`,
		tenantID, string(t),
	)
	p, err := scanPattern(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get pattern %s/%s", tenantID, t)
	}
	return p, nil
}

func (s *SQLiteStore) ListPatterns(ctx context.Context, tenantID string) ([]*model.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM conversion_patterns WHERE tenant_id = ?
		 ORDER BY CASE pattern_type WHEN 'who' THEN 0 WHEN 'what' THEN 1 WHEN 'when' THEN 2 ELSE 3 END`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list patterns")
	}
	defer rows.Close()

	var patterns []*model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: list patterns iterate")
}

func (s *SQLiteStore) ListAllPatterns(ctx context.Context) ([]*model.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+patternColumns+` FROM conversion_patterns
		 ORDER BY tenant_id, CASE pattern_type WHEN 'who' THEN 0 WHEN 'what' THEN 1 WHEN 'when' THEN 2 ELSE 3 END`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list all patterns")
	}
	defer rows.Close()

	var patterns []*model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: list all patterns iterate")
}

func (s *SQLiteStore) ListHistory(ctx context.Context, filter HistoryFilter) ([]*model.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM pattern_history WHERE 1=1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Type != "" {
		query += ` AND pattern_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY recorded_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list history")
	}
	defer rows.Close()

	var patterns []*model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history row")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: list history iterate")
}

func (s *SQLiteStore) GetWeightCache(ctx context.Context, tenantID string) (*model.WeightCacheEntry, error) {
	var e model.WeightCacheEntry
	var weightsJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, weights, sample_size, confidence, updated_at FROM client_weight_cache WHERE tenant_id = ?`,
		tenantID,
	).Scan(&e.TenantID, &weightsJSON, &e.SampleSize, &e.Confidence, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get weight cache")
	}
	if err := json.Unmarshal([]byte(weightsJSON), &e.Weights); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached weights")
	}
	return &e, nil
}

func (s *SQLiteStore) PutWeightCache(ctx context.Context, entry *model.WeightCacheEntry) error {
	if err := validateWeightEntry(entry); err != nil {
		return err
	}
	weightsJSON, err := json.Marshal(entry.Weights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal weights")
	}

	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO client_weight_cache (tenant_id, weights, sample_size, confidence, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   weights = excluded.weights, sample_size = excluded.sample_size,
		   confidence = excluded.confidence, updated_at = excluded.updated_at`,
		entry.TenantID, string(weightsJSON), entry.SampleSize, entry.Confidence, updatedAt,
	)
	return eris.Wrap(err, "sqlite: put weight cache")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, trigger model.RunTrigger, tenantID string) (*model.LearningRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learning_runs (id, triggered_by, tenant_id, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(trigger), tenantID, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert learning run")
	}

	return &model.LearningRun{
		ID:        id,
		Trigger:   trigger,
		TenantID:  tenantID,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE learning_runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "learning run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.LearningRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, triggered_by, tenant_id, status, summary, started_at, finished_at FROM learning_runs WHERE id = ?`,
		runID,
	)
	r, err := scanLearningRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*model.LearningRun, error) {
	query := `SELECT id, triggered_by, tenant_id, status, summary, started_at, finished_at FROM learning_runs WHERE 1=1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Trigger != "" {
		query += ` AND triggered_by = ?`
		args = append(args, string(filter.Trigger))
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []*model.LearningRun
	for rows.Next() {
		r, err := scanLearningRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Dead letter queue methods

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, tenant_id, pattern_type, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.TenantID, entry.PatternType, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, tenant_id, pattern_type, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var patternType sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &patternType, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		if patternType.Valid {
			e.PatternType = patternType.String
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanLearningRun(row scannable) (*model.LearningRun, error) {
	var r model.LearningRun
	var trigger, status string
	var summaryJSON sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&r.ID, &trigger, &r.TenantID, &status, &summaryJSON, &r.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	r.Trigger = model.RunTrigger(trigger)
	r.Status = model.RunStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	if summaryJSON.Valid {
		if err := json.Unmarshal([]byte(summaryJSON.String), &r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run summary")
		}
	}
	return &r, nil
}
