package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/outfieldhq/learning-engine/internal/db"
	"github.com/outfieldhq/learning-engine/internal/model"
	"github.com/outfieldhq/learning-engine/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_pattern":      `SELECT tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until FROM conversion_patterns WHERE tenant_id = $1 AND pattern_type = $2`,
	"list_patterns":    `SELECT tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until FROM conversion_patterns WHERE tenant_id = $1`,
	"insert_history":   `INSERT INTO pattern_history (id, tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"get_weight_cache": `SELECT tenant_id, weights, sample_size, confidence, updated_at FROM client_weight_cache WHERE tenant_id = $1`,
	"put_weight_cache": `INSERT INTO client_weight_cache (tenant_id, weights, sample_size, confidence, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (tenant_id) DO UPDATE SET weights = $2, sample_size = $3, confidence = $4, updated_at = $5`,
	"get_run":          `SELECT id, triggered_by, tenant_id, status, summary, started_at, finished_at FROM learning_runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the outcome reader and backfiller).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS conversion_patterns (
	tenant_id    TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	version      INTEGER NOT NULL DEFAULT 1,
	payload      JSONB NOT NULL,
	sample_size  INTEGER NOT NULL DEFAULT 0,
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	computed_at  TIMESTAMPTZ NOT NULL,
	valid_until  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, pattern_type)
);

CREATE INDEX IF NOT EXISTS idx_patterns_valid_until ON conversion_patterns(valid_until);

CREATE TABLE IF NOT EXISTS pattern_history (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id    TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	version      INTEGER NOT NULL DEFAULT 0,
	payload      JSONB NOT NULL,
	sample_size  INTEGER NOT NULL DEFAULT 0,
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	computed_at  TIMESTAMPTZ NOT NULL,
	valid_until  TIMESTAMPTZ NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_tenant_type ON pattern_history(tenant_id, pattern_type, recorded_at DESC);

CREATE TABLE IF NOT EXISTS client_weight_cache (
	tenant_id   TEXT PRIMARY KEY,
	weights     JSONB NOT NULL,
	sample_size INTEGER NOT NULL DEFAULT 0,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS learning_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	triggered_by TEXT NOT NULL,
	tenant_id    TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'running',
	summary      JSONB,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_learning_runs_started_at ON learning_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_learning_runs_tenant ON learning_runs(tenant_id);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id      TEXT NOT NULL,
	pattern_type   TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
CREATE INDEX IF NOT EXISTS idx_dlq_tenant ON dead_letter_queue(tenant_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SavePattern(ctx context.Context, p *model.Pattern) (*model.Pattern, error) {
	if err := validatePattern(p); err != nil {
		return nil, err
	}
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal pattern payload")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin save pattern")
	}
	defer tx.Rollback(ctx)

	// The version bump and the history append commit together, so the
	// history never misses a version the current table has served.
	var version int
	err = tx.QueryRow(ctx,
		`INSERT INTO conversion_patterns (tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until)
		 VALUES ($1, $2, 1, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, pattern_type) DO UPDATE SET
		   version = conversion_patterns.version + 1,
		   payload = $3, sample_size = $4, confidence = $5, computed_at = $6, valid_until = $7
		 RETURNING version`,
		p.TenantID, string(p.Type), payloadJSON, p.SampleSize, p.Confidence, p.ComputedAt, p.ValidUntil,
	).Scan(&version)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert pattern %s/%s", p.TenantID, p.Type)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO pattern_history (id, tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New().String(), p.TenantID, string(p.Type), version, payloadJSON,
		p.SampleSize, p.Confidence, p.ComputedAt, p.ValidUntil, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert pattern history %s/%s", p.TenantID, p.Type)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit save pattern")
	}

	stored := *p
	stored.Version = version
	return &stored, nil
}

func (s *PostgresStore) RecordHistory(ctx context.Context, p *model.Pattern) error {
	if err := validatePattern(p); err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pattern payload")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pattern_history (id, tenant_id, pattern_type, version, payload, sample_size, confidence, computed_at, valid_until, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New().String(), p.TenantID, string(p.Type), p.Version, payloadJSON,
		p.SampleSize, p.Confidence, p.ComputedAt, p.ValidUntil, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record history %s/%s", p.TenantID, p.Type)
}

func (s *PostgresStore) GetPattern(ctx context.Context, tenantID string, t model.PatternType) (*model.Pattern, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM conversion_patterns WHERE tenant_id = $1 AND pattern_type = $2`,
		tenantID, string(t),
	)
	p, err := scanPattern(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get pattern %s/%s", tenantID, t)
	}
	return p, nil
}

func (s *PostgresStore) ListPatterns(ctx context.Context, tenantID string) ([]*model.Pattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patternColumns+` FROM conversion_patterns WHERE tenant_id = $1
		 ORDER BY CASE pattern_type WHEN 'who' THEN 0 WHEN 'what' THEN 1 WHEN 'when' THEN 2 ELSE 3 END`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list patterns")
	}
	defer rows.Close()

	var patterns []*model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: list patterns iterate")
}

func (s *PostgresStore) ListAllPatterns(ctx context.Context) ([]*model.Pattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patternColumns+` FROM conversion_patterns
		 ORDER BY tenant_id, CASE pattern_type WHEN 'who' THEN 0 WHEN 'what' THEN 1 WHEN 'when' THEN 2 ELSE 3 END`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list all patterns")
	}
	defer rows.Close()

	var patterns []*model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: list all patterns iterate")
}

func (s *PostgresStore) ListHistory(ctx context.Context, filter HistoryFilter) ([]*model.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM pattern_history WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND pattern_type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	query += ` ORDER BY recorded_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list history")
	}
	defer rows.Close()

	var patterns []*model.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan history row")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: list history iterate")
}

func (s *PostgresStore) GetWeightCache(ctx context.Context, tenantID string) (*model.WeightCacheEntry, error) {
	var e model.WeightCacheEntry
	var weightsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, weights, sample_size, confidence, updated_at FROM client_weight_cache WHERE tenant_id = $1`,
		tenantID,
	).Scan(&e.TenantID, &weightsJSON, &e.SampleSize, &e.Confidence, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get weight cache")
	}
	if err := json.Unmarshal(weightsJSON, &e.Weights); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached weights")
	}
	return &e, nil
}

func (s *PostgresStore) PutWeightCache(ctx context.Context, entry *model.WeightCacheEntry) error {
	if err := validateWeightEntry(entry); err != nil {
		return err
	}
	weightsJSON, err := json.Marshal(entry.Weights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal weights")
	}

	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO client_weight_cache (tenant_id, weights, sample_size, confidence, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id) DO UPDATE SET weights = $2, sample_size = $3, confidence = $4, updated_at = $5`,
		entry.TenantID, weightsJSON, entry.SampleSize, entry.Confidence, updatedAt,
	)
	return eris.Wrap(err, "postgres: put weight cache")
}

func (s *PostgresStore) CreateRun(ctx context.Context, trigger model.RunTrigger, tenantID string) (*model.LearningRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO learning_runs (id, triggered_by, tenant_id, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(trigger), tenantID, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert learning run")
	}

	return &model.LearningRun{
		ID:        id,
		Trigger:   trigger,
		TenantID:  tenantID,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE learning_runs SET status = $1, summary = $2, finished_at = $3 WHERE id = $4`,
		string(status), summaryJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("learning run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.LearningRun, error) {
	var r model.LearningRun
	var trigger, status string
	var summaryNull *[]byte
	var finishedAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, triggered_by, tenant_id, status, summary, started_at, finished_at FROM learning_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &trigger, &r.TenantID, &status, &summaryNull, &r.StartedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	r.Trigger = model.RunTrigger(trigger)
	r.Status = model.RunStatus(status)
	r.FinishedAt = finishedAt
	if summaryNull != nil {
		if err := json.Unmarshal(*summaryNull, &r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run summary")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*model.LearningRun, error) {
	query := `SELECT id, triggered_by, tenant_id, status, summary, started_at, finished_at FROM learning_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Trigger != "" {
		query += fmt.Sprintf(` AND triggered_by = $%d`, argIdx)
		args = append(args, string(filter.Trigger))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []*model.LearningRun
	for rows.Next() {
		var r model.LearningRun
		var trigger, status string
		var summaryNull *[]byte
		var finishedAt *time.Time

		if err := rows.Scan(&r.ID, &trigger, &r.TenantID, &status, &summaryNull, &r.StartedAt, &finishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Trigger = model.RunTrigger(trigger)
		r.Status = model.RunStatus(status)
		r.FinishedAt = finishedAt
		if summaryNull != nil {
			if err := json.Unmarshal(*summaryNull, &r.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run summary")
			}
		}
		runs = append(runs, &r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// Dead letter queue methods

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, tenant_id, pattern_type, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $4, error_type = $5, retry_count = $6,
		   next_retry_at = $8, last_failed_at = $10`,
		entry.ID, entry.TenantID, entry.PatternType, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, tenant_id, pattern_type, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}
	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var patternType *string
		if err := rows.Scan(&e.ID, &e.TenantID, &patternType, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if patternType != nil {
			e.PatternType = *patternType
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq_entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}
