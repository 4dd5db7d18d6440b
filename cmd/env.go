package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/db"
	"github.com/outfieldhq/learning-engine/internal/detector"
	"github.com/outfieldhq/learning-engine/internal/features"
	"github.com/outfieldhq/learning-engine/internal/health"
	"github.com/outfieldhq/learning-engine/internal/optimizer"
	"github.com/outfieldhq/learning-engine/internal/orchestrator"
	"github.com/outfieldhq/learning-engine/internal/outcome"
	"github.com/outfieldhq/learning-engine/internal/store"
	"github.com/outfieldhq/learning-engine/internal/weights"
)

// engineEnv holds the initialized store, outcome reader, weight cache, and
// orchestrator the commands share.
type engineEnv struct {
	Store        store.Store
	Source       *outcome.Reader
	Weights      *weights.Cache
	Orchestrator *orchestrator.Orchestrator
	Backfiller   *outcome.Backfiller
	Scanner      *health.Scanner
	Alerter      *health.Alerter

	// outcomesPool is owned by the env; nil when the reader shares the
	// store's pool or no outcomes database is configured.
	outcomesPool *pgxpool.Pool
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.outcomesPool != nil {
		e.outcomesPool.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine validates config for mode, opens the store and outcome
// database, and wires the orchestrator. When no outcomes database is
// reachable the env still serves the read-only commands; Source,
// Backfiller, and Orchestrator stay nil. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string, ocfg orchestrator.Config) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &engineEnv{
		Store:   st,
		Weights: weights.New(st, zap.L()),
	}

	pool, owned, err := initOutcomesPool(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	env.outcomesPool = owned

	if pool != nil {
		vocab, err := loadVocabulary()
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Source = outcome.NewReader(pool, zap.L())
		env.Backfiller = outcome.NewBackfiller(pool, features.NewExtractor(vocab), zap.L())
		env.Orchestrator = orchestrator.New(ocfg, env.Source, st, env.Weights, env.Backfiller, detector.All(optimizerConfig()), zap.L())
	} else {
		zap.L().Warn("outcomes database not configured, learning disabled")
	}

	thresholds := health.DefaultThresholds()
	if cfg.Monitoring.NearExpiryDays > 0 {
		thresholds.NearExpiryDays = cfg.Monitoring.NearExpiryDays
	}
	thresholds.MinConfidence = cfg.Learning.MinConfidence
	env.Scanner = health.NewScanner(st, thresholds, zap.L())
	env.Alerter = health.NewAlerter(cfg.Monitoring.WebhookURL, zap.L())

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "learning.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initOutcomesPool returns the pool the outcome reader uses. A dedicated
// outcomes.database_url gets its own pool; otherwise a Postgres store
// shares its pool, and a SQLite store has no outcome source at all.
func initOutcomesPool(ctx context.Context, st store.Store) (db.Pool, *pgxpool.Pool, error) {
	if cfg.Outcomes.DatabaseURL == "" {
		if ps, ok := st.(*store.PostgresStore); ok {
			return ps.Pool(), nil, nil
		}
		return nil, nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Outcomes.DatabaseURL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect outcomes database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, eris.Wrap(err, "ping outcomes database")
	}
	return pool, pool, nil
}

func loadVocabulary() (*features.Vocabulary, error) {
	if cfg.Vocab.Path == "" {
		return features.DefaultVocabulary(), nil
	}
	vocab, err := features.LoadVocabulary(cfg.Vocab.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load vocabulary")
	}
	zap.L().Info("vocabulary loaded", zap.String("path", cfg.Vocab.Path))
	return vocab, nil
}

func optimizerConfig() optimizer.Config {
	ocfg := optimizer.DefaultConfig()
	if cfg.Optimizer.Lambda > 0 {
		ocfg.Lambda = cfg.Optimizer.Lambda
	}
	if cfg.Optimizer.MaxIters > 0 {
		ocfg.MaxIters = cfg.Optimizer.MaxIters
	}
	if cfg.Optimizer.Tolerance > 0 {
		ocfg.Tolerance = cfg.Optimizer.Tolerance
	}
	return ocfg
}

func learningConfig() orchestrator.Config {
	return orchestrator.Config{
		WindowDays:           cfg.Learning.WindowDays,
		ValidityDays:         cfg.Learning.ValidityDays,
		MinConfidence:        cfg.Learning.MinConfidence,
		MaxConcurrentTenants: cfg.Learning.MaxConcurrentTenants,
		TenantsPerSecond:     cfg.Learning.TenantsPerSecond,
		StoreRetryDelay:      time.Duration(cfg.Learning.StoreRetryDelaySecs) * time.Second,
	}
}
