package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Outcomes   OutcomesConfig   `yaml:"outcomes" mapstructure:"outcomes"`
	Learning   LearningConfig   `yaml:"learning" mapstructure:"learning"`
	Optimizer  OptimizerConfig  `yaml:"optimizer" mapstructure:"optimizer"`
	Vocab      VocabConfig      `yaml:"vocab" mapstructure:"vocab"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the pattern store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OutcomesConfig configures read access to the outcome database (leads and
// touches written by the outreach system). Falls back to the pattern store
// URL when unset.
type OutcomesConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LearningConfig configures the batch learning runs.
type LearningConfig struct {
	WindowDays           int     `yaml:"window_days" mapstructure:"window_days"`
	ValidityDays         int     `yaml:"validity_days" mapstructure:"validity_days"`
	MinConfidence        float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxConcurrentTenants int     `yaml:"max_concurrent_tenants" mapstructure:"max_concurrent_tenants"`
	TenantsPerSecond     float64 `yaml:"tenants_per_second" mapstructure:"tenants_per_second"`
	StoreRetryDelaySecs  int     `yaml:"store_retry_delay_secs" mapstructure:"store_retry_delay_secs"`
}

// OptimizerConfig tunes the weight solver.
type OptimizerConfig struct {
	Lambda    float64 `yaml:"lambda" mapstructure:"lambda"`
	MaxIters  int     `yaml:"max_iters" mapstructure:"max_iters"`
	Tolerance float64 `yaml:"tolerance" mapstructure:"tolerance"`
}

// VocabConfig points at the feature vocabulary file. Empty means the
// built-in vocabulary.
type VocabConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SchedulerConfig selects and configures the job runner backend.
type SchedulerConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"` // "ticker" or "temporal"
	LearnCron     string `yaml:"learn_cron" mapstructure:"learn_cron"`
	HealthCron    string `yaml:"health_cron" mapstructure:"health_cron"`
	IntervalHours int    `yaml:"interval_hours" mapstructure:"interval_hours"` // ticker backend only

	Temporal TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
}

// TemporalConfig holds Temporal connection settings.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the admin API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the pattern health checker.
type MonitoringConfig struct {
	CheckIntervalHours int    `yaml:"check_interval_hours" mapstructure:"check_interval_hours"`
	NearExpiryDays     int    `yaml:"near_expiry_days" mapstructure:"near_expiry_days"`
	WebhookURL         string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEARNING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("learning.window_days", 90)
	v.SetDefault("learning.validity_days", 14)
	v.SetDefault("learning.min_confidence", 0.3)
	v.SetDefault("learning.max_concurrent_tenants", 4)
	v.SetDefault("learning.tenants_per_second", 2.0)
	v.SetDefault("learning.store_retry_delay_secs", 5)
	v.SetDefault("optimizer.lambda", 0.01)
	v.SetDefault("optimizer.max_iters", 500)
	v.SetDefault("optimizer.tolerance", 1e-6)
	v.SetDefault("scheduler.backend", "ticker")
	v.SetDefault("scheduler.learn_cron", "0 2 * * 1")
	v.SetDefault("scheduler.health_cron", "0 6 * * *")
	v.SetDefault("scheduler.interval_hours", 168)
	v.SetDefault("scheduler.temporal.host_port", "localhost:7233")
	v.SetDefault("scheduler.temporal.namespace", "default")
	v.SetDefault("scheduler.temporal.task_queue", "learning-engine")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_hours", 24)
	v.SetDefault("monitoring.near_expiry_days", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// OutcomesURL returns the outcome database URL, falling back to the
// pattern store URL.
func (c *Config) OutcomesURL() string {
	if c.Outcomes.DatabaseURL != "" {
		return c.Outcomes.DatabaseURL
	}
	return c.Store.DatabaseURL
}

// Validate checks the fields required for the given mode. Modes map to
// commands: "serve" and "worker" have extra transport requirements, the
// rest share the common checks.
func (c *Config) Validate(mode string) error {
	var errs []string

	common := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Learning.MaxConcurrentTenants < 1 || c.Learning.MaxConcurrentTenants > 50 {
			errs = append(errs, "learning.max_concurrent_tenants must be between 1 and 50")
		}
		if c.Learning.MinConfidence < 0 || c.Learning.MinConfidence > 1 {
			errs = append(errs, "learning.min_confidence must be between 0 and 1")
		}
		if c.Learning.WindowDays < 1 {
			errs = append(errs, "learning.window_days must be >= 1")
		}
		if c.Learning.ValidityDays < 1 {
			errs = append(errs, "learning.validity_days must be >= 1")
		}
	}

	switch mode {
	case "learn", "health", "migrate", "patterns", "export":
		common()
	case "serve":
		common()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Scheduler.Backend == "temporal" && c.Scheduler.Temporal.HostPort == "" {
			errs = append(errs, "scheduler.temporal.host_port is required")
		}
	case "worker":
		common()
		if c.Scheduler.Temporal.HostPort == "" {
			errs = append(errs, "scheduler.temporal.host_port is required")
		}
		if c.Scheduler.Temporal.TaskQueue == "" {
			errs = append(errs, "scheduler.temporal.task_queue is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
