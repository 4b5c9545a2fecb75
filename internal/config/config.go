// Package config loads the daemon's configuration from an optional YAML
// file plus SKILLCORE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete daemon configuration.
type Config struct {
	Retry         RetryConfig         `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Resilience    ResilienceConfig    `mapstructure:"resilience"`
	Analyzer      AnalyzerConfig      `mapstructure:"analyzer"`
	Evolution     EvolutionConfig     `mapstructure:"evolution"`
	Persistence   PersistenceConfig   `mapstructure:"persistence"`
	EventBus      EventBusConfig      `mapstructure:"event_bus"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Server        ServerConfig        `mapstructure:"server"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
}

// TracingConfig controls OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Endpoint    string `mapstructure:"endpoint"`
}

// RetryConfig parameterizes C2.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	Jitter            bool          `mapstructure:"jitter"`
}

// CircuitBreakerConfig parameterizes C3.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	CooldownTimeout  time.Duration `mapstructure:"cooldown_timeout"`
}

// ResilienceConfig parameterizes C8's orchestration knobs.
type ResilienceConfig struct {
	EnableCreativeSolving bool          `mapstructure:"enable_creative_solving"`
	MaxParallelStrategies int           `mapstructure:"max_parallel_strategies"`
	MaxTotalTime          time.Duration `mapstructure:"max_total_time"` // 0 = unlimited
}

// AnalyzerConfig parameterizes C4.
type AnalyzerConfig struct {
	RingCapacity     int           `mapstructure:"ring_capacity"`
	RetentionWindow  time.Duration `mapstructure:"retention_window"`
	PatternThreshold int           `mapstructure:"pattern_threshold"`
	CascadeWindow    time.Duration `mapstructure:"cascade_window"`
}

// EvolutionConfig parameterizes C12's three loops.
type EvolutionConfig struct {
	ExplorationIntervalHours  float64 `mapstructure:"exploration_interval_hours"`
	OptimizationIntervalHours float64 `mapstructure:"optimization_interval_hours"`
	PruningIntervalHours      float64 `mapstructure:"pruning_interval_hours"`
	MaxSkillsPerExploration   int     `mapstructure:"max_skills_per_exploration"`
	MinUsesBeforePrune        int     `mapstructure:"min_uses_before_prune"`
	MinSuccessRate            float64 `mapstructure:"min_success_rate"`
	MinOverallScore           float64 `mapstructure:"min_overall_score"`
	MaxUnusedDays             int     `mapstructure:"max_unused_days"`
	MinCompatibilityScore     float64 `mapstructure:"min_compatibility_score"`
	DryRunPrune               bool    `mapstructure:"dry_run_prune"`
}

// PersistenceConfig controls where crash-safe state lives.
type PersistenceConfig struct {
	DataDir  string         `mapstructure:"data_dir"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	S3       S3Config       `mapstructure:"s3"`
}

// PostgresConfig is used by the optional LearningStore backend.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// S3Config enables optional archival of metrics/report snapshots.
type S3Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Region  string `mapstructure:"region"`
	Prefix  string `mapstructure:"prefix"`
}

// EventBusConfig controls C4's failure-event publication.
type EventBusConfig struct {
	Type      string `mapstructure:"type"` // "in_process" or "redis"
	RedisAddr string `mapstructure:"redis_addr"`
	StreamKey string `mapstructure:"stream_key"`
}

// MetricsConfig parameterizes C9.
type MetricsConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

// ServerConfig controls the minimal embedded host surface (§6).
type ServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// Load loads configuration from an optional YAML file and
// SKILLCORE_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	configFile := os.Getenv("SKILLCORE_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("SKILLCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 1*time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("retry.jitter", true)

	v.SetDefault("circuit_breaker.failure_threshold", 3)
	v.SetDefault("circuit_breaker.cooldown_timeout", 60*time.Second)

	v.SetDefault("resilience.enable_creative_solving", true)
	v.SetDefault("resilience.max_parallel_strategies", 5)
	v.SetDefault("resilience.max_total_time", 0)

	v.SetDefault("analyzer.ring_capacity", 1000)
	v.SetDefault("analyzer.retention_window", 24*time.Hour)
	v.SetDefault("analyzer.pattern_threshold", 3)
	v.SetDefault("analyzer.cascade_window", 60*time.Second)

	v.SetDefault("evolution.exploration_interval_hours", 6.0)
	v.SetDefault("evolution.optimization_interval_hours", 12.0)
	v.SetDefault("evolution.pruning_interval_hours", 168.0)
	v.SetDefault("evolution.max_skills_per_exploration", 10)
	v.SetDefault("evolution.min_uses_before_prune", 5)
	v.SetDefault("evolution.min_success_rate", 0.5)
	v.SetDefault("evolution.min_overall_score", 0.4)
	v.SetDefault("evolution.max_unused_days", 30)
	v.SetDefault("evolution.min_compatibility_score", 0.5)
	v.SetDefault("evolution.dry_run_prune", false)

	v.SetDefault("persistence.data_dir", "./data")
	v.SetDefault("persistence.postgres.enabled", false)
	v.SetDefault("persistence.s3.enabled", false)

	v.SetDefault("event_bus.type", "in_process")
	v.SetDefault("event_bus.redis_addr", "localhost:6379")
	v.SetDefault("event_bus.stream_key", "skillcore:failures")

	v.SetDefault("metrics.sample_interval", 30*time.Second)

	v.SetDefault("server.listen_address", ":8090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "skillcored")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.endpoint", "localhost:4317")
}
