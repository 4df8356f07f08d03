// Package config loads the immutable, process-wide simulation constants
// for the parlay evaluator. A Config is built once (typically at
// orchestrator construction) and never mutated afterward.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the evaluator's components read from.
// Nothing downstream of Load mutates these fields.
type Config struct {
	// Copula sampler
	DefaultSampleCount int     `mapstructure:"DEFAULT_SAMPLE_COUNT"`
	MinNu              float64 `mapstructure:"MIN_NU"`
	MaxNu              float64 `mapstructure:"MAX_NU"`
	MaxLegs            int     `mapstructure:"MAX_LEGS"`
	DefaultSeed        int64   `mapstructure:"DEFAULT_SEED"`

	// PSD repair
	RidgeInitialEpsilon float64 `mapstructure:"RIDGE_INITIAL_EPSILON"`
	RidgeMaxEpsilon     float64 `mapstructure:"RIDGE_MAX_EPSILON"`
	EigenvalueFloor     float64 `mapstructure:"EIGENVALUE_FLOOR"`

	// Correlation assembly
	CorrelationClip float64 `mapstructure:"CORRELATION_CLIP"`

	// EV / Kelly
	KellyCap float64 `mapstructure:"KELLY_CAP"`

	// Orchestrator timing
	DeadlineMillis      int `mapstructure:"DEADLINE_MILLIS"`
	LatencyBudgetMillis int `mapstructure:"LATENCY_BUDGET_MILLIS"`

	// Environment
	Env string `mapstructure:"ENV"`

	// Optional ambient integrations: result cache, live correlation
	// lookup, and scheduled kernel re-warm.
	EnableResultCache    bool   `mapstructure:"ENABLE_RESULT_CACHE"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	EnableScheduledWarm  bool   `mapstructure:"ENABLE_SCHEDULED_WARM"`
	ScheduledWarmCron    string `mapstructure:"SCHEDULED_WARM_CRON"`
	CircuitBreakerErrors uint32 `mapstructure:"CIRCUIT_BREAKER_ERRORS"`
}

// Deadline returns the orchestrator's hard deadline as a time.Duration.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineMillis) * time.Millisecond
}

// LatencyBudget returns the per-kernel-run latency target as a
// time.Duration.
func (c *Config) LatencyBudget() time.Duration {
	return time.Duration(c.LatencyBudgetMillis) * time.Millisecond
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from the environment (with an optional .env
// file on the search path), falling back to spec-mandated defaults for
// every constant.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	v.SetDefault("DEFAULT_SAMPLE_COUNT", 10000)
	v.SetDefault("MIN_NU", 2.5)
	v.SetDefault("MAX_NU", 30.0)
	v.SetDefault("MAX_LEGS", 6)
	v.SetDefault("DEFAULT_SEED", int64(42))

	v.SetDefault("RIDGE_INITIAL_EPSILON", 1e-4)
	v.SetDefault("RIDGE_MAX_EPSILON", 1e-1)
	v.SetDefault("EIGENVALUE_FLOOR", 1e-6)

	v.SetDefault("CORRELATION_CLIP", 0.98)

	v.SetDefault("KELLY_CAP", 0.25)

	v.SetDefault("DEADLINE_MILLIS", 500)
	v.SetDefault("LATENCY_BUDGET_MILLIS", 150)

	v.SetDefault("ENV", "development")

	v.SetDefault("ENABLE_RESULT_CACHE", false)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/2")
	v.SetDefault("ENABLE_SCHEDULED_WARM", false)
	v.SetDefault("SCHEDULED_WARM_CRON", "@every 30m")
	v.SetDefault("CIRCUIT_BREAKER_ERRORS", uint32(5))

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
