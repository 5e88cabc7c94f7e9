// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"invoicenum/internal/core/security"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is shared by every binary. Fields that a binary does not use are
// simply ignored.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Port     string `env:"APP_PORT" envDefault:"8080"`

	Storage  string   `env:"STORAGE" envDefault:"postgres"`
	Database Database

	Numbering     Numbering
	Idempotency   Idempotency `envPrefix:"IDEMPOTENCY_"`
	Telemetry     Telemetry
	Reconcile     Reconcile `envPrefix:"RECONCILE_"`
	Observability bool      `env:"COUNTER_OBSERVABILITY_ENABLED" envDefault:"false"`
}

type Database struct {
	URL              string        `env:"DATABASE_URL"`
	MaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"30s"`
	MigrateOnStart   bool          `env:"MIGRATE_ON_START" envDefault:"true"`
}

type Numbering struct {
	ActivationRetries int `env:"NUMBERING_ACTIVATION_RETRIES" envDefault:"2"`
}

type Idempotency struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"TTL" envDefault:"24h"`
}

type Telemetry struct {
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"invoicenum"`
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName      string `env:"OTEL_SERVICE_NAME" envDefault:"invoicenum"`
}

type Reconcile struct {
	Interval    time.Duration `env:"INTERVAL" envDefault:"15m"`
	Heal        bool          `env:"HEAL" envDefault:"false"`
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE=%s", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	if c.Numbering.ActivationRetries < 1 {
		return fmt.Errorf("NUMBERING_ACTIVATION_RETRIES must be >= 1")
	}
	if c.Reconcile.Interval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}
	return nil
}

// IsDevelopment reports whether pretty logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// FeatureFlags seeds the in-memory flag provider.
func (c *Config) FeatureFlags() *security.InMemoryFlags {
	return security.NewInMemoryFlags(map[string]bool{
		security.FlagCounterObservability: c.Observability,
		security.FlagIdempotentGeneration: c.Idempotency.Enabled,
	})
}
