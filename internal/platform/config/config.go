// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, OTP, Tokens) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Storage Drivers

const (
	// DriverPostgres persists users and refresh tokens in PostgreSQL and OTPs in Redis.
	DriverPostgres = "postgres"

	// DriverMemory keeps every record in process memory (local development only).
	DriverMemory = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the auth API server and notifier.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// StorageDriver selects the persistence backend ("postgres" or "memory").
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"20"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis) holding one-time codes
	RedisURL string `env:"REDIS_URL"`

	// Cryptographic keys for access token signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`
	JWTIssuer      string `env:"JWT_ISSUER" envDefault:"marketplace-auth"`

	// Token lifetimes
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL"     envDefault:"30m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL"    envDefault:"168h"`
	TokenPurgeInterval time.Duration `env:"TOKEN_PURGE_INTERVAL" envDefault:"1h"`

	// One-time code policy
	OTPLength         int           `env:"OTP_LENGTH"          envDefault:"6"`
	OTPTTL            time.Duration `env:"OTP_TTL"             envDefault:"10m"`
	OTPMaxAttempts    int           `env:"OTP_MAX_ATTEMPTS"    envDefault:"3"`
	OTPResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"60s"`

	// Caller-enforced deadlines for external calls
	StorageTimeout  time.Duration `env:"STORAGE_TIMEOUT"  envDefault:"3s"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"5s"`

	// Message broker and outbound mail, shared with the notifier
	Broker
	Mail

	// Cross-Origin Resource Sharing
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// RateLimitPerMinute is the per-IP request budget.
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	Tracing
}

// Broker holds the RabbitMQ topology for code delivery. Empty RabbitURL logs codes instead.
type Broker struct {
	RabbitURL      string `env:"RABBIT_URL"`
	MQExchange     string `env:"MQ_EXCHANGE"      envDefault:"auth.exchange"`
	NotifyQueue    string `env:"NOTIFY_QUEUE"     envDefault:"auth.notification.q"`
	NotifyDLX      string `env:"NOTIFY_DLX"       envDefault:"auth.notification.dlx"`
	NotifyDLQ      string `env:"NOTIFY_DLQ"       envDefault:"auth.notification.q.dlq"`
	NotifyPrefetch int    `env:"NOTIFY_PREFETCH"  envDefault:"16"`
}

// Mail holds the SMTP relay used by the notifier worker.
type Mail struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"       envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM_EMAIL" envDefault:"no-reply@marketplace.local"`
	SMTPFromName string `env:"SMTP_FROM_NAME"  envDefault:"Service Marketplace"`
}

// Tracing configures OpenTelemetry export. Empty endpoint disables it.
type Tracing struct {
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// NotifierConfig is the subset of settings the notifier worker needs.
type NotifierConfig struct {
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	Broker
	Mail
	Tracing
}

// MigrateConfig is what cmd/migrate needs: a database and the migration files.
type MigrateConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadNotifier parses the notifier worker settings.
func LoadNotifier() (*NotifierConfig, error) {
	cfg := &NotifierConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.RabbitURL == "" {
		return nil, fmt.Errorf("config: RABBIT_URL is required for the notifier")
	}
	if cfg.SMTPHost == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("config: SMTP_HOST is required in production")
	}

	return cfg, nil
}

// LoadMigrate parses the migration tool settings.
func LoadMigrate() (*MigrateConfig, error) {
	cfg, err := env.ParseAs[MigrateConfig]()
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" || c.RedisURL == "" {
			return fmt.Errorf("config: DATABASE_URL and REDIS_URL are required for the %q driver", DriverPostgres)
		}
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("config: the %q driver is not allowed in production", DriverMemory)
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.OTPLength < 4 || c.OTPLength > 10 {
		return fmt.Errorf("config: OTP_LENGTH must be between 4 and 10, got %d", c.OTPLength)
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("config: OTP_MAX_ATTEMPTS must be positive, got %d", c.OTPMaxAttempts)
	}
	if c.OTPTTL <= 0 || c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("config: OTP_TTL, ACCESS_TOKEN_TTL and REFRESH_TOKEN_TTL must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("config: ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if c.RabbitURL == "" && c.IsProduction() {
		return fmt.Errorf("config: RABBIT_URL is required in production")
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the configured CORS origins.
func (c *Config) AllowedOrigins() []string {
	return c.CORSOrigins
}
