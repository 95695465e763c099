// Package config handles loading and validating the application
// configuration from YAML files with environment variable substitution.
// Secrets (API keys, the query encryption secret) are referenced as
// ${VAR} in the YAML and resolved from the environment at load time so
// they never live in the file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	AI          AIConfig          `yaml:"ai"`
	Security    SecurityConfig    `yaml:"security"`
	Notify      NotifyConfig      `yaml:"notify"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode, d.PoolSize,
	)
}

// MarketplaceConfig defines the listing API settings.
type MarketplaceConfig struct {
	APIKey    string          `yaml:"api_key"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines marketplace API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second" validate:"min=0"`
	Burst      int     `yaml:"burst" validate:"min=0"`
	DailyLimit int64   `yaml:"daily_limit" validate:"min=0"`
}

// AIConfig defines the Gemini advisor settings. An empty API key
// disables the advisor; scans still run without it.
type AIConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	CachePath string `yaml:"cache_path"`
}

// SecurityConfig holds the secrets guarding queries and job endpoints.
type SecurityConfig struct {
	// EncryptionSecret derives the key protecting tracked-search
	// queries at rest. A 44-character base64 value is used directly as
	// a 256-bit key; anything else is stretched with PBKDF2.
	EncryptionSecret string `yaml:"encryption_secret" validate:"required"`

	// JobSecret guards the manual /jobs endpoints. Empty keeps them
	// locked.
	JobSecret string `yaml:"job_secret"`
}

// NotifyConfig defines alert delivery settings. An empty webhook URL
// means alerts are recorded but not delivered anywhere.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// ScheduleConfig defines cron intervals and data retention.
type ScheduleConfig struct {
	ScanInterval    time.Duration `yaml:"scan_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	RetentionDays   int           `yaml:"retention_days" validate:"min=0"`
}

// TelemetryConfig defines OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Load reads and parses a YAML config file, performing environment
// variable substitution, defaulting, and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyRateLimitDefaults(&cfg.Marketplace.RateLimit)
	applyAIDefaults(&cfg.AI)
	applyScheduleDefaults(&cfg.Schedule)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 2.0
	}
	if r.Burst == 0 {
		r.Burst = 5
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 1000
	}
}

func applyAIDefaults(a *AIConfig) {
	if a.Model == "" {
		a.Model = "gemini-2.0-flash"
	}
	if a.CachePath == "" {
		a.CachePath = "data/refinement_cache.json"
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.ScanInterval == 0 {
		s.ScanInterval = 5 * time.Minute
	}
	if s.CleanupInterval == 0 {
		s.CleanupInterval = 24 * time.Hour
	}
	if s.RetentionDays == 0 {
		s.RetentionDays = 90
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.OTLPEndpoint == "" {
		t.OTLPEndpoint = "localhost:4317"
	}
	if t.ServiceName == "" {
		t.ServiceName = "marketmaker"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}
