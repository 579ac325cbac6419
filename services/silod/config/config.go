package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Journal drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures runtime configuration for silod.
type Config struct {
	ListenAddress string        `yaml:"listen"`
	Protocol      string        `yaml:"protocol"`
	Journal       JournalConfig `yaml:"journal"`
	Auth          AuthConfig    `yaml:"auth"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	Sunrise       SunriseConfig `yaml:"sunrise"`
	Log           LogConfig     `yaml:"log"`
	Webhook       WebhookConfig `yaml:"webhook"`
	Stream        StreamConfig  `yaml:"stream"`
	Telemetry     Telemetry     `yaml:"telemetry"`
}

// JournalConfig selects the plan journal database.
type JournalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Enabled    bool     `yaml:"enabled"`
	HMACSecret string   `yaml:"hmac_secret"`
	Issuer     string   `yaml:"issuer"`
	Audience   string   `yaml:"audience"`
	ClockSkew  Duration `yaml:"clock_skew"`
}

// RateLimit throttles requests per client address.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// SunriseConfig schedules gameday advancement.
type SunriseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// WebhookConfig enables signed notifications. Empty endpoint disables them.
// Pending deliveries are kept in the bbolt outbox file.
type WebhookConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Secret    string `yaml:"secret"`
	Outbox    string `yaml:"outbox"`
	QueueSize int    `yaml:"queue_size"`
}

// StreamConfig controls the websocket event stream.
type StreamConfig struct {
	Enabled bool `yaml:"enabled"`
	Buffer  int  `yaml:"buffer"`
	Backlog int  `yaml:"backlog"`
}

// Telemetry toggles the OTLP exporters.
type Telemetry struct {
	Traces  bool `yaml:"traces"`
	Metrics bool `yaml:"metrics"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "silo.toml"
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = DriverSQLite
	}
	if cfg.Journal.DSN == "" && cfg.Journal.Driver == DriverSQLite {
		cfg.Journal.DSN = "file:silod-journal.sqlite?_pragma=busy_timeout(5000)"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 60
	}
	if cfg.Sunrise.Schedule == "" {
		cfg.Sunrise.Schedule = "@hourly"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Webhook.Endpoint != "" && cfg.Webhook.Outbox == "" {
		cfg.Webhook.Outbox = "silod-webhooks.db"
	}
}

func validate(cfg Config) error {
	switch cfg.Journal.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported journal driver %q", cfg.Journal.Driver)
	}
	if strings.TrimSpace(cfg.Journal.DSN) == "" {
		return fmt.Errorf("journal dsn must be configured")
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmac_secret required when auth is enabled")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}
	if cfg.Stream.Buffer < 0 || cfg.Stream.Backlog < 0 {
		return fmt.Errorf("stream buffer and backlog must not be negative")
	}
	if (cfg.Webhook.Endpoint == "") != (cfg.Webhook.Secret == "") {
		return fmt.Errorf("webhook endpoint and secret must be set together")
	}
	if cfg.Webhook.QueueSize < 0 {
		return fmt.Errorf("webhook queue_size must not be negative")
	}
	return nil
}
