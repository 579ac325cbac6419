package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silod.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "listen: \":9000\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" || cfg.Journal.Driver != DriverSQLite || cfg.Journal.DSN == "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Sunrise.Schedule != "@hourly" || cfg.Auth.ClockSkew.Duration != 2*time.Minute {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadParsesSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen: ":7090"
protocol: /etc/silo/silo.toml
journal:
  driver: postgres
  dsn: postgres://silo@db/silo
auth:
  enabled: true
  hmac_secret: shh
  issuer: hooliganhorde
  clock_skew: 30s
rate_limit:
  requests_per_minute: 120
  burst: 10
sunrise:
  enabled: true
  schedule: "0 0 * * * *"
log:
  level: debug
  file: /var/log/silod.log
webhook:
  endpoint: https://hooks.local/silo
  secret: hook-secret
  queue_size: 64
stream:
  enabled: true
  backlog: 4
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Journal.Driver != DriverPostgres || cfg.Auth.ClockSkew.Duration != 30*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RateLimit.Burst != 10 || cfg.Sunrise.Schedule != "0 0 * * * *" || cfg.Log.File != "/var/log/silod.log" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Stream.Enabled || cfg.Stream.Backlog != 4 {
		t.Fatalf("unexpected stream config: %+v", cfg.Stream)
	}
	if cfg.Webhook.Outbox != "silod-webhooks.db" || cfg.Webhook.QueueSize != 64 {
		t.Fatalf("unexpected webhook config: %+v", cfg.Webhook)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"driver":   "journal:\n  driver: mysql\n  dsn: x\n",
		"auth":     "auth:\n  enabled: true\n",
		"webhook":  "webhook:\n  endpoint: https://hooks.local\n",
		"duration": "auth:\n  clock_skew: soon\n",
		"unknown":  "listen_address: \":1\"\n",
		"stream":   "stream:\n  buffer: -1\n",
	}
	for name, contents := range cases {
		if _, err := Load(writeConfig(t, contents)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "open config") {
		t.Fatalf("expected open error, got %v", err)
	}
}
