package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 9000
database:
  path: `+filepath.Join(dir, "data", "test.db")+`
redis:
  address: "localhost:6379"
  cache_ttl_seconds: 120
monitoring:
  health_check_port: 8091
  prometheus_enabled: true
  prometheus_port: 9091
booking:
  max_advance_days: 60
  granularity_minutes: 30
  session_timeout_minutes: 15
  rate_limit_per_second: 10
  rate_limit_burst: 20
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port: expected 9000, got %d", cfg.Server.Port)
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Errorf("redis address: got %q", cfg.Redis.Address)
	}
	if !cfg.Monitoring.PrometheusEnabled || cfg.Monitoring.PrometheusPort != 9091 {
		t.Errorf("monitoring: %+v", cfg.Monitoring)
	}
	if cfg.Booking.MaxAdvanceDays != 60 || cfg.Booking.GranularityMinutes != 30 {
		t.Errorf("booking: %+v", cfg.Booking)
	}
	if cfg.CacheTTL() != 2*time.Minute {
		t.Errorf("cache ttl: got %s", cfg.CacheTTL())
	}
	if cfg.SessionTimeout() != 15*time.Minute {
		t.Errorf("session timeout: got %s", cfg.SessionTimeout())
	}

	// Load creates the database directory.
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("database dir should exist: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
database:
  path: `+filepath.Join(dir, "clinic.db")+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port: expected 8080, got %d", cfg.Server.Port)
	}
	if cfg.SessionTimeout() != 30*time.Minute {
		t.Errorf("default session timeout: got %s", cfg.SessionTimeout())
	}
	if cfg.CacheTTL() != 0 {
		t.Errorf("unset cache ttl should be zero, got %s", cfg.CacheTTL())
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDRESS", "redis.internal:6379")
	t.Setenv("TEST_REDIS_PASSWORD", "hunter2")

	dir := t.TempDir()
	path := writeConfig(t, `
database:
  path: `+filepath.Join(dir, "clinic.db")+`
redis:
  address: "${TEST_REDIS_ADDRESS}"
  password: "${TEST_REDIS_PASSWORD}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Redis.Address != "redis.internal:6379" {
		t.Errorf("address not expanded: %q", cfg.Redis.Address)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("password not expanded: %q", cfg.Redis.Password)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
