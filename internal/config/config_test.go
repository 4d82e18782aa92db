package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swarm.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://test-host:6379/1")

	path := writeConfig(t, `{
		"server": {"port": 9090},
		"agent": {"id": "agent-x"},
		"database": {
			"redis": {"url": "${TEST_REDIS_URL}"},
			"postgres": {"dsn": "${TEST_MISSING_DSN:postgres://fallback}"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Redis.URL != "redis://test-host:6379/1" {
		t.Errorf("redis url = %q, env var not substituted", cfg.Database.Redis.URL)
	}
	if cfg.Database.Postgres.DSN != "postgres://fallback" {
		t.Errorf("postgres dsn = %q, default not applied", cfg.Database.Postgres.DSN)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Agent.ID != "agent-x" {
		t.Errorf("agent id = %q", cfg.Agent.ID)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Planner.DailyBudgetUSD != 10.0 {
		t.Errorf("default budget = %v, want 10.0", cfg.Planner.DailyBudgetUSD)
	}
	if cfg.Planner.QueueCapacity != 100 {
		t.Errorf("default queue capacity = %d, want 100", cfg.Planner.QueueCapacity)
	}
	if cfg.Worker.Count != 4 || cfg.Worker.TimeoutSeconds != 60 {
		t.Errorf("worker defaults = %+v", cfg.Worker)
	}
	if cfg.MigrationsDir != "migrations" {
		t.Errorf("migrations dir = %q", cfg.MigrationsDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"server":`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed json")
	}
}
