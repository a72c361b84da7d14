package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := "server_port = \"9090\"\ndb_path = \"/tmp/tasks.db\"\ntelemetry_enabled = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("expected env to win over file, got %q", cfg.ServerPort)
	}
	if cfg.DBPath != "/tmp/tasks.db" || !cfg.TelemetryEnabled {
		t.Errorf("expected file values, got %+v", cfg)
	}
	if cfg.ServiceName != "go-tasklist" {
		t.Errorf("expected untouched default, got %q", cfg.ServiceName)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.toml"))

	if _, err := Load(); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEMETRY_ENABLED", "maybe")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for bad TELEMETRY_ENABLED")
	}

	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("server_port = ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Errorf("expected error for malformed TOML")
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "SERVER_PORT", "DB_PATH", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME", "ENVIRONMENT", "TELEMETRY_ENABLED"} {
		t.Setenv(key, "")
	}
}
