package config

import (
	"os"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), "hallmonitor-config-*.yml")
	if err != nil {
		t.Fatalf("failed to create temp config file: %v", err)
	}

	if _, err := file.WriteString(content); err != nil {
		file.Close()
		t.Fatalf("failed to write temp config file: %v", err)
	}

	if err := file.Close(); err != nil {
		t.Fatalf("failed to close temp config file: %v", err)
	}

	return file.Name()
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
logging:
  level: "warn"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.Port != "7878" {
		t.Fatalf("expected default server port 7878, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("expected default server host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Storage.Backend != "badger" {
		t.Fatalf("expected default storage backend badger, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.ResultsRetention != 100 {
		t.Fatalf("expected default results retention 100, got %d", cfg.Storage.ResultsRetention)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging.level from file to override default, got %s", cfg.Logging.Level)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	path := writeTempConfig(t, `
logging:
  level: "info"
`)

	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("RESULTS_RETENTION", "250")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected PORT override to be applied, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected HOST override to be applied, got %s", cfg.Server.Host)
	}
	if cfg.Storage.ResultsRetention != 250 {
		t.Fatalf("expected RESULTS_RETENTION override to be applied, got %d", cfg.Storage.ResultsRetention)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://a.example" {
		t.Fatalf("expected CORS_ORIGINS to be split into a list, got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/to/config.yml"); err == nil {
		t.Fatalf("expected explicit config path to error when missing")
	}
}

func TestConfigValidateSuccess(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: "8080"},
		Storage: StorageConfig{Backend: "badger", ResultsRetention: 100},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected configuration to validate, got error: %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	if err := (&Config{Server: ServerConfig{Port: ""}}).Validate(); err == nil {
		t.Fatalf("expected error when server port is missing")
	}

	if err := (&Config{
		Server:  ServerConfig{Port: "7878"},
		Storage: StorageConfig{Backend: "mongo", ResultsRetention: 100},
	}).Validate(); err == nil {
		t.Fatalf("expected error for unknown storage backend")
	}

	if err := (&Config{
		Server:  ServerConfig{Port: "7878"},
		Storage: StorageConfig{Backend: "badger", ResultsRetention: 0},
	}).Validate(); err == nil {
		t.Fatalf("expected error for non-positive results retention")
	}

	if err := (&Config{
		Server:  ServerConfig{Port: "7878"},
		Storage: StorageConfig{Backend: "postgres", ResultsRetention: 100},
	}).Validate(); err == nil {
		t.Fatalf("expected error when postgres backend is missing a host")
	}
}
