package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("Empty path should yield defaults, got %+v", cfg)
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	path := writeConfig(t, `
addr: ":9090"
poolFile: pool.yaml
rateLimit: 3
rateWindow: 2m
development: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9090" || cfg.PoolFile != "pool.yaml" || cfg.RateLimit != 3 {
		t.Errorf("Overlay mismatch: %+v", cfg)
	}
	if cfg.RateWindow.Duration != 2*time.Minute {
		t.Errorf("RateWindow = %v, want 2m", cfg.RateWindow.Duration)
	}
	if !cfg.Development {
		t.Error("Development should be set")
	}
	// Unset fields keep their defaults.
	if cfg.RequestTimeout != DefaultConfig().RequestTimeout {
		t.Errorf("RequestTimeout = %v, want default", cfg.RequestTimeout.Duration)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Missing file should fail")
	}
	if _, err := LoadConfig(writeConfig(t, "rateWindow: soon")); err == nil {
		t.Error("Bad duration should fail")
	}
	if _, err := LoadConfig(writeConfig(t, "rateLimit: 0")); err == nil {
		t.Error("Zero rate limit should fail validation")
	}
	if _, err := LoadConfig(writeConfig(t, "addr: [")); err == nil {
		t.Error("Malformed YAML should fail")
	}
}
