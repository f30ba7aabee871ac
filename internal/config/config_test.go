package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.DashboardURL != "http://localhost:8080" {
		t.Errorf("DashboardURL = %q", cfg.DashboardURL)
	}
	if cfg.Records.RequestDelay != 200*time.Millisecond {
		t.Errorf("RequestDelay = %v, want 200ms", cfg.Records.RequestDelay)
	}
	if cfg.Engine.Timeout != 90*time.Second {
		t.Errorf("Engine.Timeout = %v, want 90s", cfg.Engine.Timeout)
	}
	if cfg.LogDir == "" || cfg.CacheDir == "" {
		t.Errorf("data directories not derived: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("RECORDS_URL", "https://records.example")
	t.Setenv("RECORDS_API_KEY", "key123")
	t.Setenv("RECORDS_WORKSPACE", "ws1")
	t.Setenv("RECORDS_REQUEST_DELAY_MS", "50")
	t.Setenv("ENGINE_URL", "https://engine.example")
	t.Setenv("ENGINE_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want :9999", cfg.ListenAddr)
	}
	if cfg.Records.BaseURL != "https://records.example" || cfg.Records.Workspace != "ws1" {
		t.Errorf("Records config = %+v", cfg.Records)
	}
	if cfg.Records.RequestDelay != 50*time.Millisecond {
		t.Errorf("RequestDelay = %v, want 50ms", cfg.Records.RequestDelay)
	}
	if cfg.Engine.BaseURL != "https://engine.example" {
		t.Errorf("Engine.BaseURL = %q", cfg.Engine.BaseURL)
	}
	if cfg.Engine.Timeout != 30*time.Second {
		t.Errorf("Engine.Timeout = %v, want 30s", cfg.Engine.Timeout)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("EXPDASH_TEST_KEY", "set")
	if got := getEnv("EXPDASH_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("getEnv() = %q, want set", got)
	}
	if got := getEnv("EXPDASH_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %q, want fallback", got)
	}
}
