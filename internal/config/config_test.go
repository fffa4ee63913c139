package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.FrameInterval != 16*time.Millisecond {
		t.Fatalf("frame interval = %s, want 16ms", cfg.FrameInterval)
	}
	if cfg.APIAt != DefaultAPIAt || cfg.MetricsAddr != DefaultMetricsAddr {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Redis.Enabled() {
		t.Fatalf("redis enabled without REDIS_HOST")
	}
	if cfg.OpenRedis() != nil {
		t.Fatalf("OpenRedis returned a client without an address")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"SITEMAP_API_AT":           "https://fouilles.example/api",
		"SITEMAP_HTTP_TIMEOUT":     "3s",
		"SITEMAP_FRAME_INTERVAL":   "33ms",
		"SITEMAP_DETAIL_CACHE_TTL": "1m",
		"REDIS_HOST":               "cache",
		"REDIS_DB":                 "2",
		"REDIS_PASS":               "secret",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.APIAt != "https://fouilles.example/api" || cfg.HTTPTimeout != 3*time.Second {
		t.Fatalf("unexpected api settings: %+v", cfg)
	}
	if cfg.FrameInterval != 33*time.Millisecond || cfg.DetailTTL != time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 2 || cfg.Redis.Password != "secret" {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	client := cfg.OpenRedis()
	if client == nil {
		t.Fatalf("expected redis client")
	}
	_ = client.Close()
}

func TestFromEnvRejectsBadDurations(t *testing.T) {
	if _, err := FromEnv(env(map[string]string{"SITEMAP_HTTP_TIMEOUT": "soon"})); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := FromEnv(env(map[string]string{"SITEMAP_FRAME_INTERVAL": "0s"})); err == nil {
		t.Fatalf("expected error for zero frame interval")
	}
}

func TestRedisDBFallsBackToZero(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"REDIS_HOST": "h", "REDIS_PORT": "7000", "REDIS_DB": "-3"}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Redis.Addr != "h:7000" || cfg.Redis.DB != 0 {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.env")
	if err := os.WriteFile(path, []byte("SITEMAP_API_AT=https://from-file.example/api\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SITEMAP_API_AT", "")
	os.Unsetenv("SITEMAP_API_AT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIAt != "https://from-file.example/api" {
		t.Fatalf("APIAt = %q, want value from env file", cfg.APIAt)
	}
}
