// Package config gathers the session's runtime settings from the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultAPIAt         = "http://localhost:8080/api"
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultCacheTTL      = 10 * time.Minute
	DefaultMetricsAddr   = ":9091"
)

// Config is the resolved session configuration.
type Config struct {
	APIAt         string
	HTTPTimeout   time.Duration
	FrameInterval time.Duration
	DetailTTL     time.Duration
	MetricsAddr   string

	// Redis is empty when no detail cache is configured.
	Redis RedisConfig
}

// RedisConfig addresses the optional detail cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// Load reads the optional .env files, then the process environment. Values
// already present in the environment win over .env entries.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		APIAt:         DefaultAPIAt,
		HTTPTimeout:   DefaultHTTPTimeout,
		FrameInterval: DefaultFrameInterval,
		DetailTTL:     DefaultCacheTTL,
		MetricsAddr:   DefaultMetricsAddr,
	}
	if v := getenv("SITEMAP_API_AT"); v != "" {
		cfg.APIAt = v
	}
	if v := getenv("SITEMAP_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	var err error
	if cfg.HTTPTimeout, err = duration(getenv, "SITEMAP_HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.FrameInterval, err = duration(getenv, "SITEMAP_FRAME_INTERVAL", cfg.FrameInterval); err != nil {
		return Config{}, err
	}
	if cfg.DetailTTL, err = duration(getenv, "SITEMAP_DETAIL_CACHE_TTL", cfg.DetailTTL); err != nil {
		return Config{}, err
	}
	if cfg.FrameInterval <= 0 {
		return Config{}, fmt.Errorf("SITEMAP_FRAME_INTERVAL must be positive, got %s", cfg.FrameInterval)
	}

	if host := getenv("REDIS_HOST"); host != "" {
		port := getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.Redis.Addr = net.JoinHostPort(host, port)
		cfg.Redis.Password = getenv("REDIS_PASS")
		if v := getenv("REDIS_DB"); v != "" {
			// unparsable or negative falls back to 0
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				cfg.Redis.DB = n
			}
		}
	}
	return cfg, nil
}

// OpenRedis returns a client for the configured cache, or nil when none is set.
func (c Config) OpenRedis() *redis.Client {
	if !c.Redis.Enabled() {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
