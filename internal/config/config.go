package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config is the full application configuration. Values come from an optional
// YAML file, with environment variables taking precedence so deployments can
// override without shipping a file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SearchConfig tunes the proximity engine.
type SearchConfig struct {
	// DefaultRadiusMeters is the service-area radius used when a request
	// does not carry its own (5 km in the reference deployment).
	DefaultRadiusMeters float64 `yaml:"default_radius_meters"`

	// IndexMargin pads the spatial-index prefilter so the index may
	// over-include near the boundary; exact geography distance trims the
	// excess. Must be >= 1.
	IndexMargin float64 `yaml:"index_margin"`

	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type RedisConfig struct {
	// Addr empty disables the resolution cache.
	Addr       string `yaml:"addr"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// Default returns the configuration used when no file and no env overrides
// are present.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "5050"},
		Search: SearchConfig{
			DefaultRadiusMeters: 5000,
			IndexMargin:         1.1,
			DefaultPageSize:     100,
			MaxPageSize:         500,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Redis: RedisConfig{TTLSeconds: 300},
	}
}

// Load reads the YAML file at path (skipped when the file does not exist)
// and then applies environment overrides.
//
// Environment variables:
//   - PORT: HTTP listen port
//   - DATABASE_URL: Postgres DSN (required to serve)
//   - REDIS_ADDR: resolution cache address (empty disables caching)
//   - SEARCH_RADIUS_METERS: default service-area radius
//   - RATE_LIMIT_RPS: per-client request rate (0 disables limiting)
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SEARCH_RADIUS_METERS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			cfg.Search.DefaultRadiusMeters = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.RateLimit.RequestsPerSecond = f
			cfg.RateLimit.Enabled = f > 0
		}
	}
}

// Validate checks tuning values that would silently break queries.
func (c Config) Validate() error {
	if c.Search.DefaultRadiusMeters <= 0 {
		return fmt.Errorf("search.default_radius_meters must be > 0, got %v", c.Search.DefaultRadiusMeters)
	}
	if c.Search.IndexMargin < 1 {
		return fmt.Errorf("search.index_margin must be >= 1, got %v", c.Search.IndexMargin)
	}
	if c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("search.max_page_size %d is below default_page_size %d",
			c.Search.MaxPageSize, c.Search.DefaultPageSize)
	}
	return nil
}
