// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - External errors must be wrapped via this package's error kinds.
package config

import (
	"context"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the record store: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// DatabaseURL is the postgres connection URL, required for the postgres driver.
	DatabaseURL      string `koanf:"database_url"`
	DatabaseMaxConns int    `koanf:"database_max_conns"`
	DatabaseMigrate  bool   `koanf:"database_migrate"`

	// QueryTimeoutMS bounds each store statement. Zero disables the bound.
	QueryTimeoutMS int `koanf:"query_timeout_ms"`

	// RedisURL enables the display name cache when set.
	RedisURL            string `koanf:"redis_url"`
	NameCacheTTLSeconds int    `koanf:"name_cache_ttl_seconds"`

	// Leaderboard limits.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`
	DefaultWinnersLimit     int `koanf:"default_winners_limit"`
	MaxLeaderboardLimit     int `koanf:"max_leaderboard_limit"`

	// HistoryLimit and RecentLimit size the per-player session listings.
	HistoryLimit int `koanf:"history_limit"`
	RecentLimit  int `koanf:"recent_limit"`

	// DedupeSize sets the size of the recently seen session id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RateLimitRPS and RateLimitBurst bound requests per client. Zero RPS disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// APIKey, when set, is required on every /api request.
	APIKey string `koanf:"api_key"`

	// PlayerHeader and EmailHeader carry the caller identity set by the gateway.
	PlayerHeader string `koanf:"player_header"`
	EmailHeader  string `koanf:"email_header"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StoreDriver:             DriverMemory,
		DatabaseMaxConns:        10,
		DatabaseMigrate:         true,
		QueryTimeoutMS:          5_000,
		NameCacheTTLSeconds:     300,
		DefaultLeaderboardLimit: 100,
		DefaultWinnersLimit:     20,
		MaxLeaderboardLimit:     1000,
		HistoryLimit:            50,
		RecentLimit:             10,
		DedupeSize:              50_000,
		RateLimitRPS:            50,
		RateLimitBurst:          100,
		PlayerHeader:            "X-Player-ID",
		EmailHeader:             "X-Player-Email",
	}
}

// QueryTimeout returns QueryTimeoutMS as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

// NameCacheTTL returns NameCacheTTLSeconds as a duration.
func (c *Config) NameCacheTTL() time.Duration {
	return time.Duration(c.NameCacheTTLSeconds) * time.Second
}
