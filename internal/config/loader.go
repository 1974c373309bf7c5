package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DRIFT_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if DRIFT_CONFIG is set
//  3. env (prefix DRIFT_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// DRIFT_STORE_DRIVER -> store_driver. Underscores stay to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.StoreDriver != DriverMemory && c.StoreDriver != DriverPostgres:
		return invalid("store_driver must be %q or %q, got %q", DriverMemory, DriverPostgres, c.StoreDriver)
	case c.StoreDriver == DriverPostgres && c.DatabaseURL == "":
		return invalid("database_url is required for the postgres store")
	case c.DefaultLeaderboardLimit <= 0 || c.DefaultWinnersLimit <= 0:
		return invalid("default limits must be positive")
	case c.MaxLeaderboardLimit < c.DefaultLeaderboardLimit || c.MaxLeaderboardLimit < c.DefaultWinnersLimit:
		return invalid("max_leaderboard_limit must not be below the default limits")
	case c.HistoryLimit <= 0 || c.RecentLimit <= 0:
		return invalid("history_limit and recent_limit must be positive")
	case c.QueryTimeoutMS < 0:
		return invalid("query_timeout_ms must not be negative")
	case c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst <= 0):
		return invalid("rate_limit_burst must be positive when rate limiting is on")
	case c.PlayerHeader == "":
		return invalid("player_header must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
