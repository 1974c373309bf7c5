// Package cache puts a Redis display name cache in front of a record store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/driftboard/internal/adapters/repository"
	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/pkg/logger"
	"github.com/okian/driftboard/pkg/metrics"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultKeyPrefix = "driftboard:name:"

	// noProfile marks players known to have no profile.
	noProfile = "\x00"
)

// NameCache is a repository.Store whose ResolveDisplayName is served from
// Redis. Profile writes invalidate the cached name. Redis failures are
// logged and counted, then the store is asked directly.
type NameCache struct {
	repository.Store

	client redis.Cmdable
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

// Option configures a NameCache.
type Option func(*NameCache)

// WithTTL sets how long a resolved name stays cached.
func WithTTL(ttl time.Duration) Option {
	return func(c *NameCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces cache keys.
func WithKeyPrefix(prefix string) Option {
	return func(c *NameCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLogger sets the logger used for cache backend failures.
func WithLogger(l logger.Logger) Option {
	return func(c *NameCache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewNameCache wraps store with a cache on client.
func NewNameCache(store repository.Store, client redis.Cmdable, opts ...Option) *NameCache {
	c := &NameCache{
		Store:  store,
		client: client,
		ttl:    defaultTTL,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("name_cache")
	}
	return c
}

// Dial parses a redis:// URL and pings the server.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

func (c *NameCache) key(playerID string) string { return c.prefix + playerID }

// ResolveDisplayName implements repository.Reader.
func (c *NameCache) ResolveDisplayName(ctx context.Context, playerID string) (string, bool, error) {
	cached, err := c.client.Get(ctx, c.key(playerID)).Result()
	switch {
	case err == nil:
		metrics.RecordNameCacheHit()
		if cached == noProfile {
			return "", false, nil
		}
		return cached, true, nil
	case errors.Is(err, redis.Nil):
		metrics.RecordNameCacheMiss()
	default:
		c.fail(ctx, "get", playerID, err)
	}

	name, ok, err := c.Store.ResolveDisplayName(ctx, playerID)
	if err != nil {
		return "", false, err
	}
	value := name
	if !ok {
		value = noProfile
	}
	if err := c.client.Set(ctx, c.key(playerID), value, c.ttl).Err(); err != nil {
		c.fail(ctx, "set", playerID, err)
	}
	return name, ok, nil
}

// UpsertProfile implements repository.Profiles.
func (c *NameCache) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	out, err := c.Store.UpsertProfile(ctx, p)
	if err == nil {
		c.invalidate(ctx, out.ID)
	}
	return out, err
}

// UpdateProfile implements repository.Profiles.
func (c *NameCache) UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (model.Profile, error) {
	out, err := c.Store.UpdateProfile(ctx, id, patch)
	if err == nil {
		c.invalidate(ctx, id)
	}
	return out, err
}

// DeleteProfile implements repository.Profiles.
func (c *NameCache) DeleteProfile(ctx context.Context, id string) error {
	err := c.Store.DeleteProfile(ctx, id)
	if err == nil {
		c.invalidate(ctx, id)
	}
	return err
}

func (c *NameCache) invalidate(ctx context.Context, playerID string) {
	if err := c.client.Del(ctx, c.key(playerID)).Err(); err != nil {
		c.fail(ctx, "del", playerID, err)
	}
}

func (c *NameCache) fail(ctx context.Context, op, playerID string, err error) {
	metrics.RecordNameCacheError()
	c.log.Warn(ctx, "name cache unavailable",
		logger.String("op", op),
		logger.String("player_id", playerID),
		logger.Error(err))
}
