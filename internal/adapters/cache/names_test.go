package cache

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/driftboard/internal/adapters/repository"
	"github.com/okian/driftboard/internal/domain/model"
	"github.com/okian/driftboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newStore(t *testing.T) *repository.MemStore {
	t.Helper()
	s := repository.NewMemStore(context.Background())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNameCache_backendDown(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.UpsertProfile(ctx, model.Profile{ID: "p1", Username: "ada"})
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewNameCache(store, client)

	name, ok, err := c.ResolveDisplayName(ctx, "p1")
	require.NoError(t, err, "cache failures fall through to the store")
	assert.True(t, ok)
	assert.Equal(t, "ada", name)

	_, ok, err = c.ResolveDisplayName(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.UpsertProfile(ctx, model.Profile{ID: "p2"})
	assert.NoError(t, err)
	assert.NoError(t, c.DeleteProfile(ctx, "p2"))
	assert.ErrorIs(t, c.DeleteProfile(ctx, "p2"), repository.ErrNotFound)
}

func TestNameCache_redis(t *testing.T) {
	url := os.Getenv("DRIFT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("Skipping redis tests - DRIFT_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	store := newStore(t)
	c := NewNameCache(store, client, WithKeyPrefix("driftboard:test:"+uuid.NewString()+":"), WithTTL(time.Minute))

	_, err = store.UpsertProfile(ctx, model.Profile{ID: "p1", Username: "ada"})
	require.NoError(t, err)

	name, ok, err := c.ResolveDisplayName(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada", name)

	// Bypassing the cache leaves the cached name in place.
	grace := "grace"
	_, err = store.UpdateProfile(ctx, "p1", model.ProfilePatch{Username: &grace})
	require.NoError(t, err)
	name, _, err = c.ResolveDisplayName(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "ada", name)

	// Writing through the cache invalidates it.
	lin := "lin"
	_, err = c.UpdateProfile(ctx, "p1", model.ProfilePatch{Username: &lin})
	require.NoError(t, err)
	name, _, err = c.ResolveDisplayName(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "lin", name)

	// Missing profiles are cached too.
	_, ok, err = c.ResolveDisplayName(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.ResolveDisplayName(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.DeleteProfile(ctx, "p1"))
	_, ok, err = c.ResolveDisplayName(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}
