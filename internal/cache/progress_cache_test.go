package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studytrail/internal/config"
)

const testTTL = time.Minute

func newTestCache(t *testing.T) (*ProgressCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewProgressCache(client, testTTL), mr
}

func TestProgressKey(t *testing.T) {
	assert.Equal(t, "studytrail:progress:ada", progressKey("ada"))
}

func TestProgressCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "ada")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "ada", []byte(`{"xp":10}`)))
	got, err := c.Get(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":10}`, string(got))
	assert.Equal(t, testTTL, mr.TTL(progressKey("ada")))

	_, err = c.Get(ctx, "grace")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProgressCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ada", []byte(`{"xp":10}`)))
	mr.FastForward(testTTL - time.Second)
	_, err := c.Get(ctx, "ada")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = c.Get(ctx, "ada")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProgressCacheInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ada", []byte(`{"xp":10}`)))
	require.NoError(t, c.Invalidate(ctx, "ada"))
	assert.False(t, mr.Exists(progressKey("ada")))

	_, err := c.Get(ctx, "ada")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.Invalidate(ctx, "ada"), "dropping a missing entry is fine")
}

func TestProgressCacheSetNX(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	stored, err := c.SetNX(ctx, "ada", []byte(`{"xp":300}`))
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, testTTL, mr.TTL(progressKey("ada")))

	stored, err = c.SetNX(ctx, "ada", []byte(`{"xp":10}`))
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := c.Get(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, `{"xp":300}`, string(got), "a fill never replaces a cached write")
}

func TestNewClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestProgressCacheAgainstUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()
	c := NewProgressCache(client, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "ada")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss, "a connection failure is not a miss")
	assert.Error(t, c.Set(ctx, "ada", []byte("{}")))
	_, err = c.SetNX(ctx, "ada", []byte("{}"))
	assert.Error(t, err)
	assert.Error(t, c.Invalidate(ctx, "ada"))
}
