package file

import (
	"context"
	"testing"
	"time"

	"jobtracker/client/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	c, err := New(cache.Options{Dir: t.TempDir(), DefaultTTL: ttl})
	require.NoError(t, err)
	return c
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)

	require.NoError(t, c.Set(ctx, "session", "payload", 0))

	var got string
	require.NoError(t, c.Get(ctx, "session", &got))
	assert.Equal(t, "payload", got)

	require.NoError(t, c.Delete(ctx, "session"))
	assert.ErrorIs(t, c.Get(ctx, "session", &got), cache.ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, c.Delete(ctx, "session"))
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := New(cache.Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "session", []byte("kept"), 0))
	require.NoError(t, first.Close())

	second, err := New(cache.Options{Dir: dir})
	require.NoError(t, err)
	var got string
	require.NoError(t, second.Get(ctx, "session", &got))
	assert.Equal(t, "kept", got)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "session", "short lived", 0))

	var got string
	require.NoError(t, c.Get(ctx, "session", &got))

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "session", &got), cache.ErrNotFound)
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)

	assert.ErrorIs(t, c.Set(ctx, "../escape", "x", 0), cache.ErrInvalidKey)
	assert.ErrorIs(t, c.Set(ctx, "number", 42, 0), cache.ErrInvalidValue)

	require.NoError(t, c.Set(ctx, "text", "x", 0))
	var n int
	assert.ErrorIs(t, c.Get(ctx, "text", &n), cache.ErrInvalidValue)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 0)
	require.NoError(t, c.Close())

	var got string
	assert.ErrorIs(t, c.Set(ctx, "session", "x", 0), cache.ErrClosed)
	assert.ErrorIs(t, c.Get(ctx, "session", &got), cache.ErrClosed)
}

func TestExpiredEntryRemovalFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	c, err := New(cache.Options{Dir: t.TempDir(), DefaultTTL: time.Minute, Logger: zap.New(core)})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "session", "stale", 0))

	// the cache closes between reading the entry and removing it
	later := time.Now().Add(time.Hour)
	c.now = func() time.Time {
		require.NoError(t, c.Close())
		return later
	}

	var got string
	assert.ErrorIs(t, c.Get(ctx, "session", &got), cache.ErrNotFound)

	entries := logs.FilterMessage("failed to remove expired cache entry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "session", entries[0].ContextMap()["key"])
}
