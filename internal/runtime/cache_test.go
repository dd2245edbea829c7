package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/pkg/adapters/memory"
)

func TestCacheKey(t *testing.T) {
	t.Run("argument order does not matter", func(t *testing.T) {
		a, err := CacheKey("positions.list", map[string]any{"portfolio_id": "pf-9", "limit": 25}, "snap-1")
		require.NoError(t, err)
		b, err := CacheKey("positions.list", map[string]any{"limit": 25, "portfolio_id": "pf-9"}, "snap-1")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("snapshot changes the key", func(t *testing.T) {
		a, err := CacheKey("positions.list", map[string]any{"portfolio_id": "pf-9"}, "snap-1")
		require.NoError(t, err)
		b, err := CacheKey("positions.list", map[string]any{"portfolio_id": "pf-9"}, "snap-2")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("capability changes the key", func(t *testing.T) {
		a, err := CacheKey("positions.list", nil, "snap-1")
		require.NoError(t, err)
		b, err := CacheKey("positions.totals", nil, "snap-1")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("unmarshalable args fail", func(t *testing.T) {
		_, err := CacheKey("x", map[string]any{"fn": func() {}}, "snap-1")
		assert.Error(t, err)
	})
}

func TestResultCacheLocalTier(t *testing.T) {
	ctx := context.Background()
	cache := NewResultCache(nil)

	_, ok := cache.Get(ctx, "k1", false)
	assert.False(t, ok)

	cache.Put(ctx, "k1", map[string]any{"total": 12.5}, time.Minute, false)

	val, ok := cache.Get(ctx, "k1", false)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"total": 12.5}, val)
}

func TestResultCacheSharedTier(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewCacheStore()

	writer := NewResultCache(shared)
	writer.Put(ctx, "k1", map[string]any{"total": 12.5}, time.Minute, true)

	// A fresh per-request cache simulates a different run hitting the
	// shared tier.
	reader := NewResultCache(shared)
	val, ok := reader.Get(ctx, "k1", true)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"total": 12.5}, val)

	t.Run("shared hit is promoted locally", func(t *testing.T) {
		// Second read should succeed even if the shared entry vanished.
		val, ok := reader.Get(ctx, "k1", true)
		require.True(t, ok)
		assert.NotNil(t, val)
	})

	t.Run("shared tier needs opt-in", func(t *testing.T) {
		other := NewResultCache(shared)
		_, ok := other.Get(ctx, "k1", false)
		assert.False(t, ok)
	})

	t.Run("local put stays local", func(t *testing.T) {
		local := NewResultCache(shared)
		local.Put(ctx, "k2", "v", 0, false)
		_, ok := NewResultCache(shared).Get(ctx, "k2", true)
		assert.False(t, ok)
	})
}
