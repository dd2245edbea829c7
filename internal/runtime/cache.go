package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/quantfold/tessera/pkg/ports"
)

// CacheKey derives the stable cache key for a capability call. The key
// couples the capability name, the data snapshot the request reads from, and
// the canonical JSON form of the resolved arguments. encoding/json emits map
// keys in sorted order, so argument ordering cannot change the key.
func CacheKey(capability string, args map[string]any, snapshotID string) (string, error) {
	canonical, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("canonicalizing args for %q: %w", capability, err)
	}

	h := xxhash.New()
	h.WriteString(capability)
	h.Write([]byte{0})
	h.WriteString(snapshotID)
	h.Write([]byte{0})
	h.Write(canonical)
	return fmt.Sprintf("tessera:result:%016x", h.Sum64()), nil
}

// ResultCache memoizes capability results. It layers a per-request map over
// an optional shared store so that repeated identical calls within one
// pattern run never leave the process, while runs on different replicas can
// still share results.
type ResultCache struct {
	shared ports.CacheStore

	mu    sync.Mutex
	local map[string]any
}

// NewResultCache creates a cache for one pattern run. The shared store may
// be nil, leaving only per-request memoization.
func NewResultCache(shared ports.CacheStore) *ResultCache {
	return &ResultCache{shared: shared, local: make(map[string]any)}
}

// Get returns a memoized result for key. The per-request tier is always
// consulted; the shared tier only when sharedTier is set, since only
// capabilities opted into the cross-request cache publish there. Shared-tier
// hits are promoted into the per-request tier. Shared-store failures degrade
// to a miss.
func (c *ResultCache) Get(ctx context.Context, key string, sharedTier bool) (any, bool) {
	c.mu.Lock()
	val, ok := c.local[key]
	c.mu.Unlock()
	if ok {
		return val, true
	}

	if !sharedTier || c.shared == nil {
		return nil, false
	}
	raw, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	c.mu.Lock()
	c.local[key] = decoded
	c.mu.Unlock()
	return decoded, true
}

// Put stores a result in the per-request tier, and in the shared tier when
// sharedTier is set. The shared tier uses SetNX so a slower concurrent run
// cannot clobber an existing entry, and ignores write errors; a dead cache
// backend must not fail the step that produced the result.
func (c *ResultCache) Put(ctx context.Context, key string, value any, ttl time.Duration, sharedTier bool) {
	c.mu.Lock()
	c.local[key] = value
	c.mu.Unlock()

	if !sharedTier || c.shared == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_, _ = c.shared.SetNX(ctx, key, raw, ttl)
}
