package ports

import (
	"context"
	"time"

	"github.com/quantfold/tessera/pkg/domain"
)

// OwnershipStore is the source of capability ownership overrides. During an
// agent migration, operators write overrides here to shift traffic for a
// capability toward a new provider at a given rollout percentage.
type OwnershipStore interface {
	// Lookup returns the override for a capability, or (nil, nil) when no
	// override exists and default ownership applies.
	Lookup(ctx context.Context, capability string) (*domain.OwnershipOverride, error)

	// Snapshot returns all current overrides keyed by capability.
	Snapshot(ctx context.Context) (map[string]domain.OwnershipOverride, error)

	// Set writes or replaces the override for a capability. A nil override
	// removes it, restoring default ownership.
	Set(ctx context.Context, capability string, override *domain.OwnershipOverride) error
}

// CacheStore is the shared result-cache tier behind the per-request cache.
// Keys are opaque digests; values are the agent's serialized result.
type CacheStore interface {
	// Get returns the cached value for key, or (nil, false, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetNX stores value under key with the given TTL only if the key is not
	// already present. Returns true when the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// TraceSink receives completed execution traces. Implementations must not
// block the orchestrator; slow sinks should buffer or drop.
type TraceSink interface {
	Emit(ctx context.Context, trace *domain.ExecutionTrace)
}
