package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quantfold/tessera/pkg/domain"
)

// OwnershipStore implements ports.OwnershipStore using an in-memory map.
type OwnershipStore struct {
	mu        sync.RWMutex
	overrides map[string]domain.OwnershipOverride
}

// NewOwnershipStore creates an empty in-memory ownership store.
func NewOwnershipStore() *OwnershipStore {
	return &OwnershipStore{overrides: make(map[string]domain.OwnershipOverride)}
}

// Lookup returns the override for a capability, or nil when none exists.
func (s *OwnershipStore) Lookup(_ context.Context, capability string) (*domain.OwnershipOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	override, ok := s.overrides[capability]
	if !ok {
		return nil, nil
	}
	return &override, nil
}

// Snapshot returns all current overrides keyed by capability.
func (s *OwnershipStore) Snapshot(_ context.Context) (map[string]domain.OwnershipOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]domain.OwnershipOverride, len(s.overrides))
	for capability, override := range s.overrides {
		snap[capability] = override
	}
	return snap, nil
}

// Set writes or removes the override for a capability.
func (s *OwnershipStore) Set(_ context.Context, capability string, override *domain.OwnershipOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if override == nil {
		delete(s.overrides, capability)
		return nil
	}
	s.overrides[capability] = *override
	return nil
}

// CacheStore implements ports.CacheStore using an in-memory map with lazy
// expiry. Intended for tests and single-process deployments.
type CacheStore struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewCacheStore creates an empty in-memory cache store.
func NewCacheStore() *CacheStore {
	return &CacheStore{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get returns the cached value for key, or a miss when absent or expired.
func (s *CacheStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// SetNX stores value under key with the given TTL unless the key is present.
func (s *CacheStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		if entry.expiresAt.IsZero() || s.now().Before(entry.expiresAt) {
			return false, nil
		}
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = cacheEntry{value: value, expiresAt: expiresAt}
	return true, nil
}
