// Package redis provides Redis-backed implementations of the shared result
// cache and the ownership store, for multi-replica deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/quantfold/tessera/pkg/domain"
)

const defaultPrefix = "tessera:"

// Option configures the Redis adapters.
type Option func(*options)

type options struct {
	prefix string
}

// WithPrefix overrides the key prefix (default "tessera:").
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func applyOptions(opts []Option) options {
	o := options{prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CacheStore implements ports.CacheStore on Redis using SET NX PX for the
// insert-if-absent semantics the shared result cache requires.
type CacheStore struct {
	client *backend.Client
	prefix string
}

// NewCacheStore creates a cache store from an existing client.
func NewCacheStore(client *backend.Client, opts ...Option) *CacheStore {
	o := applyOptions(opts)
	return &CacheStore{client: client, prefix: o.prefix + "cache:"}
}

// Get returns the cached value for key, or a miss when absent.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == backend.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// SetNX stores value under key with the given TTL unless the key exists.
func (s *CacheStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// OwnershipStore implements ports.OwnershipStore on a Redis hash, so every
// replica observes override changes immediately.
type OwnershipStore struct {
	client *backend.Client
	key    string
}

// NewOwnershipStore creates an ownership store from an existing client.
func NewOwnershipStore(client *backend.Client, opts ...Option) *OwnershipStore {
	o := applyOptions(opts)
	return &OwnershipStore{client: client, key: o.prefix + "ownership"}
}

// Lookup returns the override for a capability, or nil when none exists.
func (s *OwnershipStore) Lookup(ctx context.Context, capability string) (*domain.OwnershipOverride, error) {
	raw, err := s.client.HGet(ctx, s.key, capability).Bytes()
	if err == backend.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	var override domain.OwnershipOverride
	if err := json.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("decoding override for %s: %w", capability, err)
	}
	return &override, nil
}

// Snapshot returns all current overrides keyed by capability.
func (s *OwnershipStore) Snapshot(ctx context.Context) (map[string]domain.OwnershipOverride, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	snap := make(map[string]domain.OwnershipOverride, len(raw))
	for capability, encoded := range raw {
		var override domain.OwnershipOverride
		if err := json.Unmarshal([]byte(encoded), &override); err != nil {
			return nil, fmt.Errorf("decoding override for %s: %w", capability, err)
		}
		snap[capability] = override
	}
	return snap, nil
}

// Set writes or removes the override for a capability.
func (s *OwnershipStore) Set(ctx context.Context, capability string, override *domain.OwnershipOverride) error {
	if override == nil {
		if err := s.client.HDel(ctx, s.key, capability).Err(); err != nil {
			return fmt.Errorf("redis hdel: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(override)
	if err != nil {
		return fmt.Errorf("encoding override for %s: %w", capability, err)
	}
	if err := s.client.HSet(ctx, s.key, capability, raw).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}
