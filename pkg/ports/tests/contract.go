// Package tests holds reusable contract suites for ports implementations,
// kept out of the production ports package so importers do not pull in the
// testing toolchain.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
)

// RunOwnershipStoreContract runs a suite of tests to verify that an
// OwnershipStore implementation adheres to the defined interface contract.
func RunOwnershipStoreContract(t *testing.T, store ports.OwnershipStore) {
	ctx := context.Background()
	capability := "contract-test-capability-" + time.Now().Format("20060102150405")

	t.Run("Lookup Missing", func(t *testing.T) {
		override, err := store.Lookup(ctx, "missing-"+capability)
		require.NoError(t, err, "Lookup should not return error for absent overrides")
		assert.Nil(t, override)
	})

	t.Run("Set and Lookup", func(t *testing.T) {
		want := domain.OwnershipOverride{
			TargetAgent:       "analytics-v2",
			RolloutPercentage: 25,
			Enabled:           true,
		}
		require.NoError(t, store.Set(ctx, capability, &want))

		got, err := store.Lookup(ctx, capability)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, *got)
	})

	t.Run("Snapshot", func(t *testing.T) {
		snap, err := store.Snapshot(ctx)
		require.NoError(t, err)
		assert.Contains(t, snap, capability)
	})

	t.Run("Set Nil Removes", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, capability, nil))

		got, err := store.Lookup(ctx, capability)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

// RunCacheStoreContract runs a suite of tests to verify that a CacheStore
// implementation adheres to the defined interface contract.
func RunCacheStoreContract(t *testing.T, store ports.CacheStore) {
	ctx := context.Background()
	key := "contract-test-key-" + time.Now().Format("20060102150405")

	t.Run("Get Missing", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "missing-"+key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetNX and Get", func(t *testing.T) {
		stored, err := store.SetNX(ctx, key, []byte(`{"v":1}`), time.Minute)
		require.NoError(t, err)
		assert.True(t, stored, "first SetNX should store")

		val, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte(`{"v":1}`), val)
	})

	t.Run("SetNX Does Not Overwrite", func(t *testing.T) {
		stored, err := store.SetNX(ctx, key, []byte(`{"v":2}`), time.Minute)
		require.NoError(t, err)
		assert.False(t, stored, "second SetNX should not overwrite")

		val, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte(`{"v":1}`), val)
	})
}
