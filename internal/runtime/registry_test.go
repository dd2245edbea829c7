package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/internal/logging"
	"github.com/quantfold/tessera/pkg/adapters/memory"
	"github.com/quantfold/tessera/pkg/domain"
)

func TestPatternRegistryLoad(t *testing.T) {
	ctx := context.Background()
	loader, err := memory.NewFromSpecs(validSpec())
	require.NoError(t, err)

	reg := NewPatternRegistry(loader, logging.NewNop())
	require.NoError(t, reg.Load(ctx))

	t.Run("get", func(t *testing.T) {
		spec, err := reg.Get("portfolio_overview")
		require.NoError(t, err)
		assert.Equal(t, "portfolio_overview", spec.ID)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := reg.Get("nope")
		var notFound *domain.PatternNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("list", func(t *testing.T) {
		assert.Len(t, reg.List(), 1)
	})
}

func TestPatternRegistryLoadRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	bad := validSpec()
	bad.Outputs = append(bad.Outputs, "summary")
	loader, err := memory.NewFromSpecs(bad)
	require.NoError(t, err)

	reg := NewPatternRegistry(loader, logging.NewNop())
	assert.ErrorContains(t, reg.Load(ctx), "not produced")
}

func TestPatternRegistryFailedReloadKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	loader, err := memory.NewFromSpecs(validSpec())
	require.NoError(t, err)

	reg := NewPatternRegistry(loader, logging.NewNop())
	require.NoError(t, reg.Load(ctx))

	// Break the source, reload, and verify the old snapshot still serves.
	bad := validSpec()
	bad.ID = "broken"
	bad.Steps = nil
	require.NoError(t, loader.Put(bad))

	require.Error(t, reg.Load(ctx))

	spec, err := reg.Get("portfolio_overview")
	require.NoError(t, err)
	assert.NotNil(t, spec)
}
