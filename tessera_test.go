package tessera_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera"
	"github.com/quantfold/tessera/internal/testutils"
	"github.com/quantfold/tessera/pkg/adapters/memory"
	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/dsl"
	"github.com/quantfold/tessera/pkg/schema"
)

func TestFacadeIntegration(t *testing.T) {
	// Setup temp repo with one pattern document
	repoPath := t.TempDir()
	content := []byte(`---
id: portfolio-overview
version: 1
inputs:
  portfolio_id: string
steps:
  - capability: portfolio.holdings
    as: holdings
    args:
      id: "{{inputs.portfolio_id}}"
outputs:
  - holdings
---
Fetches the holdings of one portfolio.`)
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "portfolio-overview.md"), content, 0o644))

	engine, err := tessera.New(repoPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, engine.Init(ctx))

	agent := testutils.NewFakeAgent("portfolio", domain.CapabilityManifest{Capability: "portfolio.holdings"})
	agent.Handle("portfolio.holdings", func(call domain.CapabilityCall) (any, error) {
		return map[string]any{"portfolio": call.Args["id"], "positions": 12}, nil
	})
	require.NoError(t, engine.RegisterAgent(agent))

	specs := engine.Patterns()
	require.Len(t, specs, 1)
	assert.Equal(t, "portfolio-overview", specs[0].ID)

	result, err := engine.Run(ctx, "portfolio-overview",
		map[string]any{"portfolio_id": "pf-1"},
		domain.RequestContext{DataSnapshotID: "snap-1"},
	)
	require.NoError(t, err)

	holdings, ok := result.Outputs["holdings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pf-1", holdings["portfolio"])

	require.NotNil(t, result.Trace)
	require.Len(t, result.Trace.Records, 1)
	assert.Equal(t, domain.StepSuccess, result.Trace.Records[0].Status)
	assert.Equal(t, "portfolio", result.Trace.Records[0].RoutedAgent)
}

func TestNewRequiresPathOrLoader(t *testing.T) {
	_, err := tessera.New("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repoPath is required")
}

func TestFacadeWithCustomLoader(t *testing.T) {
	b := dsl.New("echo").
		Input("msg", schema.String())
	b.Call("util.echo").Arg("value", "{{inputs.msg}}").As("echoed")
	b.Output("echoed")

	loader, err := b.Build()
	require.NoError(t, err)

	engine, err := tessera.New("", tessera.WithLoader(loader))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, engine.Init(ctx))

	agent := testutils.NewFakeAgent("util", domain.CapabilityManifest{Capability: "util.echo"})
	agent.Handle("util.echo", func(call domain.CapabilityCall) (any, error) {
		return call.Args["value"], nil
	})
	require.NoError(t, engine.RegisterAgent(agent))

	result, err := engine.Run(ctx, "echo", map[string]any{"msg": "hi"}, domain.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Outputs["echoed"])
}

func noopLoader(t *testing.T) *memory.Loader {
	t.Helper()
	b := dsl.New("noop")
	b.Call("util.noop").As("done")
	b.Output("done")
	loader, err := b.Build()
	require.NoError(t, err)
	return loader
}

func TestFacadeOwnershipAndBreakers(t *testing.T) {
	loader := noopLoader(t)

	engine, err := tessera.New("", tessera.WithLoader(loader))
	require.NoError(t, err)
	require.NoError(t, engine.Init(context.Background()))

	override := &domain.OwnershipOverride{TargetAgent: "v2", RolloutPercentage: 10, Enabled: true}
	require.NoError(t, engine.SetOwnership(context.Background(), "analytics.compare", override))

	overrides, err := engine.Ownership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", overrides["analytics.compare"].TargetAgent)

	require.NoError(t, engine.SetOwnership(context.Background(), "analytics.compare", nil))
	overrides, err = engine.Ownership(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, overrides, "analytics.compare")

	// Unseen agents reset without effect
	engine.ResetBreaker("analytics")
	assert.Empty(t, engine.BreakerStates())
}

func TestFacadeShutdown(t *testing.T) {
	loader := noopLoader(t)

	engine, err := tessera.New("", tessera.WithLoader(loader))
	require.NoError(t, err)
	require.NoError(t, engine.Init(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.Shutdown(ctx))

	_, err = engine.Run(context.Background(), "noop", nil, domain.RequestContext{})
	require.Error(t, err)
}
