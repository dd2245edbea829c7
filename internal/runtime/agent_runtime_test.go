package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/internal/logging"
	"github.com/quantfold/tessera/internal/testutils"
	"github.com/quantfold/tessera/pkg/adapters/memory"
	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/registry"
)

type runtimeFixture struct {
	rt        *AgentRuntime
	breakers  *BreakerSet
	reg       *registry.Registry
	ownership *memory.OwnershipStore
}

func newRuntimeFixture(t *testing.T, agents ...*testutils.FakeAgent) *runtimeFixture {
	t.Helper()

	reg := registry.New()
	for _, a := range agents {
		require.NoError(t, reg.Register(a))
	}
	ownership := memory.NewOwnershipStore()
	breakers := NewBreakerSet(3, time.Minute)
	router := NewCapabilityRouter(reg, ownership)
	return &runtimeFixture{
		rt:        NewAgentRuntime(router, breakers, logging.NewNop()),
		breakers:  breakers,
		reg:       reg,
		ownership: ownership,
	}
}

func newScope(requestID string) *RunScope {
	return NewRunScope(domain.RequestContext{
		RequestID:      requestID,
		Principal:      "analyst-7",
		DataSnapshotID: "snap-1",
	}, nil)
}

func TestExecuteInvokesAgent(t *testing.T) {
	agent := testutils.NewFakeAgent("analytics",
		domain.CapabilityManifest{Capability: "positions.list", Method: "ListPositions"})
	agent.Handle("ListPositions", func(call domain.CapabilityCall) (any, error) {
		assert.Equal(t, "req-1", call.Request.RequestID)
		assert.Equal(t, "pf-9", call.Args["portfolio_id"])
		return map[string]any{"rows": []any{}}, nil
	})
	fx := newRuntimeFixture(t, agent)

	res, err := fx.rt.Execute(context.Background(), newScope("req-1"), "positions.list",
		map[string]any{"portfolio_id": "pf-9"})
	require.NoError(t, err)
	assert.Equal(t, "analytics", res.Agent)
	assert.False(t, res.Cached)
	assert.Equal(t, 1, agent.Calls("ListPositions"))
}

func TestExecuteWrapsAgentErrors(t *testing.T) {
	boom := errors.New("downstream unavailable")
	agent := testutils.NewFakeAgent("analytics",
		domain.CapabilityManifest{Capability: "positions.list", Method: "ListPositions"})
	agent.Handle("ListPositions", func(domain.CapabilityCall) (any, error) { return nil, boom })
	fx := newRuntimeFixture(t, agent)

	_, err := fx.rt.Execute(context.Background(), newScope("req-1"), "positions.list", nil)
	var execErr *domain.CapabilityExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "positions.list", execErr.Capability)
	assert.Equal(t, "analytics", execErr.Agent)
	assert.ErrorIs(t, err, boom)
}

func TestExecuteCachesResults(t *testing.T) {
	agent := testutils.NewFakeAgent("analytics",
		domain.CapabilityManifest{Capability: "quotes.latest", Method: "Latest", Cacheable: true, CacheTTL: time.Minute})
	agent.Handle("Latest", func(domain.CapabilityCall) (any, error) {
		return map[string]any{"AAPL": 187.2}, nil
	})
	fx := newRuntimeFixture(t, agent)
	scope := newScope("req-1")
	args := map[string]any{"symbols": []any{"AAPL"}}

	first, err := fx.rt.Execute(context.Background(), scope, "quotes.latest", args)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := fx.rt.Execute(context.Background(), scope, "quotes.latest", args)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, 1, agent.Calls("Latest"), "identical cacheable call must hit the agent exactly once")

	t.Run("different snapshot misses", func(t *testing.T) {
		other := NewRunScope(domain.RequestContext{RequestID: "req-2", DataSnapshotID: "snap-2"}, nil)
		res, err := fx.rt.Execute(context.Background(), other, "quotes.latest", args)
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Equal(t, 2, agent.Calls("Latest"))
	})
}

func TestExecuteMemoizesWithinRunByDefault(t *testing.T) {
	agent := testutils.NewFakeAgent("analytics",
		domain.CapabilityManifest{Capability: "positions.list", Method: "List"})
	agent.Handle("List", func(domain.CapabilityCall) (any, error) {
		return []any{"pf-9"}, nil
	})
	fx := newRuntimeFixture(t, agent)
	scope := newScope("req-1")
	args := map[string]any{"portfolio_id": "pf-9"}

	first, err := fx.rt.Execute(context.Background(), scope, "positions.list", args)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := fx.rt.Execute(context.Background(), scope, "positions.list", args)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, 1, agent.Calls("List"),
		"identical calls within one run must hit the agent exactly once even without the shared-cache opt-in")

	t.Run("fresh run invokes again", func(t *testing.T) {
		res, err := fx.rt.Execute(context.Background(), newScope("req-2"), "positions.list", args)
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Equal(t, 2, agent.Calls("List"))
	})
}

func TestExecuteBreakerBeforeCache(t *testing.T) {
	agent := testutils.NewFakeAgent("analytics",
		domain.CapabilityManifest{Capability: "quotes.latest", Method: "Latest", Cacheable: true, CacheTTL: time.Minute})
	agent.Handle("Latest", func(domain.CapabilityCall) (any, error) {
		return map[string]any{"AAPL": 187.2}, nil
	})
	fx := newRuntimeFixture(t, agent)
	scope := newScope("req-1")
	args := map[string]any{"symbols": []any{"AAPL"}}

	// Warm the cache, then trip the breaker out of band.
	_, err := fx.rt.Execute(context.Background(), scope, "quotes.latest", args)
	require.NoError(t, err)
	cb := fx.breakers.For("analytics")
	for i := 0; i < 3; i++ {
		cb.OnFailure(false)
	}

	_, err = fx.rt.Execute(context.Background(), scope, "quotes.latest", args)
	var open *domain.CircuitOpenError
	assert.ErrorAs(t, err, &open, "an open breaker must win over a warm cache")
}

func TestExecuteCacheHitReleasesHalfOpenTrial(t *testing.T) {
	clock := newFakeClock()
	agent := testutils.NewFakeAgent("analytics",
		domain.CapabilityManifest{Capability: "quotes.latest", Method: "Latest", Cacheable: true, CacheTTL: time.Minute})
	agent.Handle("Latest", func(domain.CapabilityCall) (any, error) {
		return map[string]any{"AAPL": 187.2}, nil
	})
	fx := newRuntimeFixture(t, agent)
	fx.breakers.now = clock.Now
	scope := newScope("req-1")
	args := map[string]any{"symbols": []any{"AAPL"}}

	_, err := fx.rt.Execute(context.Background(), scope, "quotes.latest", args)
	require.NoError(t, err)

	cb := fx.breakers.For("analytics")
	cb.now = clock.Now
	for i := 0; i < 3; i++ {
		cb.OnFailure(false)
	}
	clock.Advance(time.Minute)

	// Cache satisfies the call, so the admitted trial must be released
	// without closing the breaker.
	res, err := fx.rt.Execute(context.Background(), scope, "quotes.latest", args)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "half-open", cb.State())

	// The next uncached call gets the probe and closes the breaker.
	other := NewRunScope(domain.RequestContext{RequestID: "req-2", DataSnapshotID: "snap-9"}, nil)
	res, err = fx.rt.Execute(context.Background(), other, "quotes.latest", args)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "closed", cb.State())
}

func TestExecutePinsRouteForRequest(t *testing.T) {
	v1 := testutils.NewFakeAgent("analytics-v1",
		domain.CapabilityManifest{Capability: "positions.list", Method: "ListPositions"})
	v2 := testutils.NewFakeAgent("analytics-v2",
		domain.CapabilityManifest{Capability: "positions.list", Method: "Positions"})
	fx := newRuntimeFixture(t, v1, v2)
	scope := newScope("req-1")
	ctx := context.Background()

	res, err := fx.rt.Execute(ctx, scope, "positions.list", nil)
	require.NoError(t, err)
	firstAgent := res.Agent

	// Moving the rollout mid-request must not reroute this request.
	require.NoError(t, fx.ownership.Set(ctx, "positions.list", &domain.OwnershipOverride{
		TargetAgent: "analytics-v2", RolloutPercentage: 100, Enabled: true,
	}))

	res, err = fx.rt.Execute(ctx, scope, "positions.list", nil)
	require.NoError(t, err)
	assert.Equal(t, firstAgent, res.Agent)

	// A new request sees the updated override.
	res, err = fx.rt.Execute(ctx, newScope("req-2"), "positions.list", nil)
	require.NoError(t, err)
	assert.Equal(t, "analytics-v2", res.Agent)
}
