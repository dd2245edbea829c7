package dsl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/schema"
)

func TestBuilderSimplePattern(t *testing.T) {
	b := New("portfolio-overview").
		Description("Holdings plus optional benchmark comparison").
		Timeout(20 * time.Second).
		Input("portfolio_id", schema.String()).
		Input("benchmark", schema.Optional(schema.String()))

	b.Call("portfolio.holdings").
		Arg("id", "{{inputs.portfolio_id}}").
		Retry(2, 100*time.Millisecond).
		As("holdings")

	b.Call("analytics.compare").
		Arg("against", "{{inputs.benchmark}}").
		When("{{?inputs.benchmark}} != null").
		NonFatal().
		As("comparison")

	b.Output("holdings", "comparison")

	loader, err := b.Build()
	require.NoError(t, err)

	spec, err := loader.GetPattern(context.Background(), "portfolio-overview")
	require.NoError(t, err)

	assert.Equal(t, "portfolio-overview", spec.ID)
	assert.Equal(t, 1, spec.Version)
	assert.Equal(t, 20*time.Second, spec.Timeout)
	require.Len(t, spec.Steps, 2)

	first := spec.Steps[0]
	assert.Equal(t, "portfolio.holdings", first.Capability)
	assert.Equal(t, "{{inputs.portfolio_id}}", first.Args["id"])
	assert.Equal(t, "holdings", first.As)
	assert.Equal(t, 2, first.Retries)
	assert.Equal(t, 100*time.Millisecond, first.Backoff)

	second := spec.Steps[1]
	assert.Equal(t, "{{?inputs.benchmark}} != null", second.Condition)
	assert.True(t, second.NonFatal)

	assert.Equal(t, []string{"holdings", "comparison"}, spec.Outputs)
	require.Contains(t, spec.Inputs, "benchmark")
	assert.Equal(t, "?string", spec.Inputs["benchmark"].Name())
}

func TestBuilderGroup(t *testing.T) {
	b := New("risk-report")

	b.Call("portfolio.snapshot").As("snap")

	b.Group(domain.GroupWaitAll,
		Member("risk.var").Arg("of", "{{snap}}").As("var"),
		Member("risk.exposure").Arg("of", "{{snap}}").As("exposure"),
	)

	b.Output("var", "exposure")

	spec := b.Spec()
	require.Len(t, spec.Steps, 2)
	group := spec.Steps[1]
	require.True(t, group.IsGroup())
	assert.Equal(t, domain.GroupWaitAll, group.Group.Policy)
	require.Len(t, group.Group.Steps, 2)
	assert.Equal(t, "risk.var", group.Group.Steps[0].Capability)
	assert.Equal(t, "exposure", group.Group.Steps[1].As)
}

func TestBuilderCompensation(t *testing.T) {
	b := New("rebalance")

	b.Call("orders.reserve").
		Arg("amount", "{{inputs.amount}}").
		Compensate("orders.release").
		As("reservation")

	spec := b.Spec()
	require.Len(t, spec.Steps, 1)
	assert.Equal(t, "orders.release", spec.Steps[0].Compensate)
}

func TestComposeMultiplePatterns(t *testing.T) {
	a := New("pattern-a")
	a.Call("cap.a").As("result")
	a.Output("result")

	b := New("pattern-b").Version(3)
	b.Call("cap.b").As("result")
	b.Output("result")

	loader, err := Compose(a, b)
	require.NoError(t, err)

	specs, err := loader.ListPatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "pattern-a", specs[0].ID)
	assert.Equal(t, "pattern-b", specs[1].ID)

	spec, err := loader.GetPattern(context.Background(), "pattern-b")
	require.NoError(t, err)
	assert.Equal(t, 3, spec.Version)
}

func TestComposeRejectsDuplicateIDs(t *testing.T) {
	a := New("dup")
	b := New("dup")

	_, err := Compose(a, b)
	require.Error(t, err)
}
