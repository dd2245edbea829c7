package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/quantfold/tessera/pkg/domain"
)

func TestMetricsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStepEnd(ctx, &domain.StepEvent{
		Capability: "positions.fetch",
		Status:     domain.StepSuccess,
		Duration:   120 * time.Millisecond,
	})
	hooks.OnStepEnd(ctx, &domain.StepEvent{
		Capability: "positions.fetch",
		Status:     domain.StepError,
	})
	hooks.OnPatternEnd(ctx, &domain.PatternEvent{
		EventBase: domain.EventBase{PatternID: "portfolio_overview"},
		Status:    domain.StepSuccess,
		Duration:  time.Second,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.StepsTotal.WithLabelValues("positions.fetch", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.StepsTotal.WithLabelValues("positions.fetch", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.PatternRunsTotal.WithLabelValues("portfolio_overview", "success")))
}
