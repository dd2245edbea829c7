// Package observability provides the Prometheus metrics sink and the
// structured-log trace sink, both wired into the runtime as lifecycle hooks
// and trace sinks.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quantfold/tessera/pkg/domain"
)

// Metrics holds the Prometheus metrics of the orchestration runtime.
//
// All metrics are prefixed with "tessera_":
//   - tessera_pattern_runs_total{pattern,status} - completed pattern runs
//   - tessera_pattern_duration_seconds{pattern} - pattern run latency
//   - tessera_steps_total{capability,status} - step executions by outcome
//   - tessera_step_duration_seconds{capability} - step latency
type Metrics struct {
	PatternRunsTotal *prometheus.CounterVec
	PatternDuration  *prometheus.HistogramVec
	StepsTotal       *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers the runtime metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PatternRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tessera_pattern_runs_total",
				Help: "Total number of completed pattern runs",
			},
			[]string{"pattern", "status"},
		),
		PatternDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tessera_pattern_duration_seconds",
				Help:    "Pattern run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pattern"},
		),
		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tessera_steps_total",
				Help: "Total number of step executions by outcome",
			},
			[]string{"capability", "status"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tessera_step_duration_seconds",
				Help:    "Step execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"capability"},
		),
	}
}

// Hooks returns lifecycle hooks that feed these metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPatternEnd: func(_ context.Context, evt *domain.PatternEvent) {
			m.PatternRunsTotal.WithLabelValues(evt.PatternID, string(evt.Status)).Inc()
			m.PatternDuration.WithLabelValues(evt.PatternID).Observe(evt.Duration.Seconds())
		},
		OnStepEnd: func(_ context.Context, evt *domain.StepEvent) {
			m.StepsTotal.WithLabelValues(evt.Capability, string(evt.Status)).Inc()
			m.StepDuration.WithLabelValues(evt.Capability).Observe(evt.Duration.Seconds())
		},
	}
}
