package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
)

// ExecutionTracer accumulates the step records of one pattern run. Records
// may arrive concurrently from parallel group members; they are kept sorted
// by step index so the trace reads in pattern order.
type ExecutionTracer struct {
	mu    sync.Mutex
	trace domain.ExecutionTrace
}

// NewExecutionTracer starts a trace for one run.
func NewExecutionTracer(patternID string, req domain.RequestContext) *ExecutionTracer {
	return &ExecutionTracer{trace: domain.ExecutionTrace{
		PatternID: patternID,
		RequestID: req.RequestID,
		TraceID:   req.TraceID,
		StartedAt: time.Now().UTC(),
	}}
}

// Record appends one step record, keeping records ordered by step index.
func (t *ExecutionTracer) Record(rec domain.StepRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := t.trace.Records
	at := len(records)
	for at > 0 && records[at-1].StepIndex > rec.StepIndex {
		at--
	}
	records = append(records, domain.StepRecord{})
	copy(records[at+1:], records[at:])
	records[at] = rec
	t.trace.Records = records
}

// Trace returns a copy of the accumulated trace. Safe to call while group
// members are still recording.
func (t *ExecutionTracer) Trace() *domain.ExecutionTrace {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.trace
	out.Records = make([]domain.StepRecord, len(t.trace.Records))
	copy(out.Records, t.trace.Records)
	return &out
}

// MultiSink fans a completed trace out to several sinks.
type MultiSink []ports.TraceSink

// Emit implements ports.TraceSink.
func (m MultiSink) Emit(ctx context.Context, trace *domain.ExecutionTrace) {
	for _, sink := range m {
		sink.Emit(ctx, trace)
	}
}
