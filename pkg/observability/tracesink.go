package observability

import (
	"context"
	"log/slog"

	"github.com/quantfold/tessera/pkg/domain"
)

// LogSink emits completed execution traces to a structured logger, one line
// per run with a nested record summary.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a trace sink over logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements ports.TraceSink.
func (s *LogSink) Emit(ctx context.Context, trace *domain.ExecutionTrace) {
	attrs := make([]any, 0, 8)
	attrs = append(attrs,
		"pattern", trace.PatternID,
		"request_id", trace.RequestID,
		"trace_id", trace.TraceID,
		"steps", len(trace.Records),
	)

	failed := 0
	for _, rec := range trace.Records {
		if rec.Status == domain.StepError || rec.Status == domain.StepTimeout {
			failed++
		}
	}
	attrs = append(attrs, "failed_steps", failed)

	s.logger.InfoContext(ctx, "pattern trace", attrs...)
}
