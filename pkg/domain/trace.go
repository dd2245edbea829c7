package domain

import "time"

// StepStatus is the terminal status of one step record.
type StepStatus string

const (
	StepSuccess     StepStatus = "success"
	StepError       StepStatus = "error"
	StepSkipped     StepStatus = "skipped"
	StepTimeout     StepStatus = "timeout"
	StepCompensated StepStatus = "compensated"
)

// StepRecord is one entry of the execution trace.
type StepRecord struct {
	StepIndex    int            `json:"step_index"`
	Capability   string         `json:"capability"`
	ResolvedArgs map[string]any `json:"resolved_args,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	Status       StepStatus     `json:"status"`
	RoutedAgent  string         `json:"routed_agent,omitempty"`
	Binding      string         `json:"binding,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// ExecutionTrace is the ordered record of one pattern run. It is always
// returned to the caller, partial on failure.
type ExecutionTrace struct {
	PatternID string       `json:"pattern_id"`
	RequestID string       `json:"request_id"`
	TraceID   string       `json:"trace_id,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	Records   []StepRecord `json:"records"`
}

// RunResult is the outcome of PatternOrchestrator.Run. Outputs is nil on
// failure; Trace is always present.
type RunResult struct {
	Outputs map[string]any  `json:"outputs,omitempty"`
	Trace   *ExecutionTrace `json:"trace"`
}
