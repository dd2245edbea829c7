package domain

import (
	"fmt"
	"time"
)

// PatternNotFoundError reports a lookup for an unknown pattern id.
type PatternNotFoundError struct {
	ID string
}

func (e *PatternNotFoundError) Error() string {
	return fmt.Sprintf("pattern not found: %s", e.ID)
}

// CapabilityNotFoundError reports a capability no registered agent publishes.
type CapabilityNotFoundError struct {
	Capability string
}

func (e *CapabilityNotFoundError) Error() string {
	return fmt.Sprintf("capability not found: %s", e.Capability)
}

// InputValidationError reports blocking input-schema validation failure.
// The wrapped error carries the per-field details.
type InputValidationError struct {
	PatternID string
	Err       error
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("pattern %s: invalid inputs: %s", e.PatternID, e.Err)
}

func (e *InputValidationError) Unwrap() error { return e.Err }

// StepArgumentError reports a step whose condition or arguments could not
// be resolved, typically wrapping a template.MissingVariableError.
type StepArgumentError struct {
	StepIndex  int
	Capability string
	Arg        string
	Err        error
}

func (e *StepArgumentError) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("step %d (%s): arg %q: %s", e.StepIndex, e.Capability, e.Arg, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %s", e.StepIndex, e.Capability, e.Err)
}

func (e *StepArgumentError) Unwrap() error { return e.Err }

// CircuitOpenError reports a call rejected by an open circuit breaker.
// No agent call was made.
type CircuitOpenError struct {
	Agent      string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for agent %s (retry after %s)", e.Agent, e.RetryAfter.Round(time.Millisecond))
}

// CapabilityExecutionError wraps a failure raised by the agent itself.
type CapabilityExecutionError struct {
	Capability string
	Agent      string
	Err        error
}

func (e *CapabilityExecutionError) Error() string {
	return fmt.Sprintf("capability %s on agent %s: %s", e.Capability, e.Agent, e.Err)
}

func (e *CapabilityExecutionError) Unwrap() error { return e.Err }

// TimeoutError reports a step that exceeded its bounded execution timeout.
// The in-flight call was cancelled.
type TimeoutError struct {
	Capability string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("capability %s timed out after %s", e.Capability, e.Timeout)
}

// OutputProjectionError reports a declared output with no bound value.
type OutputProjectionError struct {
	Output string
}

func (e *OutputProjectionError) Error() string {
	return fmt.Sprintf("declared output %q has no bound value", e.Output)
}

// PatternExecutionError is the top-level wrapper for a failed run. It
// carries the partial trace so callers can debug the failure.
type PatternExecutionError struct {
	PatternID string
	StepIndex int
	Err       error
	Trace     *ExecutionTrace
}

func (e *PatternExecutionError) Error() string {
	return fmt.Sprintf("pattern %s failed at step %d: %s", e.PatternID, e.StepIndex, e.Err)
}

func (e *PatternExecutionError) Unwrap() error { return e.Err }
