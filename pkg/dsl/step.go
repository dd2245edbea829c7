package dsl

import (
	"time"

	"github.com/quantfold/tessera/pkg/domain"
)

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step domain.Step
}

// Args sets the capability arguments. Values may contain template
// references like "{{inputs.portfolio_id}}".
func (s *StepBuilder) Args(args map[string]any) *StepBuilder {
	s.step.Args = args
	return s
}

// Arg sets a single capability argument.
func (s *StepBuilder) Arg(key string, value any) *StepBuilder {
	if s.step.Args == nil {
		s.step.Args = make(map[string]any)
	}
	s.step.Args[key] = value
	return s
}

// As names the binding the step result is stored under.
func (s *StepBuilder) As(binding string) *StepBuilder {
	s.step.As = binding
	return s
}

// When sets a condition expression. A false condition skips the step.
func (s *StepBuilder) When(condition string) *StepBuilder {
	s.step.Condition = condition
	return s
}

// Timeout overrides the per-invocation timeout for this step.
func (s *StepBuilder) Timeout(d time.Duration) *StepBuilder {
	s.step.Timeout = d
	return s
}

// NonFatal marks the step as tolerated on failure.
func (s *StepBuilder) NonFatal() *StepBuilder {
	s.step.NonFatal = true
	return s
}

// Retry configures retry attempts with a fixed backoff. Retries are
// honored only for capabilities declared idempotent by their agent.
func (s *StepBuilder) Retry(attempts int, backoff time.Duration) *StepBuilder {
	s.step.Retries = attempts
	s.step.Backoff = backoff
	return s
}

// Compensate names the capability invoked to revert this step's effect
// if a later step fails fatally.
func (s *StepBuilder) Compensate(capability string) *StepBuilder {
	s.step.Compensate = capability
	return s
}

// Step returns the underlying domain.Step.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StepBuilder) Step() domain.Step {
	return s.step
}
