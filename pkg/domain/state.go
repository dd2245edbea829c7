package domain

import "fmt"

// InputsBinding is the reserved namespace the orchestrator seeds the
// validated request inputs under.
const InputsBinding = "inputs"

// ExecutionState maps result bindings to values for one pattern run.
// It is scoped to a single run and never shared across requests.
//
// Sequential steps mutate it directly. Parallel groups resolve their
// arguments against a Snapshot taken before the group and bind results
// only after the join, so the state itself needs no locking.
type ExecutionState struct {
	values map[string]any
}

// NewExecutionState seeds a fresh state with the validated inputs.
func NewExecutionState(inputs map[string]any) *ExecutionState {
	values := make(map[string]any)
	seeded := make(map[string]any, len(inputs))
	for k, v := range inputs {
		seeded[k] = v
	}
	values[InputsBinding] = seeded
	return &ExecutionState{values: values}
}

// Bind stores a step result under its declared binding.
// Rebinding an existing name is a programming error in the pattern and is
// rejected rather than silently overwritten.
func (s *ExecutionState) Bind(name string, value any) error {
	if name == "" {
		return fmt.Errorf("empty binding name")
	}
	if name == InputsBinding {
		return fmt.Errorf("binding %q is reserved", InputsBinding)
	}
	if _, exists := s.values[name]; exists {
		return fmt.Errorf("binding %q already set", name)
	}
	s.values[name] = value
	return nil
}

// Lookup returns the value bound under name.
func (s *ExecutionState) Lookup(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Snapshot returns a shallow copy of the binding table, safe to read
// concurrently while the original continues to accumulate bindings.
func (s *ExecutionState) Snapshot() map[string]any {
	snap := make(map[string]any, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

// Project maps the state onto the declared outputs. A declared output
// with no bound value is an OutputProjectionError, never a silent null.
func (s *ExecutionState) Project(outputs []string) (map[string]any, error) {
	result := make(map[string]any, len(outputs))
	for _, name := range outputs {
		v, ok := s.values[name]
		if !ok {
			return nil, &OutputProjectionError{Output: name}
		}
		result[name] = v
	}
	return result, nil
}
