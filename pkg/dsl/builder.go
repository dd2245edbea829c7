package dsl

import (
	"fmt"
	"time"

	"github.com/quantfold/tessera/pkg/adapters/memory"
	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/schema"
)

// Builder manages the construction of one pattern spec.
type Builder struct {
	spec  domain.PatternSpec
	steps []*StepBuilder
}

// New creates a builder for a pattern with the given ID.
func New(id string) *Builder {
	return &Builder{
		spec: domain.PatternSpec{
			ID:      id,
			Version: 1,
		},
	}
}

// Version sets the pattern version.
func (b *Builder) Version(v int) *Builder {
	b.spec.Version = v
	return b
}

// Description sets the pattern description.
func (b *Builder) Description(desc string) *Builder {
	b.spec.Description = desc
	return b
}

// Timeout sets the pattern-wide default step timeout.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.spec.Timeout = d
	return b
}

// Input declares an input field with the given type.
func (b *Builder) Input(name string, t schema.Type) *Builder {
	if b.spec.Inputs == nil {
		b.spec.Inputs = make(schema.Schema)
	}
	b.spec.Inputs[name] = t
	return b
}

// Call appends a capability step and returns its builder for further
// configuration.
func (b *Builder) Call(capability string) *StepBuilder {
	sb := &StepBuilder{step: domain.Step{Capability: capability}}
	b.steps = append(b.steps, sb)
	return sb
}

// Group appends a parallel group built from the given member steps.
func (b *Builder) Group(policy domain.GroupPolicy, members ...*StepBuilder) *Builder {
	group := &domain.Group{Policy: policy}
	for _, m := range members {
		group.Steps = append(group.Steps, m.step)
	}
	b.steps = append(b.steps, &StepBuilder{step: domain.Step{Group: group}})
	return b
}

// Output declares a binding exported in the run result.
func (b *Builder) Output(bindings ...string) *Builder {
	b.spec.Outputs = append(b.spec.Outputs, bindings...)
	return b
}

// Spec assembles and returns the pattern spec.
func (b *Builder) Spec() *domain.PatternSpec {
	spec := b.spec
	spec.Steps = make([]domain.Step, 0, len(b.steps))
	for _, sb := range b.steps {
		spec.Steps = append(spec.Steps, sb.step)
	}
	return &spec
}

// Build compiles the pattern into an in-memory loader ready to serve
// the engine. Use Compose to bundle several builders into one loader.
func (b *Builder) Build() (*memory.Loader, error) {
	loader, err := memory.NewFromSpecs(b.Spec())
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}

// Compose bundles several pattern builders into a single loader.
func Compose(builders ...*Builder) (*memory.Loader, error) {
	specs := make([]*domain.PatternSpec, 0, len(builders))
	for _, b := range builders {
		specs = append(specs, b.Spec())
	}
	loader, err := memory.NewFromSpecs(specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}

// Member creates a standalone step builder for use inside Group.
func Member(capability string) *StepBuilder {
	return &StepBuilder{step: domain.Step{Capability: capability}}
}
