package domain

import (
	"time"

	"github.com/quantfold/tessera/pkg/schema"
)

// GroupPolicy controls how a parallel group reacts to a member failure.
type GroupPolicy string

const (
	// GroupFailFast cancels the remaining members as soon as one fails.
	GroupFailFast GroupPolicy = "fail_fast"
	// GroupWaitAll joins every member before reporting the first failure.
	GroupWaitAll GroupPolicy = "wait_all"
)

// PatternSpec is an immutable multi-step workflow definition.
// Specs are loaded once by the registry and never mutated afterwards;
// hot reload swaps the whole spec, it does not edit it in place.
type PatternSpec struct {
	ID          string        `json:"id" yaml:"id" mapstructure:"id"`
	Version     int           `json:"version" yaml:"version" mapstructure:"version"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"-"`

	// Inputs is the declared input schema. Validation against it is
	// blocking: a run never starts with inputs that fail it.
	Inputs schema.Schema `json:"-" yaml:"-" mapstructure:"-"`

	Steps   []Step   `json:"steps" yaml:"steps" mapstructure:"steps"`
	Outputs []string `json:"outputs" yaml:"outputs" mapstructure:"outputs"`

	// Doc is the free-form markdown body of the pattern document.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty" mapstructure:"-"`
}

// Step is one unit of a pattern: either a single capability call or a
// declared parallel group (exactly one of Capability/Group is set).
type Step struct {
	Capability string         `json:"capability,omitempty" yaml:"capability,omitempty" mapstructure:"capability"`
	Args       map[string]any `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`

	// As names the binding the result is stored under in the execution
	// state. Steps without a binding contribute no state.
	As string `json:"as,omitempty" yaml:"as,omitempty" mapstructure:"as"`

	// Condition is a restricted boolean expression (see pkg/template).
	// A false condition skips the step without binding or failing.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`

	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"-"`
	NonFatal bool          `json:"non_fatal,omitempty" yaml:"non_fatal,omitempty" mapstructure:"non_fatal"`

	// Retries re-invokes the capability on failure. Honored only for
	// capabilities whose manifest declares them idempotent.
	Retries int           `json:"retries,omitempty" yaml:"retries,omitempty" mapstructure:"retries"`
	Backoff time.Duration `json:"backoff,omitempty" yaml:"backoff,omitempty" mapstructure:"-"`

	// Compensate names a capability invoked during best-effort unwind if a
	// later step fails fatally after this step committed.
	Compensate string `json:"compensate,omitempty" yaml:"compensate,omitempty" mapstructure:"compensate"`

	Group *Group `json:"group,omitempty" yaml:"group,omitempty" mapstructure:"group"`
}

// IsGroup reports whether the step is a parallel group entry.
func (s Step) IsGroup() bool { return s.Group != nil }

// Group is a set of steps executed concurrently and fully joined before
// the next sequential step runs. Members must target distinct bindings.
type Group struct {
	Policy GroupPolicy `json:"policy,omitempty" yaml:"policy,omitempty" mapstructure:"policy"`
	Steps  []Step      `json:"steps" yaml:"steps" mapstructure:"steps"`
}

// EffectivePolicy returns the declared policy or the fail-fast default.
func (g *Group) EffectivePolicy() GroupPolicy {
	if g.Policy == "" {
		return GroupFailFast
	}
	return g.Policy
}
