package loam

import (
	"fmt"
	"time"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/schema"
)

// PatternMetadata represents the frontmatter of a pattern document.
// It uses "mapstructure" tags to match the YAML keys.
type PatternMetadata struct {
	ID          string            `json:"id" mapstructure:"id"`
	Version     int               `json:"version" mapstructure:"version"`
	Description string            `json:"description" mapstructure:"description"`
	Timeout     string            `json:"timeout,omitempty" mapstructure:"timeout"`
	Inputs      map[string]string `json:"inputs" mapstructure:"inputs"`
	Steps       []StepMetadata    `json:"steps" mapstructure:"steps"`
	Outputs     []string          `json:"outputs" mapstructure:"outputs"`
}

// StepMetadata is the raw form of one step entry.
type StepMetadata struct {
	Capability string         `json:"capability,omitempty" mapstructure:"capability"`
	Args       map[string]any `json:"args,omitempty" mapstructure:"args"`
	As         string         `json:"as,omitempty" mapstructure:"as"`
	Condition  string         `json:"condition,omitempty" mapstructure:"condition"`
	Timeout    string         `json:"timeout,omitempty" mapstructure:"timeout"`
	NonFatal   bool           `json:"non_fatal,omitempty" mapstructure:"non_fatal"`
	Retries    int            `json:"retries,omitempty" mapstructure:"retries"`
	Backoff    string         `json:"backoff,omitempty" mapstructure:"backoff"`
	Compensate string         `json:"compensate,omitempty" mapstructure:"compensate"`
	Group      *GroupMetadata `json:"group,omitempty" mapstructure:"group"`
}

// GroupMetadata is the raw form of a declared parallel group.
type GroupMetadata struct {
	Policy string         `json:"policy,omitempty" mapstructure:"policy"`
	Steps  []StepMetadata `json:"steps" mapstructure:"steps"`
}

// toSpec converts raw frontmatter into a domain pattern. Durations are
// declared as strings ("30s", "200ms") and parsed here so a typo fails at
// load time, not at run time.
func toSpec(docID string, meta PatternMetadata, content string) (*domain.PatternSpec, error) {
	id := meta.ID
	if id == "" {
		id = docID
	}

	spec := &domain.PatternSpec{
		ID:          id,
		Version:     meta.Version,
		Description: meta.Description,
		Outputs:     meta.Outputs,
		Doc:         content,
	}

	var err error
	if spec.Timeout, err = parseDuration(meta.Timeout); err != nil {
		return nil, fmt.Errorf("pattern %s: timeout: %w", id, err)
	}

	if len(meta.Inputs) > 0 {
		if spec.Inputs, err = schema.ParseTypeMap(meta.Inputs); err != nil {
			return nil, fmt.Errorf("pattern %s: inputs: %w", id, err)
		}
	}

	spec.Steps = make([]domain.Step, 0, len(meta.Steps))
	for i, raw := range meta.Steps {
		step, err := toStep(raw)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: step %d: %w", id, i, err)
		}
		spec.Steps = append(spec.Steps, step)
	}
	return spec, nil
}

func toStep(raw StepMetadata) (domain.Step, error) {
	step := domain.Step{
		Capability: raw.Capability,
		Args:       raw.Args,
		As:         raw.As,
		Condition:  raw.Condition,
		NonFatal:   raw.NonFatal,
		Retries:    raw.Retries,
		Compensate: raw.Compensate,
	}

	var err error
	if step.Timeout, err = parseDuration(raw.Timeout); err != nil {
		return domain.Step{}, fmt.Errorf("timeout: %w", err)
	}
	if step.Backoff, err = parseDuration(raw.Backoff); err != nil {
		return domain.Step{}, fmt.Errorf("backoff: %w", err)
	}

	if raw.Group != nil {
		group := &domain.Group{Policy: domain.GroupPolicy(raw.Group.Policy)}
		for j, member := range raw.Group.Steps {
			converted, err := toStep(member)
			if err != nil {
				return domain.Step{}, fmt.Errorf("group member %d: %w", j, err)
			}
			group.Steps = append(group.Steps, converted)
		}
		step.Group = group
	}
	return step, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
