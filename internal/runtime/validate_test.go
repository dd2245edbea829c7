package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/schema"
)

func validSpec() *domain.PatternSpec {
	return &domain.PatternSpec{
		ID: "portfolio_overview",
		Steps: []domain.Step{
			{Capability: "positions.list", Args: map[string]any{"portfolio_id": "{{inputs.portfolio_id}}"}, As: "positions"},
			{Group: &domain.Group{Steps: []domain.Step{
				{Capability: "quotes.latest", Args: map[string]any{"rows": "{{positions.rows}}"}, As: "quotes"},
				{Capability: "risk.var", Args: map[string]any{"rows": "{{positions.rows}}"}, As: "risk"},
			}}},
			{Capability: "report.render", Args: map[string]any{
				"quotes": "{{quotes}}", "risk": "{{risk}}",
			}, As: "report", Condition: "{{positions.rows}} != null"},
		},
		Outputs: []string{"report"},
	}
}

func TestValidatePatternAccepts(t *testing.T) {
	assert.NoError(t, ValidatePattern(validSpec()))
}

func TestValidatePatternRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.PatternSpec)
		message string
	}{
		{
			name:    "missing id",
			mutate:  func(s *domain.PatternSpec) { s.ID = "" },
			message: "missing an id",
		},
		{
			name:    "no steps",
			mutate:  func(s *domain.PatternSpec) { s.Steps = nil },
			message: "no steps",
		},
		{
			name:    "capability and group on one step",
			mutate:  func(s *domain.PatternSpec) { s.Steps[1].Capability = "oops" },
			message: "both a capability and a group",
		},
		{
			name:    "neither capability nor group",
			mutate:  func(s *domain.PatternSpec) { s.Steps[0].Capability = "" },
			message: "neither",
		},
		{
			name:    "duplicate binding",
			mutate:  func(s *domain.PatternSpec) { s.Steps[2].As = "positions" },
			message: "already used",
		},
		{
			name:    "reserved binding",
			mutate:  func(s *domain.PatternSpec) { s.Steps[0].As = "inputs" },
			message: "reserved",
		},
		{
			name: "forward reference in args",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[0].Args["peek"] = "{{report.body}}"
			},
			message: "before it is bound",
		},
		{
			name: "group member referencing a sibling",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[1].Group.Steps[1].Args["quotes"] = "{{quotes}}"
			},
			message: "before it is bound",
		},
		{
			name: "condition referencing a later binding",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[0].Condition = "{{report}} != null"
			},
			message: "before it is bound",
		},
		{
			name: "malformed condition",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[2].Condition = "{{positions.rows}} &&"
			},
			message: "invalid condition",
		},
		{
			name: "unknown group policy",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[1].Group.Policy = "best_effort"
			},
			message: "unknown group policy",
		},
		{
			name: "empty group",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[1].Group.Steps = nil
			},
			message: "no members",
		},
		{
			name: "nested group",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[1].Group.Steps = []domain.Step{{Group: &domain.Group{}}}
			},
			message: "cannot nest",
		},
		{
			name: "uncovered output",
			mutate: func(s *domain.PatternSpec) {
				s.Outputs = append(s.Outputs, "summary")
			},
			message: "not produced",
		},
		{
			name: "negative retries",
			mutate: func(s *domain.PatternSpec) {
				s.Steps[0].Retries = -1
			},
			message: "negative retries",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSpec()
			tc.mutate(spec)
			err := ValidatePattern(spec)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.message)
		})
	}
}

func TestValidatePatternAggregates(t *testing.T) {
	spec := validSpec()
	spec.ID = ""
	spec.Outputs = append(spec.Outputs, "summary")

	err := ValidatePattern(spec)
	require.Error(t, err)
	assert.Len(t, schema.ValidationErrors(err), 2)
}
