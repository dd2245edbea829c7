package runtime

import (
	"fmt"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/schema"
	"github.com/quantfold/tessera/pkg/template"
)

// ValidatePattern statically checks a pattern definition at load time.
// Violations are aggregated so authors see every problem at once.
//
// Checks enforced here, not at run time:
//   - every step is exactly one of capability call or group
//   - bindings are unique across the whole pattern and never "inputs"
//   - argument and condition references only reach bindings that are
//     guaranteed bound at resolution time (group members resolve against
//     the pre-group state, so sibling results are out of reach)
//   - conditions parse under the restricted grammar
//   - declared outputs are produced by some step
func ValidatePattern(spec *domain.PatternSpec) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if spec.ID == "" {
		fail("pattern is missing an id")
	}
	if len(spec.Steps) == 0 {
		fail("pattern %s declares no steps", spec.ID)
	}

	// bound tracks bindings guaranteed present before the step currently
	// being checked resolves its references.
	bound := map[string]bool{domain.InputsBinding: true}
	declared := map[string]bool{}

	declare := func(pos string, name string) {
		if name == "" {
			return
		}
		if name == domain.InputsBinding {
			fail("%s: binding %q is reserved", pos, domain.InputsBinding)
			return
		}
		if declared[name] {
			fail("%s: binding %q is already used by an earlier step", pos, name)
			return
		}
		declared[name] = true
	}

	for i, step := range spec.Steps {
		pos := fmt.Sprintf("step %d", i)

		switch {
		case step.IsGroup() && step.Capability != "":
			fail("%s: declares both a capability and a group", pos)
		case step.IsGroup():
			validateGroup(pos, step.Group, bound, declare, fail)
			// Group results become visible only after the join.
			for _, member := range step.Group.Steps {
				if member.As != "" {
					bound[member.As] = true
				}
			}
			continue
		case step.Capability == "":
			fail("%s: declares neither a capability nor a group", pos)
		}

		validateCall(pos, step, bound, fail)
		declare(pos, step.As)
		if step.As != "" {
			bound[step.As] = true
		}
	}

	for _, output := range spec.Outputs {
		if !bound[output] {
			fail("declared output %q is not produced by any step", output)
		}
	}

	if len(errs) > 0 {
		return &schema.AggregateError{Errors: errs}
	}
	return nil
}

func validateGroup(pos string, group *domain.Group, bound map[string]bool, declare func(string, string), fail func(string, ...any)) {
	switch group.EffectivePolicy() {
	case domain.GroupFailFast, domain.GroupWaitAll:
	default:
		fail("%s: unknown group policy %q", pos, group.Policy)
	}
	if len(group.Steps) == 0 {
		fail("%s: group has no members", pos)
	}
	for j, member := range group.Steps {
		mpos := fmt.Sprintf("%s member %d", pos, j)
		if member.IsGroup() {
			fail("%s: groups cannot nest", mpos)
			continue
		}
		if member.Capability == "" {
			fail("%s: declares no capability", mpos)
			continue
		}
		// Members resolve against the pre-group snapshot, so sibling
		// bindings are not visible here.
		validateCall(mpos, member, bound, fail)
		declare(mpos, member.As)
	}
}

func validateCall(pos string, step domain.Step, bound map[string]bool, fail func(string, ...any)) {
	if step.Retries < 0 {
		fail("%s: negative retries", pos)
	}

	refs, err := template.Refs(step.Args)
	if err != nil {
		fail("%s: %s", pos, err)
	}
	for _, ref := range refs {
		if !bound[ref.Path.Root()] {
			fail("%s: args reference %q before it is bound", pos, ref.Path.String())
		}
	}

	if step.Condition != "" {
		condRefs, err := template.ConditionRefs(step.Condition)
		if err != nil {
			fail("%s: invalid condition: %s", pos, err)
			return
		}
		for _, ref := range condRefs {
			if !bound[ref.Path.Root()] {
				fail("%s: condition references %q before it is bound", pos, ref.Path.String())
			}
		}
	}
}
