// Package cli implements the terminal workflows behind the tessera
// command: local pattern runs against stub agents and static validation.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/quantfold/tessera"
	"github.com/quantfold/tessera/internal/logging"
	"github.com/quantfold/tessera/internal/presentation/tui"
	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
)

// stubAgent serves every capability the loaded patterns reference by
// echoing the resolved arguments. It lets pattern authors preview data
// flow, conditions, and trace structure without real providers.
type stubAgent struct {
	manifests []domain.CapabilityManifest
}

func (s *stubAgent) Name() string { return "stub" }

func (s *stubAgent) Manifests() []domain.CapabilityManifest { return s.manifests }

func (s *stubAgent) Invoke(_ context.Context, method string, call domain.CapabilityCall) (any, error) {
	return map[string]any{
		"capability": method,
		"args":       call.Args,
	}, nil
}

// newStubAgent collects every capability referenced by the given specs,
// compensations included.
func newStubAgent(specs []*domain.PatternSpec) *stubAgent {
	seen := map[string]bool{}
	var manifests []domain.CapabilityManifest

	var collect func(steps []domain.Step)
	collect = func(steps []domain.Step) {
		for _, step := range steps {
			if step.IsGroup() {
				collect(step.Group.Steps)
				continue
			}
			for _, capability := range []string{step.Capability, step.Compensate} {
				if capability == "" || seen[capability] {
					continue
				}
				seen[capability] = true
				manifests = append(manifests, domain.CapabilityManifest{
					Capability: capability,
					Idempotent: true,
				})
			}
		}
	}
	for _, spec := range specs {
		collect(spec.Steps)
	}
	return &stubAgent{manifests: manifests}
}

var _ ports.Agent = (*stubAgent)(nil)

// RunPattern executes one pattern from the repository against stub agents
// and prints the trace. With jsonMode the raw result is written as JSON
// instead of rendered markdown.
func RunPattern(repoPath, patternID, inputsJSON, snapshotID string, jsonMode bool) error {
	inputs := map[string]any{}
	if inputsJSON != "" {
		if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
			return fmt.Errorf("invalid --inputs JSON: %w", err)
		}
	}

	engine, err := tessera.New(repoPath, tessera.WithLogger(logging.NewNop()))
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	ctx := context.Background()
	if err := engine.Init(ctx); err != nil {
		return fmt.Errorf("failed to load patterns: %w", err)
	}

	if err := engine.RegisterAgent(newStubAgent(engine.Patterns())); err != nil {
		return err
	}

	req := domain.RequestContext{DataSnapshotID: snapshotID}
	result, runErr := engine.Run(ctx, patternID, inputs, req)
	if result == nil {
		return runErr
	}

	if jsonMode {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		payload := map[string]any{"outputs": result.Outputs, "trace": result.Trace}
		if runErr != nil {
			payload["error"] = runErr.Error()
		}
		if err := enc.Encode(payload); err != nil {
			return err
		}
		return runErr
	}

	render := tui.NewRenderer()
	out, err := render(tui.TraceMarkdown(result, runErr))
	if err != nil {
		// Fall back to plain markdown when the terminal renderer fails.
		out = tui.TraceMarkdown(result, runErr)
	}
	fmt.Print(out)
	return runErr
}
