package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantfold/tessera"
	"github.com/quantfold/tessera/internal/logging"
	"github.com/quantfold/tessera/internal/runtime"
	"github.com/quantfold/tessera/pkg/schema"
)

// ValidatePatterns loads every pattern in the repository and reports all
// static validation failures, not just the first.
func ValidatePatterns(repoPath string) error {
	engine, err := tessera.New(repoPath, tessera.WithLogger(logging.NewNop()))
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	specs, err := engine.Loader().ListPatterns(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load patterns: %w", err)
	}
	if len(specs) == 0 {
		return fmt.Errorf("no patterns found in %s", repoPath)
	}

	failed := 0
	for _, spec := range specs {
		if err := runtime.ValidatePattern(spec); err != nil {
			failed++
			fmt.Printf("✗ %s\n", spec.ID)
			var agg *schema.AggregateError
			if errors.As(err, &agg) {
				for _, detail := range agg.Errors {
					fmt.Printf("    %s\n", detail)
				}
			} else {
				fmt.Printf("    %s\n", err)
			}
			continue
		}
		fmt.Printf("✓ %s (version %d, %d steps)\n", spec.ID, spec.Version, len(spec.Steps))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d patterns invalid", failed, len(specs))
	}
	return nil
}
