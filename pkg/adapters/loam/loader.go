package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"

	"github.com/quantfold/tessera/pkg/domain"
)

// Loader adapts the Loam library to the Tessera PatternLoader interface.
// Pattern documents are markdown files with YAML frontmatter; the markdown
// body becomes the pattern's human description.
type Loader struct {
	Repo *loam.TypedRepository[PatternMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[PatternMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// GetPattern retrieves a pattern from the Loam repository.
func (l *Loader) GetPattern(ctx context.Context, id string) (*domain.PatternSpec, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, &domain.PatternNotFoundError{ID: id}
	}
	return toSpec(trimExtension(doc.ID), doc.Data, doc.Content)
}

// ListPatterns converts every document in the repository. A single malformed
// document fails the whole listing; partially loaded registries hide bugs.
func (l *Loader) ListPatterns(ctx context.Context) ([]*domain.PatternSpec, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	specs := make([]*domain.PatternSpec, 0, len(docs))
	for _, doc := range docs {
		spec, err := toSpec(trimExtension(doc.ID), doc.Data, doc.Content)
		if err != nil {
			return nil, err
		}

		// Collision Detection
		if existingPath, ok := seen[spec.ID]; ok {
			return nil, fmt.Errorf("collision detected: pattern '%s' is defined in both '%s' and '%s'", spec.ID, existingPath, doc.ID)
		}
		seen[spec.ID] = doc.ID
		specs = append(specs, spec)
	}
	return specs, nil
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Collapse bursts: a pending signal is enough to trigger
				// one reload.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
