package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
)

// PatternRegistry loads pattern definitions from a loader, validates them,
// and serves lookups to the orchestrator. Lookups hit an in-memory snapshot;
// the loader is only touched by Load and Reload.
type PatternRegistry struct {
	loader ports.PatternLoader
	logger *slog.Logger

	mu       sync.RWMutex
	patterns map[string]*domain.PatternSpec
}

// NewPatternRegistry creates an empty registry over the loader.
// Call Load before serving lookups.
func NewPatternRegistry(loader ports.PatternLoader, logger *slog.Logger) *PatternRegistry {
	return &PatternRegistry{
		loader:   loader,
		logger:   logger,
		patterns: make(map[string]*domain.PatternSpec),
	}
}

// Load reads and validates every pattern from the loader and replaces the
// served snapshot atomically. A single invalid pattern fails the whole load
// and leaves the previous snapshot serving.
func (r *PatternRegistry) Load(ctx context.Context) error {
	specs, err := r.loader.ListPatterns(ctx)
	if err != nil {
		return fmt.Errorf("listing patterns: %w", err)
	}

	next := make(map[string]*domain.PatternSpec, len(specs))
	for _, spec := range specs {
		if err := ValidatePattern(spec); err != nil {
			return fmt.Errorf("pattern %s: %w", spec.ID, err)
		}
		if _, exists := next[spec.ID]; exists {
			return fmt.Errorf("duplicate pattern id %s", spec.ID)
		}
		next[spec.ID] = spec
	}

	r.mu.Lock()
	r.patterns = next
	r.mu.Unlock()

	r.logger.Info("patterns loaded", "count", len(next))
	return nil
}

// Get returns a pattern by id. Returns *domain.PatternNotFoundError when the
// id is unknown.
func (r *PatternRegistry) Get(id string) (*domain.PatternSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.patterns[id]
	if !ok {
		return nil, &domain.PatternNotFoundError{ID: id}
	}
	return spec, nil
}

// List returns the loaded patterns sorted by id.
func (r *PatternRegistry) List() []*domain.PatternSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]*domain.PatternSpec, 0, len(r.patterns))
	for _, spec := range r.patterns {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// WatchAndReload reloads the registry whenever the loader signals a change,
// until ctx is cancelled. Loaders without Watch support are a no-op. A
// failed reload keeps serving the previous snapshot.
func (r *PatternRegistry) WatchAndReload(ctx context.Context) error {
	watchable, ok := r.loader.(ports.Watchable)
	if !ok {
		return nil
	}
	events, err := watchable.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching pattern source: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if err := r.Load(ctx); err != nil {
					r.logger.Error("pattern reload failed, keeping previous snapshot", "err", err)
				}
			}
		}
	}()
	return nil
}
