package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quantfold/tessera/pkg/domain"
)

// Loader implements ports.PatternLoader using an in-memory map.
// Primarily intended for tests and embedded use.
type Loader struct {
	mu       sync.RWMutex
	patterns map[string]*domain.PatternSpec
}

// NewFromSpecs creates a Loader from pattern definitions.
func NewFromSpecs(specs ...*domain.PatternSpec) (*Loader, error) {
	patterns := make(map[string]*domain.PatternSpec, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("pattern missing ID")
		}
		if _, exists := patterns[spec.ID]; exists {
			return nil, fmt.Errorf("duplicate pattern ID: %s", spec.ID)
		}
		patterns[spec.ID] = spec
	}
	return &Loader{patterns: patterns}, nil
}

// GetPattern retrieves a pattern definition by ID.
func (l *Loader) GetPattern(_ context.Context, id string) (*domain.PatternSpec, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	spec, ok := l.patterns[id]
	if !ok {
		return nil, &domain.PatternNotFoundError{ID: id}
	}
	return spec, nil
}

// ListPatterns returns all pattern definitions in deterministic order.
func (l *Loader) ListPatterns(_ context.Context) ([]*domain.PatternSpec, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.patterns))
	for id := range l.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	specs := make([]*domain.PatternSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, l.patterns[id])
	}
	return specs, nil
}

// Put adds or replaces a pattern definition.
func (l *Loader) Put(spec *domain.PatternSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("pattern missing ID")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.patterns[spec.ID] = spec
	return nil
}
