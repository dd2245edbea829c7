package ports

import (
	"context"

	"github.com/quantfold/tessera/pkg/domain"
)

// PatternLoader defines how the runtime retrieves pattern definitions.
// This allows the storage layer (Loam, FS, Memory) to be decoupled.
type PatternLoader interface {
	// GetPattern retrieves a single pattern definition by ID.
	// Returns *domain.PatternNotFoundError if the pattern does not exist.
	GetPattern(ctx context.Context, id string) (*domain.PatternSpec, error)

	// ListPatterns returns every pattern definition available in the source.
	ListPatterns(ctx context.Context) ([]*domain.PatternSpec, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying source changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
