package tessera

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/loam"

	"github.com/quantfold/tessera/internal/runtime"
	loamAdapter "github.com/quantfold/tessera/pkg/adapters/loam"
	"github.com/quantfold/tessera/pkg/adapters/memory"
	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
)

// Version is the library release version.
var Version = "1.0.0"

// Engine is the high-level entry point for the tessera library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	container *runtime.Container
	loader    ports.PatternLoader
	ownership ports.OwnershipStore
	cache     ports.CacheStore
	sink      ports.TraceSink
	hooks     domain.LifecycleHooks
	cfg       runtime.ContainerConfig
	logger    *slog.Logger
	Name      string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLoader injects a custom PatternLoader, bypassing the default Loam initialization.
func WithLoader(l ports.PatternLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithOwnershipStore injects the capability ownership override source.
func WithOwnershipStore(s ports.OwnershipStore) Option {
	return func(e *Engine) {
		e.ownership = s
	}
}

// WithCacheStore injects the shared result-cache tier.
func WithCacheStore(s ports.CacheStore) Option {
	return func(e *Engine) {
		e.cache = s
	}
}

// WithTraceSink registers a sink for completed execution traces.
func WithTraceSink(s ports.TraceSink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRuntimeConfig tunes breaker and timeout behavior. Zero fields keep
// their defaults.
func WithRuntimeConfig(cfg runtime.ContainerConfig) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// New initializes a new tessera Engine.
// By default, it loads pattern documents from a Loam repository at the given
// path. If the WithLoader option is provided, repoPath can be empty and Loam
// is skipped.
func New(repoPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{}

	// Apply Options first to check if a loader is provided
	for _, opt := range opts {
		opt(eng)
	}

	// If no loader was injected, initialize default Loam adapter
	if eng.loader == nil {
		if repoPath == "" {
			return nil, fmt.Errorf("repoPath is required when no custom loader is provided")
		}

		absPath, err := filepath.Abs(repoPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}

		eng.Name = filepath.Base(absPath)

		// Strict mode keeps numeric types consistent across the JSON and
		// Markdown/YAML adapters (json.Number), and ReadOnly avoids Loam's
		// sandbox behavior in dev mode. The engine never writes patterns.
		repo, err := loam.Init(absPath,
			loam.WithStrict(true),
			loam.WithReadOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}

		typedRepo := loam.NewTypedRepository[loamAdapter.PatternMetadata](repo)
		eng.loader = loamAdapter.New(typedRepo)
	} else if repoPath != "" {
		eng.Name = filepath.Base(repoPath)
	}

	if eng.ownership == nil {
		eng.ownership = memory.NewOwnershipStore()
	}
	if eng.cache == nil {
		eng.cache = memory.NewCacheStore()
	}

	// Ensure logger is initialized so the runtime never receives nil.
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("engine", eng.Name)
	}

	eng.container = runtime.NewContainer(
		eng.loader,
		eng.ownership,
		eng.cache,
		eng.sink,
		eng.hooks,
		eng.cfg,
		eng.logger,
	)

	return eng, nil
}

// Init loads every pattern from the loader, validates them, and starts
// hot reload when the loader supports watching. It must be called before
// the first Run.
func (e *Engine) Init(ctx context.Context) error {
	return e.container.Init(ctx)
}

// RegisterAgent registers a capability provider with the engine.
// Agents must be registered before the patterns that call them run.
func (e *Engine) RegisterAgent(agent ports.Agent) error {
	return e.container.RegisterAgent(agent)
}

// Run executes one pattern with the given inputs. The result carries the
// exported outputs and the full execution trace; the trace is present
// even when the run fails partway.
func (e *Engine) Run(ctx context.Context, patternID string, inputs map[string]any, req domain.RequestContext) (*domain.RunResult, error) {
	return e.container.Run(ctx, patternID, inputs, req)
}

// Patterns returns the loaded pattern definitions sorted by ID.
func (e *Engine) Patterns() []*domain.PatternSpec {
	return e.container.Patterns.List()
}

// Pattern returns one loaded pattern definition.
func (e *Engine) Pattern(id string) (*domain.PatternSpec, error) {
	return e.container.Patterns.Get(id)
}

// Ownership returns the current capability ownership overrides.
func (e *Engine) Ownership(ctx context.Context) (map[string]domain.OwnershipOverride, error) {
	return e.ownership.Snapshot(ctx)
}

// SetOwnership writes or removes (nil override) an ownership override.
// Routing picks it up on the next request; in-flight requests keep their
// pinned routes.
func (e *Engine) SetOwnership(ctx context.Context, capability string, override *domain.OwnershipOverride) error {
	return e.ownership.Set(ctx, capability, override)
}

// ResetBreaker force-closes the circuit breaker for an agent.
func (e *Engine) ResetBreaker(agent string) {
	e.container.ResetBreaker(agent)
}

// BreakerStates reports the current breaker state per agent.
func (e *Engine) BreakerStates() map[string]string {
	return e.container.Breakers.States()
}

// Version returns the library release version.
func (e *Engine) Version() string {
	return Version
}

// Loader returns the underlying PatternLoader used by the engine.
func (e *Engine) Loader() ports.PatternLoader {
	return e.loader
}

// Shutdown stops run intake and waits for in-flight runs until ctx expires.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.container.Shutdown(ctx)
}
