package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
	"github.com/quantfold/tessera/pkg/registry"
)

// ContainerConfig tunes the assembled runtime.
type ContainerConfig struct {
	BreakerThreshold   int
	BreakerCooldown    time.Duration
	DefaultStepTimeout time.Duration
}

// DefaultContainerConfig mirrors the config package defaults for embedders
// that construct a container directly.
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		BreakerThreshold:   5,
		BreakerCooldown:    30 * time.Second,
		DefaultStepTimeout: 30 * time.Second,
	}
}

// Container assembles the orchestration runtime: pattern registry, agent
// registry, router, breakers, and orchestrator. It owns run intake and the
// graceful drain on shutdown.
type Container struct {
	Patterns *PatternRegistry
	Agents   *registry.Registry
	Breakers *BreakerSet

	orchestrator *PatternOrchestrator
	logger       *slog.Logger

	watchCancel context.CancelFunc
	inflight    sync.WaitGroup
	draining    atomic.Bool
}

// NewContainer wires a runtime container. Ownership, cache, sink, and hooks
// may be zero values.
func NewContainer(loader ports.PatternLoader, ownership ports.OwnershipStore, cache ports.CacheStore, sink ports.TraceSink, hooks domain.LifecycleHooks, cfg ContainerConfig, logger *slog.Logger) *Container {
	def := DefaultContainerConfig()
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}
	if cfg.DefaultStepTimeout <= 0 {
		cfg.DefaultStepTimeout = def.DefaultStepTimeout
	}

	patterns := NewPatternRegistry(loader, logger)
	agents := registry.New()
	breakers := NewBreakerSet(cfg.BreakerThreshold, cfg.BreakerCooldown)
	router := NewCapabilityRouter(agents, ownership)
	rt := NewAgentRuntime(router, breakers, logger)

	return &Container{
		Patterns:     patterns,
		Agents:       agents,
		Breakers:     breakers,
		orchestrator: NewPatternOrchestrator(patterns, rt, cache, sink, hooks, cfg.DefaultStepTimeout, logger),
		logger:       logger,
	}
}

// Init loads the pattern registry and starts watching the loader for
// changes when it supports that.
func (c *Container) Init(ctx context.Context) error {
	if err := c.Patterns.Load(ctx); err != nil {
		return err
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	if err := c.Patterns.WatchAndReload(watchCtx); err != nil {
		cancel()
		return err
	}
	c.watchCancel = cancel
	return nil
}

// RegisterAgent adds a capability provider.
func (c *Container) RegisterAgent(agent ports.Agent) error {
	return c.Agents.Register(agent)
}

// ResetBreaker force-closes the circuit breaker for an agent.
func (c *Container) ResetBreaker(agent string) {
	c.Breakers.Reset(agent)
	c.logger.Info("circuit breaker reset", "agent", agent)
}

// Run executes one pattern, tracking it for graceful drain.
func (c *Container) Run(ctx context.Context, patternID string, inputs map[string]any, req domain.RequestContext) (*domain.RunResult, error) {
	if c.draining.Load() {
		return nil, fmt.Errorf("runtime is shutting down")
	}
	c.inflight.Add(1)
	defer c.inflight.Done()

	return c.orchestrator.Run(ctx, patternID, inputs, req)
}

// Shutdown stops intake, then waits for in-flight runs until ctx expires.
func (c *Container) Shutdown(ctx context.Context) error {
	c.draining.Store(true)
	if c.watchCancel != nil {
		c.watchCancel()
	}

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown deadline exceeded with runs still in flight: %w", ctx.Err())
	}
}
