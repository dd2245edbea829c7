package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
)

// RunScope carries the per-request execution state of one pattern run: the
// routing memo that pins each capability to a single agent for the whole
// request, and the per-request result cache tier.
type RunScope struct {
	Request domain.RequestContext
	Cache   *ResultCache

	mu     sync.Mutex
	routes map[string]Route
}

// NewRunScope creates the scope for one pattern run.
func NewRunScope(req domain.RequestContext, shared ports.CacheStore) *RunScope {
	return &RunScope{
		Request: req,
		Cache:   NewResultCache(shared),
		routes:  make(map[string]Route),
	}
}

func (s *RunScope) memoizedRoute(capability string) (Route, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	route, ok := s.routes[capability]
	return route, ok
}

func (s *RunScope) memoizeRoute(capability string, route Route) Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.routes[capability]; ok {
		return existing
	}
	s.routes[capability] = route
	return route
}

// ExecResult is the outcome of one capability execution.
type ExecResult struct {
	Value  any
	Agent  string
	Cached bool
}

// AgentRuntime executes single capability calls: it routes them, guards the
// target agent with its circuit breaker, consults the result cache, and
// finally invokes the agent.
type AgentRuntime struct {
	router   *CapabilityRouter
	breakers *BreakerSet
	logger   *slog.Logger
}

// NewAgentRuntime wires the router and breaker set together.
func NewAgentRuntime(router *CapabilityRouter, breakers *BreakerSet, logger *slog.Logger) *AgentRuntime {
	return &AgentRuntime{router: router, breakers: breakers, logger: logger}
}

// Execute runs one capability call inside a run scope.
//
// Ordering is deliberate: the breaker is consulted before the cache, so a
// capability whose agent is tripped fails fast even when a cached result
// exists. When a half-open trial is admitted but then satisfied from cache,
// the trial is released unsettled so the next real call can probe the agent.
func (rt *AgentRuntime) Execute(ctx context.Context, scope *RunScope, capability string, args map[string]any) (ExecResult, error) {
	route, err := rt.resolve(ctx, scope, capability)
	if err != nil {
		return ExecResult{}, err
	}
	agentName := route.Agent.Name()

	breaker := rt.breakers.For(agentName)
	trial, err := breaker.Allow()
	if err != nil {
		return ExecResult{Agent: agentName}, err
	}

	// Every capability is memoized for the duration of the run; the
	// Cacheable flag only opts it into the cross-request shared tier.
	cacheKey, err := CacheKey(capability, args, scope.Request.DataSnapshotID)
	if err != nil {
		breaker.Cancel(trial)
		return ExecResult{Agent: agentName}, err
	}
	if val, ok := scope.Cache.Get(ctx, cacheKey, route.Manifest.Cacheable); ok {
		breaker.Cancel(trial)
		rt.logger.Debug("capability served from cache",
			"capability", capability, "agent", agentName, "request_id", scope.Request.RequestID)
		return ExecResult{Value: val, Agent: agentName, Cached: true}, nil
	}

	call := domain.CapabilityCall{Request: scope.Request, Args: args}
	value, err := route.Agent.Invoke(ctx, route.Method, call)
	if err != nil {
		breaker.OnFailure(trial)
		rt.logger.Warn("capability invocation failed",
			"capability", capability, "agent", agentName, "method", route.Method, "err", err)
		return ExecResult{Agent: agentName}, &domain.CapabilityExecutionError{
			Capability: capability,
			Agent:      agentName,
			Err:        err,
		}
	}
	breaker.OnSuccess(trial)

	scope.Cache.Put(ctx, cacheKey, value, route.Manifest.CacheTTL, route.Manifest.Cacheable)
	return ExecResult{Value: value, Agent: agentName}, nil
}

// Manifest returns the manifest that routing would use for a capability in
// this scope, resolving and memoizing the route if needed.
func (rt *AgentRuntime) Manifest(ctx context.Context, scope *RunScope, capability string) (domain.CapabilityManifest, error) {
	route, err := rt.resolve(ctx, scope, capability)
	if err != nil {
		return domain.CapabilityManifest{}, err
	}
	return route.Manifest, nil
}

// resolve returns the pinned route for a capability, routing on first use.
// Pinning keeps a request on one agent even if the rollout percentage moves
// mid-run.
func (rt *AgentRuntime) resolve(ctx context.Context, scope *RunScope, capability string) (Route, error) {
	if route, ok := scope.memoizedRoute(capability); ok {
		return route, nil
	}
	route, err := rt.router.Route(ctx, capability, scope.Request.RequestID)
	if err != nil {
		return Route{}, err
	}
	return scope.memoizeRoute(capability, route), nil
}
