package testutils

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tessera/pkg/domain"
)

// SetupTestRepo creates a temporary directory and initializes a Loam repository in it.
// It returns the absolute path to the temp dir and the initialized repository.
// It fails the test immediately on error.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	tmpDir := t.TempDir()

	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	repo, err := loam.Init(absPath, opts...)
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// InvokeFunc handles one capability invocation on a FakeAgent.
type InvokeFunc func(call domain.CapabilityCall) (any, error)

// FakeAgent is a scriptable ports.Agent for tests. Methods without a handler
// return a nil result.
type FakeAgent struct {
	AgentName string
	Caps      []domain.CapabilityManifest

	mu       sync.Mutex
	handlers map[string]InvokeFunc
	calls    map[string]int
}

// NewFakeAgent creates a fake agent providing the given capabilities.
func NewFakeAgent(name string, caps ...domain.CapabilityManifest) *FakeAgent {
	return &FakeAgent{
		AgentName: name,
		Caps:      caps,
		handlers:  make(map[string]InvokeFunc),
		calls:     make(map[string]int),
	}
}

// Handle registers a handler for a method name.
func (a *FakeAgent) Handle(method string, fn InvokeFunc) *FakeAgent {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[method] = fn
	return a
}

// Name implements ports.Agent.
func (a *FakeAgent) Name() string { return a.AgentName }

// Manifests implements ports.Agent.
func (a *FakeAgent) Manifests() []domain.CapabilityManifest { return a.Caps }

// Invoke implements ports.Agent. It counts calls per method, honors ctx
// cancellation, and delegates to the registered handler.
func (a *FakeAgent) Invoke(ctx context.Context, method string, call domain.CapabilityCall) (any, error) {
	a.mu.Lock()
	a.calls[method]++
	fn := a.handlers[method]
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, nil
	}
	return fn(call)
}

// Calls returns how many times a method was invoked.
func (a *FakeAgent) Calls(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method]
}
