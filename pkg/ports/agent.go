package ports

import (
	"context"

	"github.com/quantfold/tessera/pkg/domain"
)

// Agent is a capability provider. The runtime never constructs agents; hosts
// register them and the router dispatches calls to whichever agent owns a
// capability at routing time.
type Agent interface {
	// Name returns the stable agent identifier used in ownership overrides
	// and circuit breaker state.
	Name() string

	// Manifests declares the capabilities this agent provides, including the
	// method each capability maps to and its execution properties.
	Manifests() []domain.CapabilityManifest

	// Invoke executes a single capability call. The method is the agent-local
	// name from the manifest, which may differ between agents providing the
	// same capability. Implementations must honor ctx cancellation.
	Invoke(ctx context.Context, method string, call domain.CapabilityCall) (any, error)
}
