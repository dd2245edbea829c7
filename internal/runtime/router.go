package runtime

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
	"github.com/quantfold/tessera/pkg/registry"
)

// Route is a resolved dispatch decision for one capability call.
type Route struct {
	Agent    ports.Agent
	Method   string
	Manifest domain.CapabilityManifest
	Migrated bool
}

// CapabilityRouter resolves capability calls to agents, honoring ownership
// overrides for gradual migrations.
type CapabilityRouter struct {
	registry  *registry.Registry
	ownership ports.OwnershipStore
}

// NewCapabilityRouter creates a router over the agent registry. The ownership
// store may be nil, in which case default ownership always applies.
func NewCapabilityRouter(reg *registry.Registry, ownership ports.OwnershipStore) *CapabilityRouter {
	return &CapabilityRouter{registry: reg, ownership: ownership}
}

// Route resolves the providing agent for a capability. With an enabled
// override, the request ID is hashed into a stable 0-99 bucket; requests
// below the rollout percentage go to the target agent, the rest stay with
// the owner. The same request always lands in the same bucket, so a request
// never flaps between agents as long as the override is unchanged.
func (r *CapabilityRouter) Route(ctx context.Context, capability, requestID string) (Route, error) {
	owner, err := r.registry.Owner(capability)
	if err != nil {
		return Route{}, err
	}

	override, err := r.lookupOverride(ctx, capability)
	if err != nil {
		return Route{}, fmt.Errorf("looking up ownership override for %q: %w", capability, err)
	}
	if override == nil || !override.Enabled || override.TargetAgent == owner.Agent.Name() {
		return Route{Agent: owner.Agent, Method: owner.Method, Manifest: owner.Manifest}, nil
	}

	if !inRollout(capability, requestID, override.RolloutPercentage) {
		return Route{Agent: owner.Agent, Method: owner.Method, Manifest: owner.Manifest}, nil
	}

	binding, err := r.registry.BindingFor(override.TargetAgent, capability)
	if err != nil {
		return Route{}, fmt.Errorf("ownership override for %q targets %q: %w", capability, override.TargetAgent, err)
	}
	return Route{Agent: binding.Agent, Method: binding.Method, Manifest: binding.Manifest, Migrated: true}, nil
}

func (r *CapabilityRouter) lookupOverride(ctx context.Context, capability string) (*domain.OwnershipOverride, error) {
	if r.ownership == nil {
		return nil, nil
	}
	return r.ownership.Lookup(ctx, capability)
}

// inRollout buckets (capability, requestID) into 0-99 and admits buckets
// below pct. The hash input couples capability and request so that one
// request can be migrated for one capability and not another.
func inRollout(capability, requestID string, pct int) bool {
	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	bucket := xxhash.Sum64String(capability+"\x00"+requestID) % 100
	return bucket < uint64(pct)
}
