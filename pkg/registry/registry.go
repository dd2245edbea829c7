// Package registry tracks registered agents and the capabilities they provide.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
)

// Binding is the resolved (agent, method, manifest) triple for dispatching a
// capability to a specific agent.
type Binding struct {
	Agent    ports.Agent
	Method   string
	Manifest domain.CapabilityManifest
}

// capabilityEntry records every provider of one capability. The first
// registrant is the default owner; later registrants are alternates that
// ownership overrides can route to.
type capabilityEntry struct {
	owner     string
	providers map[string]Binding // agent name -> binding
}

// Registry manages the registered agents and their capability manifests.
type Registry struct {
	mu           sync.RWMutex
	agents       map[string]ports.Agent
	capabilities map[string]*capabilityEntry
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		agents:       make(map[string]ports.Agent),
		capabilities: make(map[string]*capabilityEntry),
	}
}

// Register adds an agent and indexes its capability manifests.
// Registering the same agent name twice is an error, as is an agent declaring
// the same capability twice in its own manifests.
func (r *Registry) Register(agent ports.Agent) error {
	name := agent.Name()
	if name == "" {
		return fmt.Errorf("agent name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("agent %q is already registered", name)
	}

	manifests := agent.Manifests()
	seen := make(map[string]bool, len(manifests))
	for _, m := range manifests {
		if m.Capability == "" {
			return fmt.Errorf("agent %q declares a manifest with an empty capability", name)
		}
		if seen[m.Capability] {
			return fmt.Errorf("agent %q declares capability %q twice", name, m.Capability)
		}
		seen[m.Capability] = true
	}

	r.agents[name] = agent
	for _, m := range manifests {
		method := m.Method
		if method == "" {
			method = m.Capability
		}
		entry, ok := r.capabilities[m.Capability]
		if !ok {
			entry = &capabilityEntry{owner: name, providers: make(map[string]Binding)}
			r.capabilities[m.Capability] = entry
		}
		entry.providers[name] = Binding{Agent: agent, Method: method, Manifest: m}
	}
	return nil
}

// Owner returns the binding for the default owner of a capability.
// Returns *domain.CapabilityNotFoundError if no agent provides it.
func (r *Registry) Owner(capability string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.capabilities[capability]
	if !ok {
		return Binding{}, &domain.CapabilityNotFoundError{Capability: capability}
	}
	return entry.providers[entry.owner], nil
}

// BindingFor returns the binding for a specific agent providing a capability.
// When the agent is registered but has not published the capability, the
// owner's method name is reused against the target agent. This covers
// migrations where the new provider accepts the same method.
func (r *Registry) BindingFor(agentName, capability string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.capabilities[capability]
	if !ok {
		return Binding{}, &domain.CapabilityNotFoundError{Capability: capability}
	}
	if binding, ok := entry.providers[agentName]; ok {
		return binding, nil
	}
	agent, ok := r.agents[agentName]
	if !ok {
		return Binding{}, fmt.Errorf("agent %q is not registered", agentName)
	}
	owner := entry.providers[entry.owner]
	return Binding{Agent: agent, Method: owner.Method, Manifest: owner.Manifest}, nil
}

// Manifest returns the owning manifest for a capability.
func (r *Registry) Manifest(capability string) (domain.CapabilityManifest, error) {
	binding, err := r.Owner(capability)
	if err != nil {
		return domain.CapabilityManifest{}, err
	}
	return binding.Manifest, nil
}

// Has reports whether any registered agent provides the capability.
func (r *Registry) Has(capability string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[capability]
	return ok
}

// Capabilities returns the sorted list of known capability names.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Agents returns the sorted list of registered agent names.
func (r *Registry) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
