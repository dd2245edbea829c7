package domain

import "time"

// RequestContext carries the identity of one execution request.
// It is created per request and discarded with the response.
type RequestContext struct {
	// RequestID keys routing decisions: for a fixed RequestID the router
	// resolves a capability to the same agent for the life of the request.
	RequestID string `json:"request_id"`

	Principal   string   `json:"principal,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	// DataSnapshotID pins every capability call in this request to one
	// point-in-time market-data snapshot. Cache entries are never shared
	// across differing snapshot ids.
	DataSnapshotID string `json:"data_snapshot_id"`

	TraceID string `json:"trace_id,omitempty"`
}

// CapabilityManifest is one entry of the manifest an agent publishes at
// registration: the capability name, the agent method implementing it, and
// the execution properties the runtime is allowed to rely on.
type CapabilityManifest struct {
	Capability string `json:"capability" yaml:"capability"`
	Method     string `json:"method" yaml:"method"`

	// Idempotent permits step-level retries. Mutating capabilities must
	// leave this false; the orchestrator never retries them.
	Idempotent bool `json:"idempotent,omitempty" yaml:"idempotent,omitempty"`

	// Cacheable opts the capability into the cross-request TTL cache tier.
	Cacheable bool          `json:"cacheable,omitempty" yaml:"cacheable,omitempty"`
	CacheTTL  time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// CapabilityCall is the envelope handed to an agent method.
type CapabilityCall struct {
	Request RequestContext `json:"request"`
	Args    map[string]any `json:"args"`
}

// OwnershipOverride is one entry of the externally editable capability
// ownership map. When enabled, the router splits traffic between the
// static owner and TargetAgent according to RolloutPercentage.
type OwnershipOverride struct {
	TargetAgent       string `json:"target_agent" yaml:"target_agent"`
	RolloutPercentage int    `json:"rollout_percentage" yaml:"rollout_percentage"`
	Enabled           bool   `json:"enabled" yaml:"enabled"`
}
