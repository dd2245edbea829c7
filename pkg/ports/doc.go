/*
Package ports defines the driven ports (interfaces) for the Tessera runtime.

These interfaces decouple the orchestration core from external implementations,
allowing the runtime to work with various pattern sources, ownership backends,
cache tiers, and trace destinations.

# Key Interfaces

  - Agent: A capability provider the router can dispatch calls to.
  - PatternLoader: Responsible for loading pattern definitions (e.g., from Loam or Memory).
  - OwnershipStore: Source of capability ownership overrides for migration routing.
  - CacheStore: Shared result-cache tier (e.g., Redis) behind the per-request cache.
  - TraceSink: Destination for completed execution traces.
*/
package ports
