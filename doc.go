/*
Package tessera is a pattern orchestration engine and capability routing runtime for multi-agent analytics backends.

It executes declarative multi-step patterns against a registry of agents, routing each capability call
through ownership overrides, circuit breakers, and a two-tier result cache. Every run produces a full
execution trace, making each orchestration decision auditable after the fact.

# Concept

Tessera treats a backend request as a pattern: an ordered list of capability calls with data bindings,
conditions, parallel groups, retries, and compensation. Agents publish capability manifests at
registration; the engine owns routing, fault isolation, caching, and tracing, while your agents own the
actual domain work. This Hexagonal Architecture allows tessera to be embedded behind any surface: HTTP
servers, CLIs, or MCP agent infrastructure.

# Key Features

  - Declarative Patterns: Multi-step workflows loaded from markdown documents, hot reloaded on change.
  - Capability Routing: Per-request-stable routing with ownership overrides and percentage rollouts.
  - Fault Isolation: Per-agent circuit breakers with half-open probing and manual reset.
  - Result Caching: Per-request memoization plus a shared TTL tier, keyed by data snapshot.
  - Execution Traces: Every run returns an ordered step trace, partial on failure.

# Usage

Initialize the engine with a pattern directory (read through Loam) or a custom loader, register agents,
then run patterns.

	package main

	import (
		"context"
		"log"

		"github.com/quantfold/tessera"
		"github.com/quantfold/tessera/pkg/domain"
	)

	func main() {
		// Initialize Engine with default settings (reads from ./patterns)
		eng, err := tessera.New("./patterns")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		if err := eng.Init(ctx); err != nil {
			log.Fatal(err)
		}

		// Register capability providers
		if err := eng.RegisterAgent(newPortfolioAgent()); err != nil {
			log.Fatal(err)
		}

		// Execute a pattern
		result, err := eng.Run(ctx, "portfolio-overview",
			map[string]any{"portfolio_id": "pf-123"},
			domain.RequestContext{DataSnapshotID: "eod-2024-03-15"},
		)
		if err != nil {
			log.Fatal(err)
		}

		log.Println("outputs:", result.Outputs)
		for _, rec := range result.Trace.Records {
			log.Printf("step %d %s -> %s (%dms)", rec.StepIndex, rec.Capability, rec.Status, rec.DurationMS)
		}
	}
*/
package tessera
