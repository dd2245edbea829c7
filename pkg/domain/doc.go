// Package domain contains the core types of the Tessera runtime: pattern
// definitions, request contexts, capability manifests, execution traces and
// the error taxonomy shared by every component.
//
// The package is intentionally free of behavior beyond small constructors
// and invariant helpers. All orchestration logic lives in internal/runtime;
// all IO lives in the adapters.
package domain
