// Package schema provides a type-safe validation system for pattern inputs.
//
// It defines a simple type system with built-in types (string, int, float, bool)
// and support for slices, maps, optional markers, and custom validators.
// Schemas map field names to types, enabling runtime validation of a pattern's
// declared inputs before any step executes.
//
// Basic usage:
//
//	s := schema.Schema{
//	    "portfolio_id": schema.String(),
//	    "lookback":     schema.Int(),
//	    "benchmark":    schema.Optional(schema.String()),
//	}
//
//	inputs := map[string]any{
//	    "portfolio_id": "pf-123",
//	    "lookback":     30,
//	}
//
//	if err := schema.Validate(s, inputs); err != nil {
//	    // err aggregates every field failure
//	}
//
// Schemas can be created programmatically or parsed from the type strings
// used in pattern frontmatter:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "portfolio_id": "string",
//	    "benchmark":    "?string",
//	    "tags":         "[string]",
//	})
//
// Custom validators can be registered for domain-specific validation:
//
//	snapshotID := schema.Custom("snapshot_id", func(v any) error {
//	    s, ok := v.(string)
//	    if !ok || !strings.HasPrefix(s, "eod-") {
//	        return fmt.Errorf("expected eod-prefixed snapshot id")
//	    }
//	    return nil
//	})
//
// This package is designed to be library-agnostic, with zero external
// dependencies beyond the Go standard library, so it can be embedded in
// larger systems or extracted standalone.
package schema
