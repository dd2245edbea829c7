/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing tessera patterns.

It allows developers to define multi-step orchestration patterns using a type-safe, fluent builder
pattern instead of relying on external markdown or YAML files. This is particularly useful for dynamic
pattern generation, unit testing, and leveraging IDE autocompletion/type-checking.

Example usage:

	package main

	import (
		"github.com/quantfold/tessera/pkg/dsl"
		"github.com/quantfold/tessera/pkg/schema"
	)

	func main() {
		b := dsl.New("portfolio-overview").
			Description("Holdings with optional benchmark comparison").
			Input("portfolio_id", schema.String()).
			Input("benchmark", schema.Optional(schema.String()))

		b.Call("portfolio.holdings").
			Arg("id", "{{inputs.portfolio_id}}").
			As("holdings")

		b.Call("analytics.compare").
			Arg("against", "{{inputs.benchmark}}").
			When("{{?inputs.benchmark}} != null").
			As("comparison")

		b.Output("holdings", "comparison")

		// The resulting loader can be passed to tessera.New(...)
		loader, err := b.Build()
		_ = loader
		_ = err
	}
*/
package dsl
