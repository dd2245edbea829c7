// Package template implements the data-path expression language used by
// pattern definitions: `{{a.b[0].c}}` references into the execution state
// and a restricted boolean condition grammar over those references.
//
// Resolution is pure data-path lookup. Nothing in this package evaluates a
// template as code; conditions are parsed into a small tagged-variant AST
// (path lookups, literals, comparisons, boolean combinators) interpreted by
// a hand-written evaluator.
package template
