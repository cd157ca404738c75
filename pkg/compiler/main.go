// Package compiler turns Scheme data into the core expression tree. It
// resolves lexical scope and expands syntax-rules macros hygienically.
//
// Pipeline: syntax.Datum → Builder (scopes, macro expansion) → Form / Expr
package compiler

import "github.com/npillmayer/schuko/tracing"

// tracer traces with key 'goscheme.compiler'.
func tracer() tracing.Trace {
	return tracing.Select("goscheme.compiler")
}
