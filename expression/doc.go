// Package expression provides compiled path-query expressions and the
// evaluator contract used by content templates.
//
// An Expression pairs a query string with the language it is written in and,
// when the template document provides one, the source location of the query
// for diagnostics. Expressions are compiled at construction, so malformed
// query syntax is rejected when a template is built rather than on the hot
// path, and are immutable afterwards.
//
// The Evaluator resolves an expression against a parsed JSON document to
// zero, one, or many tokens. A query that is syntactically valid but matches
// nothing is not an error: EvaluateOne returns nil and EvaluateMany returns
// an empty slice. Tokens are passed through opaquely; coercion to strings or
// timestamps happens in the callers.
package expression
