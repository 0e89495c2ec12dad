package expression

import (
	"fmt"
)

// Evaluator resolves expressions against a parsed document. Implementations
// must be pure: evaluation never mutates the document and repeated calls on
// the same (document, expression) pair yield the same result.
type Evaluator interface {
	// EvaluateOne returns the first matched token, or nil when the query
	// matches nothing.
	EvaluateOne(document any, expr *Expression) (any, error)
	// EvaluateMany returns all matched tokens in document order. A query
	// that matches nothing yields an empty slice, not an error.
	EvaluateMany(document any, expr *Expression) ([]any, error)
}

// JSONPathEvaluator evaluates JSONPath expressions over documents decoded by
// encoding/json (maps, slices, and primitives). The zero value is ready to
// use; the evaluator is stateless and safe for concurrent use.
type JSONPathEvaluator struct{}

// NewJSONPathEvaluator returns a JSONPath evaluator.
func NewJSONPathEvaluator() *JSONPathEvaluator {
	return &JSONPathEvaluator{}
}

// EvaluateOne returns the first token matched by expr, or nil.
func (ev *JSONPathEvaluator) EvaluateOne(document any, expr *Expression) (any, error) {
	tokens, err := ev.EvaluateMany(document, expr)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return tokens[0], nil
}

// EvaluateMany returns every token matched by expr, in document order.
func (ev *JSONPathEvaluator) EvaluateMany(document any, expr *Expression) (tokens []any, err error) {
	if expr == nil {
		return nil, fmt.Errorf("expression cannot be nil")
	}
	if expr.compiled == nil {
		return nil, evaluationError(expr, fmt.Errorf("expression not compiled"))
	}

	// The query engine reports evaluation exceptions (for example filter
	// scripts applied to incompatible types) by panicking; convert those to
	// the classified evaluation error so one bad template cannot take down
	// a worker.
	defer func() {
		if r := recover(); r != nil {
			tokens = nil
			err = evaluationError(expr, fmt.Errorf("evaluation exception: %v", r))
		}
	}()

	results := expr.compiled.Get(document)
	if len(results) == 0 {
		return []any{}, nil
	}
	return results, nil
}
