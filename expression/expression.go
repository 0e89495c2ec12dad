package expression

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/NANATribe/iomt-fhir/errors"
)

// Language identifies the query language an expression is written in.
type Language int

const (
	// LanguageJSONPath is the default path-query language for device
	// content templates.
	LanguageJSONPath Language = iota
)

// String returns the string representation of Language
func (l Language) String() string {
	switch l {
	case LanguageJSONPath:
		return "JsonPath"
	default:
		return "unknown"
	}
}

// ParseLanguage converts a template document language tag to a Language.
// An empty tag means JSONPath, matching the simple template format where
// the language is implicit.
func ParseLanguage(tag string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "jsonpath":
		return LanguageJSONPath, nil
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("unsupported expression language %q", tag),
			"Expression", "ParseLanguage", "resolve language tag")
	}
}

// Location identifies where an expression appeared in its template document.
// A zero Location means the position is unknown.
type Location struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// String formats the location for error messages.
func (l Location) String() string {
	if l.Line == 0 {
		return ""
	}
	return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
}

// Expression is a compiled reference to a path query plus the language it is
// written in. Immutable once constructed and safe for concurrent use.
type Expression struct {
	value    string
	language Language
	location Location
	compiled jp.Expr
}

// Option configures optional Expression fields.
type Option func(*Expression)

// WithLocation attaches the template-document position of the expression for
// diagnostics.
func WithLocation(loc Location) Option {
	return func(e *Expression) {
		e.location = loc
	}
}

// New compiles a path-query expression. It fails if the query is empty,
// whitespace-only, or not valid syntax for the given language; the returned
// error carries the expression text and its source location when available.
func New(value string, language Language, opts ...Option) (*Expression, error) {
	e := &Expression{
		value:    value,
		language: language,
	}
	for _, opt := range opts {
		opt(e)
	}

	if strings.TrimSpace(value) == "" {
		return nil, evaluationError(e, fmt.Errorf("expression cannot be empty"))
	}

	compiled, err := jp.ParseString(value)
	if err != nil {
		return nil, evaluationError(e, err)
	}
	e.compiled = compiled

	return e, nil
}

// MustNew compiles an expression and panics on failure. Test helper.
func MustNew(value string, language Language, opts ...Option) *Expression {
	e, err := New(value, language, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Value returns the raw query string.
func (e *Expression) Value() string {
	return e.value
}

// Language returns the query language the expression is written in.
func (e *Expression) Language() Language {
	return e.language
}

// Location returns the source position of the expression in its template
// document, if known.
func (e *Expression) Location() Location {
	return e.location
}

// evaluationError builds the classified error reported for bad query syntax
// or an evaluation exception, carrying the expression text and location.
func evaluationError(e *Expression, cause error) error {
	detail := fmt.Sprintf("expression %q", e.value)
	if loc := e.location.String(); loc != "" {
		detail = fmt.Sprintf("%s (%s)", detail, loc)
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s: %v", errors.ErrExpressionEvaluation, detail, cause),
		"Expression", "Evaluate", detail)
}
