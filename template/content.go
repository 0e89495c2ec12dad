package template

import (
	"fmt"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/expression"
	"github.com/NANATribe/iomt-fhir/pkg/timestamp"
)

// ValueDefinition is one named extraction rule within a template. Required
// definitions gate each expanded occurrence; optional definitions simply
// contribute nothing when they match no tokens.
type ValueDefinition struct {
	Name       string
	Expression *expression.Expression
	Required   bool
}

// ContentTemplate is the canonical template shape every authoring format is
// adapted onto. Id expressions are optional; the timestamp expression is not,
// a measurement without a timestamp cannot be ordered downstream.
type ContentTemplate struct {
	TypeName      string
	TypeMatch     *expression.Expression
	DeviceID      *expression.Expression
	PatientID     *expression.Expression
	EncounterID   *expression.Expression
	CorrelationID *expression.Expression
	Timestamp     *expression.Expression
	Values        []ValueDefinition

	eval expression.Evaluator
}

// ExtractedValue pairs a value definition with every token its expression
// matched in a document. The full token sequence is kept so the caller can
// expand multi-valued results positionally.
type ExtractedValue struct {
	Definition ValueDefinition
	Tokens     []any
}

// ExtractionResult holds everything a single template pulled from a single
// document. Id fields are empty when their expression is absent or matched
// nothing.
type ExtractionResult struct {
	DeviceID      string
	PatientID     string
	EncounterID   string
	CorrelationID string
	Timestamp     int64
	Values        []ExtractedValue
}

var defaultEvaluator = expression.NewJSONPathEvaluator()

// SetEvaluator replaces the evaluator used by Matches and Extract. Nil
// restores the default JSONPath evaluator.
func (t *ContentTemplate) SetEvaluator(e expression.Evaluator) {
	t.eval = e
}

func (t *ContentTemplate) evaluator() expression.Evaluator {
	if t.eval != nil {
		return t.eval
	}
	return defaultEvaluator
}

// Validate checks the structural invariants a template must hold before it
// can be used for extraction.
func (t *ContentTemplate) Validate() error {
	if t.TypeName == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: typeName cannot be empty", errors.ErrTemplateInvalid),
			"ContentTemplate", "Validate", "check type name")
	}
	if t.TypeMatch == nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: template %q has no type match expression", errors.ErrTemplateInvalid, t.TypeName),
			"ContentTemplate", "Validate", "check type match expression")
	}
	if t.Timestamp == nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: template %q has no timestamp expression", errors.ErrTemplateInvalid, t.TypeName),
			"ContentTemplate", "Validate", "check timestamp expression")
	}
	if len(t.Values) == 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: template %q declares no values", errors.ErrTemplateInvalid, t.TypeName),
			"ContentTemplate", "Validate", "check value definitions")
	}
	seen := make(map[string]struct{}, len(t.Values))
	for _, v := range t.Values {
		if v.Name == "" {
			return errors.WrapFatal(
				fmt.Errorf("%w: template %q has a value with no name", errors.ErrTemplateInvalid, t.TypeName),
				"ContentTemplate", "Validate", "check value names")
		}
		if v.Expression == nil {
			return errors.WrapFatal(
				fmt.Errorf("%w: template %q value %q has no expression", errors.ErrTemplateInvalid, t.TypeName, v.Name),
				"ContentTemplate", "Validate", "check value expressions")
		}
		if _, dup := seen[v.Name]; dup {
			return errors.WrapFatal(
				fmt.Errorf("%w: template %q declares value %q twice", errors.ErrTemplateInvalid, t.TypeName, v.Name),
				"ContentTemplate", "Validate", "check value name uniqueness")
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}

// Matches reports whether this template applies to the document. The type
// match expression is evaluated and its first token tested for truthiness;
// a query that matches nothing is a clean non-match, an evaluation failure
// is returned so the caller can count it.
func (t *ContentTemplate) Matches(document any) (bool, error) {
	token, err := t.evaluator().EvaluateOne(document, t.TypeMatch)
	if err != nil {
		return false, err
	}
	return expression.Truthy(token), nil
}

// Extract evaluates every declared expression against the document. Optional
// id expressions that match nothing leave the id empty; a value definition's
// full token sequence is captured whether it holds zero, one, or many
// tokens. Extraction fails only when the timestamp cannot be resolved or an
// expression evaluation itself fails.
func (t *ContentTemplate) Extract(document any) (*ExtractionResult, error) {
	result := &ExtractionResult{}

	var err error
	if result.DeviceID, err = t.extractID(document, t.DeviceID); err != nil {
		return nil, err
	}
	if result.PatientID, err = t.extractID(document, t.PatientID); err != nil {
		return nil, err
	}
	if result.EncounterID, err = t.extractID(document, t.EncounterID); err != nil {
		return nil, err
	}
	if result.CorrelationID, err = t.extractID(document, t.CorrelationID); err != nil {
		return nil, err
	}

	token, err := t.evaluator().EvaluateOne(document, t.Timestamp)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: timestamp expression %q matched nothing", errors.ErrRequiredFieldMissing, t.Timestamp.Value()),
			"ContentTemplate", "Extract", "resolve timestamp")
	}
	result.Timestamp = timestamp.Parse(token)
	if timestamp.IsZero(result.Timestamp) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: timestamp token %v is not a recognizable instant", errors.ErrRequiredFieldMissing, token),
			"ContentTemplate", "Extract", "parse timestamp")
	}

	result.Values = make([]ExtractedValue, 0, len(t.Values))
	for _, def := range t.Values {
		tokens, err := t.evaluator().EvaluateMany(document, def.Expression)
		if err != nil {
			return nil, err
		}
		result.Values = append(result.Values, ExtractedValue{Definition: def, Tokens: tokens})
	}
	return result, nil
}

func (t *ContentTemplate) extractID(document any, expr *expression.Expression) (string, error) {
	if expr == nil {
		return "", nil
	}
	token, err := t.evaluator().EvaluateOne(document, expr)
	if err != nil {
		return "", err
	}
	if token == nil {
		return "", nil
	}
	s, _ := expression.StringValue(token)
	return s, nil
}
