package template

import (
	"fmt"
	"strings"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/expression"
)

// JSONPathContent is the simple authoring format: every field is a bare
// JSONPath string and the query language is implied. It exists so template
// authors who never need per-expression language tags can write flat
// documents; Adapt projects it onto the canonical ContentTemplate shape.
type JSONPathContent struct {
	TypeName                string          `json:"typeName"`
	TypeMatchExpression     string          `json:"typeMatchExpression"`
	DeviceIDExpression      string          `json:"deviceIdExpression,omitempty"`
	PatientIDExpression     string          `json:"patientIdExpression,omitempty"`
	EncounterIDExpression   string          `json:"encounterIdExpression,omitempty"`
	CorrelationIDExpression string          `json:"correlationIdExpression,omitempty"`
	TimestampExpression     string          `json:"timestampExpression"`
	Values                  []JSONPathValue `json:"values"`
}

// JSONPathValue is a value definition in the simple format.
type JSONPathValue struct {
	ValueName       string `json:"valueName"`
	ValueExpression string `json:"valueExpression"`
	Required        bool   `json:"required"`
}

// Adapt translates a simple JSONPath template into the canonical shape.
// Blank source fields map to absent expressions, which is distinct from an
// expression that evaluates to nothing. The returned template is validated.
func Adapt(src JSONPathContent) (*ContentTemplate, error) {
	ct := &ContentTemplate{TypeName: src.TypeName}

	var err error
	if ct.TypeMatch, err = adaptExpression(src.TypeName, "typeMatchExpression", src.TypeMatchExpression); err != nil {
		return nil, err
	}
	if ct.DeviceID, err = adaptExpression(src.TypeName, "deviceIdExpression", src.DeviceIDExpression); err != nil {
		return nil, err
	}
	if ct.PatientID, err = adaptExpression(src.TypeName, "patientIdExpression", src.PatientIDExpression); err != nil {
		return nil, err
	}
	if ct.EncounterID, err = adaptExpression(src.TypeName, "encounterIdExpression", src.EncounterIDExpression); err != nil {
		return nil, err
	}
	if ct.CorrelationID, err = adaptExpression(src.TypeName, "correlationIdExpression", src.CorrelationIDExpression); err != nil {
		return nil, err
	}
	if ct.Timestamp, err = adaptExpression(src.TypeName, "timestampExpression", src.TimestampExpression); err != nil {
		return nil, err
	}

	ct.Values = make([]ValueDefinition, 0, len(src.Values))
	for _, v := range src.Values {
		expr, err := adaptExpression(src.TypeName, "value "+v.ValueName, v.ValueExpression)
		if err != nil {
			return nil, err
		}
		ct.Values = append(ct.Values, ValueDefinition{
			Name:       v.ValueName,
			Expression: expr,
			Required:   v.Required,
		})
	}

	if err := ct.Validate(); err != nil {
		return nil, err
	}
	return ct, nil
}

func adaptExpression(typeName, field, value string) (*expression.Expression, error) {
	if isBlank(value) {
		return nil, nil
	}
	expr, err := expression.New(value, expression.LanguageJSONPath)
	if err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: template %q field %s: %w", errors.ErrTemplateInvalid, typeName, field, err),
			"TemplateAdapter", "Adapt", "compile expression")
	}
	return expr, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
