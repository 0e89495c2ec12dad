package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/expression"
)

// Template document type tags. The root document is always a collection;
// each entry dispatches on its own tag.
const (
	TypeCollectionContent = "CollectionContent"
	TypeJSONPathContent   = "JsonPathContent"
	TypeCalculatedContent = "CalculatedContent"
)

// collectionSchema is the structural contract a template document must meet
// before any expression is compiled. Expression fields are left untyped here
// because CalculatedContent allows both bare strings and {value, language}
// objects.
const collectionSchema = `{
	"type": "object",
	"required": ["templateType", "template"],
	"properties": {
		"templateType": {"enum": ["CollectionContent"]},
		"template": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["templateType", "template"],
				"properties": {
					"templateType": {"enum": ["JsonPathContent", "CalculatedContent"]},
					"template": {
						"type": "object",
						"required": ["typeName", "typeMatchExpression", "timestampExpression", "values"],
						"properties": {
							"typeName": {"type": "string", "minLength": 1},
							"values": {
								"type": "array",
								"minItems": 1,
								"items": {
									"type": "object",
									"required": ["valueName", "valueExpression"]
								}
							}
						}
					}
				}
			}
		}
	}
}`

var compiledSchema *gojsonschema.Schema

func init() {
	var err error
	compiledSchema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(collectionSchema))
	if err != nil {
		panic(fmt.Sprintf("template: collection schema does not compile: %v", err))
	}
}

type collectionDocument struct {
	TemplateType string          `json:"templateType"`
	Template     []templateEntry `json:"template"`
}

type templateEntry struct {
	TemplateType string          `json:"templateType"`
	Template     json.RawMessage `json:"template"`
}

// expressionSpec accepts both authoring spellings of an expression: a bare
// JSONPath string, or an object carrying an explicit language tag.
type expressionSpec struct {
	Value    string
	Language string
}

func (s *expressionSpec) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Value)
	}
	var obj struct {
		Value    string `json:"value"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Value = obj.Value
	s.Language = obj.Language
	return nil
}

type calculatedContent struct {
	TypeName                string            `json:"typeName"`
	TypeMatchExpression     expressionSpec    `json:"typeMatchExpression"`
	DeviceIDExpression      expressionSpec    `json:"deviceIdExpression"`
	PatientIDExpression     expressionSpec    `json:"patientIdExpression"`
	EncounterIDExpression   expressionSpec    `json:"encounterIdExpression"`
	CorrelationIDExpression expressionSpec    `json:"correlationIdExpression"`
	TimestampExpression     expressionSpec    `json:"timestampExpression"`
	Values                  []calculatedValue `json:"values"`
}

type calculatedValue struct {
	ValueName       string         `json:"valueName"`
	ValueExpression expressionSpec `json:"valueExpression"`
	Required        bool           `json:"required"`
}

// Parse validates a template document against the collection schema and
// builds the ordered template collection it declares. The whole document is
// rejected on the first structural or compile failure; a half-built
// collection never reaches the pipeline.
func Parse(data []byte, mode MatchMode) (*Collection, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrTemplateInvalid, err),
			"TemplateFactory", "Parse", "validate template document")
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			details = append(details, re.String())
		}
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrTemplateInvalid, strings.Join(details, "; ")),
			"TemplateFactory", "Parse", "validate template document")
	}

	var doc collectionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrTemplateInvalid, err),
			"TemplateFactory", "Parse", "decode template document")
	}

	templates := make([]*ContentTemplate, 0, len(doc.Template))
	for i, entry := range doc.Template {
		ct, err := parseEntry(entry)
		if err != nil {
			return nil, errors.WrapFatal(
				fmt.Errorf("template entry %d (%s): %w", i, entry.TemplateType, err),
				"TemplateFactory", "Parse", "build template")
		}
		templates = append(templates, ct)
	}
	return NewCollection(mode, templates...)
}

func parseEntry(entry templateEntry) (*ContentTemplate, error) {
	switch entry.TemplateType {
	case TypeJSONPathContent:
		var src JSONPathContent
		if err := json.Unmarshal(entry.Template, &src); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrTemplateInvalid, err)
		}
		return Adapt(src)
	case TypeCalculatedContent:
		var src calculatedContent
		if err := json.Unmarshal(entry.Template, &src); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrTemplateInvalid, err)
		}
		return buildCalculated(src)
	default:
		return nil, fmt.Errorf("%w: unknown template type %q", errors.ErrTemplateInvalid, entry.TemplateType)
	}
}

func buildCalculated(src calculatedContent) (*ContentTemplate, error) {
	ct := &ContentTemplate{TypeName: src.TypeName}

	var err error
	if ct.TypeMatch, err = compileSpec("typeMatchExpression", src.TypeMatchExpression); err != nil {
		return nil, err
	}
	if ct.DeviceID, err = compileSpec("deviceIdExpression", src.DeviceIDExpression); err != nil {
		return nil, err
	}
	if ct.PatientID, err = compileSpec("patientIdExpression", src.PatientIDExpression); err != nil {
		return nil, err
	}
	if ct.EncounterID, err = compileSpec("encounterIdExpression", src.EncounterIDExpression); err != nil {
		return nil, err
	}
	if ct.CorrelationID, err = compileSpec("correlationIdExpression", src.CorrelationIDExpression); err != nil {
		return nil, err
	}
	if ct.Timestamp, err = compileSpec("timestampExpression", src.TimestampExpression); err != nil {
		return nil, err
	}

	ct.Values = make([]ValueDefinition, 0, len(src.Values))
	for _, v := range src.Values {
		expr, err := compileSpec("value "+v.ValueName, v.ValueExpression)
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

func compileSpec(field string, spec expressionSpec) (*expression.Expression, error) {
	if isBlank(spec.Value) {
		return nil, nil
	}
	lang, err := expression.ParseLanguage(spec.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %w", errors.ErrTemplateInvalid, field, err)
	}
	expr, err := expression.New(spec.Value, lang)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %w", errors.ErrTemplateInvalid, field, err)
	}
	return expr, nil
}
