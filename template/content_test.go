package template

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/expression"
	"github.com/NANATribe/iomt-fhir/pkg/timestamp"
)

func mustDoc(t *testing.T, raw string) any {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func heartrateTemplate(t *testing.T) *ContentTemplate {
	t.Helper()
	ct := &ContentTemplate{
		TypeName:  "heartrate",
		TypeMatch: expression.MustNew("$.heartRate", expression.LanguageJSONPath),
		DeviceID:  expression.MustNew("$.deviceId", expression.LanguageJSONPath),
		Timestamp: expression.MustNew("$.endDate", expression.LanguageJSONPath),
		Values: []ValueDefinition{
			{
				Name:       "hr",
				Expression: expression.MustNew("$.heartRate", expression.LanguageJSONPath),
				Required:   true,
			},
		},
	}
	require.NoError(t, ct.Validate())
	return ct
}

func TestContentTemplate_Validate(t *testing.T) {
	base := heartrateTemplate(t)

	tests := []struct {
		name   string
		mutate func(*ContentTemplate)
	}{
		{"empty type name", func(ct *ContentTemplate) { ct.TypeName = "" }},
		{"missing type match", func(ct *ContentTemplate) { ct.TypeMatch = nil }},
		{"missing timestamp", func(ct *ContentTemplate) { ct.Timestamp = nil }},
		{"no values", func(ct *ContentTemplate) { ct.Values = nil }},
		{"unnamed value", func(ct *ContentTemplate) { ct.Values[0].Name = "" }},
		{"value without expression", func(ct *ContentTemplate) { ct.Values[0].Expression = nil }},
		{"duplicate value name", func(ct *ContentTemplate) {
			ct.Values = append(ct.Values, ct.Values[0])
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := *base
			ct.Values = append([]ValueDefinition(nil), base.Values...)
			tt.mutate(&ct)
			err := ct.Validate()
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrTemplateInvalid))
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestContentTemplate_Matches(t *testing.T) {
	ct := heartrateTemplate(t)

	matching := mustDoc(t, `{"heartRate": 72, "deviceId": "dev-1", "endDate": "2024-03-15T10:30:00Z"}`)
	other := mustDoc(t, `{"systolic": 120, "deviceId": "dev-1", "endDate": "2024-03-15T10:30:00Z"}`)

	ok, err := ct.Matches(matching)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ct.Matches(other)
	require.NoError(t, err)
	assert.False(t, ok)

	// Determinism: repeated evaluation on the same document agrees.
	again, err := ct.Matches(matching)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestContentTemplate_Matches_Truthiness(t *testing.T) {
	ct := heartrateTemplate(t)

	falseToken := mustDoc(t, `{"heartRate": false}`)
	emptyString := mustDoc(t, `{"heartRate": ""}`)
	zero := mustDoc(t, `{"heartRate": 0}`)

	ok, err := ct.Matches(falseToken)
	require.NoError(t, err)
	assert.False(t, ok, "literal false is not a match")

	ok, err = ct.Matches(emptyString)
	require.NoError(t, err)
	assert.False(t, ok, "empty string is not a match")

	ok, err = ct.Matches(zero)
	require.NoError(t, err)
	assert.True(t, ok, "zero is a present value, so it matches")
}

func TestContentTemplate_Extract(t *testing.T) {
	ct := heartrateTemplate(t)
	doc := mustDoc(t, `{"heartRate": 72, "deviceId": "dev-1", "endDate": "2024-03-15T10:30:00Z"}`)

	res, err := ct.Extract(doc)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", res.DeviceID)
	assert.Empty(t, res.PatientID, "absent expression leaves the id empty")
	assert.Equal(t, timestamp.Parse("2024-03-15T10:30:00Z"), res.Timestamp)
	require.Len(t, res.Values, 1)
	assert.Equal(t, "hr", res.Values[0].Definition.Name)
	require.Len(t, res.Values[0].Tokens, 1)
	assert.Equal(t, float64(72), res.Values[0].Tokens[0])
}

func TestContentTemplate_Extract_MultiValued(t *testing.T) {
	ct := &ContentTemplate{
		TypeName:  "heartrate",
		TypeMatch: expression.MustNew("$.samples", expression.LanguageJSONPath),
		Timestamp: expression.MustNew("$.endDate", expression.LanguageJSONPath),
		Values: []ValueDefinition{
			{Name: "hr", Expression: expression.MustNew("$.samples[*]", expression.LanguageJSONPath)},
		},
	}
	require.NoError(t, ct.Validate())

	doc := mustDoc(t, `{"samples": [60, 61, 62], "endDate": "2024-03-15T10:30:00Z"}`)
	res, err := ct.Extract(doc)
	require.NoError(t, err)

	require.Len(t, res.Values, 1)
	assert.Equal(t, []any{float64(60), float64(61), float64(62)}, res.Values[0].Tokens)
}

func TestContentTemplate_Extract_MissingTimestamp(t *testing.T) {
	ct := heartrateTemplate(t)
	doc := mustDoc(t, `{"heartRate": 72, "deviceId": "dev-1"}`)

	_, err := ct.Extract(doc)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRequiredFieldMissing))
	assert.True(t, errors.IsInvalid(err))
}

func TestContentTemplate_Extract_UnparseableTimestamp(t *testing.T) {
	ct := heartrateTemplate(t)
	doc := mustDoc(t, `{"heartRate": 72, "endDate": "not a date"}`)

	_, err := ct.Extract(doc)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRequiredFieldMissing))
}

func TestContentTemplate_Extract_OptionalValueAbsent(t *testing.T) {
	ct := heartrateTemplate(t)
	ct.Values = append(ct.Values, ValueDefinition{
		Name:       "spo2",
		Expression: expression.MustNew("$.spo2", expression.LanguageJSONPath),
	})

	doc := mustDoc(t, `{"heartRate": 72, "endDate": "2024-03-15T10:30:00Z"}`)
	res, err := ct.Extract(doc)
	require.NoError(t, err)

	require.Len(t, res.Values, 2)
	assert.Empty(t, res.Values[1].Tokens, "optional miss is not an error")
}

func TestContentTemplate_Extract_Idempotent(t *testing.T) {
	ct := heartrateTemplate(t)
	doc := mustDoc(t, `{"heartRate": 72, "deviceId": "dev-1", "endDate": "2024-03-15T10:30:00Z"}`)

	first, err := ct.Extract(doc)
	require.NoError(t, err)
	second, err := ct.Extract(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
