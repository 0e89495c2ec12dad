package template

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NANATribe/iomt-fhir/errors"
	"github.com/NANATribe/iomt-fhir/expression"
)

const collectionDoc = `{
	"templateType": "CollectionContent",
	"template": [
		{
			"templateType": "JsonPathContent",
			"template": {
				"typeName": "heartrate",
				"typeMatchExpression": "$.heartRate",
				"deviceIdExpression": "$.deviceId",
				"timestampExpression": "$.endDate",
				"values": [
					{"valueName": "hr", "valueExpression": "$.heartRate", "required": true}
				]
			}
		},
		{
			"templateType": "CalculatedContent",
			"template": {
				"typeName": "bloodpressure",
				"typeMatchExpression": {"value": "$.systolic", "language": "JsonPath"},
				"deviceIdExpression": "$.deviceId",
				"timestampExpression": {"value": "$.endDate"},
				"values": [
					{"valueName": "systolic", "valueExpression": {"value": "$.systolic"}, "required": true},
					{"valueName": "diastolic", "valueExpression": "$.diastolic", "required": false}
				]
			}
		}
	]
}`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(collectionDoc), MatchFirst)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	hr := c.Templates()[0]
	assert.Equal(t, "heartrate", hr.TypeName)
	require.Len(t, hr.Values, 1)

	bp := c.Templates()[1]
	assert.Equal(t, "bloodpressure", bp.TypeName)
	assert.Equal(t, expression.LanguageJSONPath, bp.TypeMatch.Language())
	require.Len(t, bp.Values, 2)
	assert.True(t, bp.Values[0].Required)
	assert.False(t, bp.Values[1].Required)
}

func TestParse_BuiltTemplatesExtract(t *testing.T) {
	c, err := Parse([]byte(collectionDoc), MatchFirst)
	require.NoError(t, err)

	doc := mustDoc(t, `{"systolic": 120, "diastolic": 80, "deviceId": "dev-9", "endDate": "2024-03-15T10:30:00Z"}`)
	matched, errs := c.Match(doc)
	assert.Empty(t, errs)
	require.Len(t, matched, 1)
	assert.Equal(t, "bloodpressure", matched[0].TypeName)

	res, err := matched[0].Extract(doc)
	require.NoError(t, err)
	assert.Equal(t, "dev-9", res.DeviceID)
	require.Len(t, res.Values, 2)
	assert.Equal(t, []any{float64(120)}, res.Values[0].Tokens)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{{`},
		{"wrong root type", `{"templateType": "JsonPathContent", "template": []}`},
		{"empty collection", `{"templateType": "CollectionContent", "template": []}`},
		{"entry without template", `{"templateType": "CollectionContent", "template": [{"templateType": "JsonPathContent"}]}`},
		{"unknown entry type", `{"templateType": "CollectionContent", "template": [{"templateType": "IotJsonPathContent", "template": {"typeName": "x", "typeMatchExpression": "$.x", "timestampExpression": "$.t", "values": [{"valueName": "v", "valueExpression": "$.v"}]}}]}`},
		{"missing type name", `{"templateType": "CollectionContent", "template": [{"templateType": "JsonPathContent", "template": {"typeMatchExpression": "$.x", "timestampExpression": "$.t", "values": [{"valueName": "v", "valueExpression": "$.v"}]}}]}`},
		{"no values", `{"templateType": "CollectionContent", "template": [{"templateType": "JsonPathContent", "template": {"typeName": "x", "typeMatchExpression": "$.x", "timestampExpression": "$.t", "values": []}}]}`},
		{"bad expression syntax", `{"templateType": "CollectionContent", "template": [{"templateType": "JsonPathContent", "template": {"typeName": "x", "typeMatchExpression": "$.x[", "timestampExpression": "$.t", "values": [{"valueName": "v", "valueExpression": "$.v"}]}}]}`},
		{"unknown language", `{"templateType": "CollectionContent", "template": [{"templateType": "CalculatedContent", "template": {"typeName": "x", "typeMatchExpression": {"value": "$.x", "language": "XPath"}, "timestampExpression": "$.t", "values": [{"valueName": "v", "valueExpression": "$.v"}]}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), MatchFirst)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrTemplateInvalid), "got: %v", err)
			assert.True(t, errors.IsFatal(err))
		})
	}
}
