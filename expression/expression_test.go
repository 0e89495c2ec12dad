package expression

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NANATribe/iomt-fhir/errors"
)

func parseDoc(t *testing.T, raw string) any {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestNew_CompilesValidExpression(t *testing.T) {
	e, err := New("$.heartRate", LanguageJSONPath)
	require.NoError(t, err)
	assert.Equal(t, "$.heartRate", e.Value())
	assert.Equal(t, LanguageJSONPath, e.Language())
}

func TestNew_RejectsBlank(t *testing.T) {
	for _, value := range []string{"", "   ", "\t\n"} {
		_, err := New(value, LanguageJSONPath)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	}
}

func TestNew_RejectsBadSyntax(t *testing.T) {
	_, err := New("$.[unterminated", LanguageJSONPath, WithLocation(Location{Line: 12, Column: 8}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrExpressionEvaluation)
	assert.Contains(t, err.Error(), "$.[unterminated")
	assert.Contains(t, err.Error(), "line 12")
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		tag     string
		want    Language
		wantErr bool
	}{
		{"", LanguageJSONPath, false},
		{"JsonPath", LanguageJSONPath, false},
		{"jsonpath", LanguageJSONPath, false},
		{"  JSONPath  ", LanguageJSONPath, false},
		{"JmesPath", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseLanguage(tt.tag)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateOne(t *testing.T) {
	ev := NewJSONPathEvaluator()
	doc := parseDoc(t, `{"device":{"id":"dev-42"},"heartRate":72}`)

	token, err := ev.EvaluateOne(doc, MustNew("$.device.id", LanguageJSONPath))
	require.NoError(t, err)
	assert.Equal(t, "dev-42", token)

	token, err = ev.EvaluateOne(doc, MustNew("$.heartRate", LanguageJSONPath))
	require.NoError(t, err)
	assert.Equal(t, float64(72), token)
}

func TestEvaluateOne_NoMatchIsNotAnError(t *testing.T) {
	ev := NewJSONPathEvaluator()
	doc := parseDoc(t, `{"heartRate":72}`)

	token, err := ev.EvaluateOne(doc, MustNew("$.bloodPressure", LanguageJSONPath))
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestEvaluateMany(t *testing.T) {
	ev := NewJSONPathEvaluator()
	doc := parseDoc(t, `{"samples":[{"v":1},{"v":2},{"v":3}]}`)

	tokens, err := ev.EvaluateMany(doc, MustNew("$.samples[*].v", LanguageJSONPath))
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, tokens)
}

func TestEvaluateMany_EmptyForNoMatch(t *testing.T) {
	ev := NewJSONPathEvaluator()
	doc := parseDoc(t, `{"samples":[]}`)

	tokens, err := ev.EvaluateMany(doc, MustNew("$.samples[*].v", LanguageJSONPath))
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestEvaluateMany_Deterministic(t *testing.T) {
	ev := NewJSONPathEvaluator()
	doc := parseDoc(t, `{"samples":[{"v":9},{"v":8}]}`)
	expr := MustNew("$.samples[*].v", LanguageJSONPath)

	first, err := ev.EvaluateMany(doc, expr)
	require.NoError(t, err)
	second, err := ev.EvaluateMany(doc, expr)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvaluateMany_NilExpression(t *testing.T) {
	ev := NewJSONPathEvaluator()
	_, err := ev.EvaluateMany(map[string]any{}, nil)
	require.Error(t, err)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name  string
		token any
		want  bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"false", false, false},
		{"true", true, true},
		{"non-empty string", "heartrate", true},
		{"zero number", float64(0), true},
		{"number", float64(1), true},
		{"object", map[string]any{}, true},
		{"array", []any{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.token))
		})
	}
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		name  string
		token any
		want  string
		ok    bool
	}{
		{"string", "dev-1", "dev-1", true},
		{"float", float64(42), "42", true},
		{"fractional float", 36.6, "36.6", true},
		{"bool", true, "true", true},
		{"json number", json.Number("117"), "117", true},
		{"nil", nil, "", false},
		{"object", map[string]any{"a": 1}, "", false},
		{"array", []any{1}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StringValue(tt.token)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
