package vision

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/flowguard/types"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose around", "Here you go:\n{\"a\":1}\nThanks", `{"a":1}`},
		{"code fence", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`},
		{"brace in string", `{"r":"use } carefully"} trailing {"x":1}`, `{"r":"use } carefully"}`},
		{"escaped quote", `{"r":"say \"}\" now"}`, `{"r":"say \"}\" now"}`},
		{"first of two", `{"a":1} {"b":2}`, `{"a":1}`},
		{"none", "no json here", ""},
		{"unbalanced", `{"a":1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONObject(tt.in))
		})
	}
}

func TestParseVerdict_Pass(t *testing.T) {
	res, err := ParseVerdict(`Result: {"canComplete": true, "confidence": 92, "reasoning": "button is visible"}`)
	require.NoError(t, err)
	assert.Equal(t, types.AnalysisPass, res.Status)
	assert.Equal(t, 92.0, res.Confidence)
	assert.Equal(t, "button is visible", res.Reasoning)
}

func TestParseVerdict_FailDefaults(t *testing.T) {
	res, err := ParseVerdict(`{"canComplete": false}`)
	require.NoError(t, err)
	assert.Equal(t, types.AnalysisFail, res.Status)
	assert.Equal(t, 0.0, res.Confidence)
	assert.NotNil(t, res.Issues)
	assert.Empty(t, res.Issues)
	assert.NotNil(t, res.Suggestions)
	assert.Empty(t, res.Suggestions)
}

func TestParseVerdict_FailCarriesIssues(t *testing.T) {
	res, err := ParseVerdict(`{"canComplete": false, "confidence": 40, "issues": ["no submit"], "suggestions": ["add submit"], "reasoning": "blocked"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"no submit"}, res.Issues)
	assert.Equal(t, []string{"add submit"}, res.Suggestions)
	assert.Equal(t, "blocked", res.Reasoning)
}

func TestParseVerdict_ClampsConfidence(t *testing.T) {
	high, err := ParseVerdict(`{"canComplete": true, "confidence": 150}`)
	require.NoError(t, err)
	assert.Equal(t, 100.0, high.Confidence)

	low, err := ParseVerdict(`{"canComplete": false, "confidence": -10}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, low.Confidence)
}

func TestParseVerdict_ShapeMismatch(t *testing.T) {
	inputs := []string{
		`{"canComplete": "yes", "confidence": 80}`,
		`{"confidence": 80}`,
		`{"canComplete": true, "issues": "none"}`,
		`{"canComplete": true, "confidence": "high"}`,
	}
	for _, in := range inputs {
		_, err := ParseVerdict(in)
		var shape *ShapeError
		assert.Truef(t, errors.As(err, &shape), "want ShapeError for %s, got %v", in, err)
	}
}

func TestParseVerdict_UnparseableIsNotShapeError(t *testing.T) {
	_, err := ParseVerdict("the page looks fine")
	require.ErrorIs(t, err, errNoJSON)

	_, err = ParseVerdict(`{"canComplete": tru}`)
	require.Error(t, err)
	var shape *ShapeError
	assert.False(t, errors.As(err, &shape))
}

func TestParseVerdict_ConfidenceAlwaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := rapid.Float64Range(-1e6, 1e6).Draw(t, "confidence")
		pass := rapid.Bool().Draw(t, "pass")
		body := map[bool]string{true: "true", false: "false"}[pass]
		res, err := ParseVerdict(`{"canComplete": ` + body + `, "confidence": ` + strconv.FormatFloat(c, 'f', -1, 64) + `}`)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if res.Confidence < 0 || res.Confidence > 100 {
			t.Fatalf("confidence %v out of range", res.Confidence)
		}
	})
}
