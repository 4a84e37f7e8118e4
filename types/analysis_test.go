package types

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestAnalysisResult_Constructors(t *testing.T) {
	pass := NewPassResult(150, "fine")
	assert.True(t, pass.IsPass())
	assert.Equal(t, 100.0, pass.Confidence)
	assert.Empty(t, pass.Message)

	fail := NewFailResult(-10, "broken", nil, nil)
	assert.True(t, fail.IsFail())
	assert.Equal(t, 0.0, fail.Confidence)
	assert.NotNil(t, fail.Issues)
	assert.NotNil(t, fail.Suggestions)

	errResult := NewErrorResult("missing API credential")
	assert.True(t, errResult.IsError())
	assert.Zero(t, errResult.Confidence)
	assert.Empty(t, errResult.Reasoning)
}

func TestClampConfidence_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("clamped into [0,100]", prop.ForAll(
		func(c float64) bool {
			got := ClampConfidence(c)
			return got >= 0 && got <= 100
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("identity inside range", prop.ForAll(
		func(c float64) bool {
			return ClampConfidence(c) == c
		},
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}

func TestVisionCacheEntry_Lifetime(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	key := VisionCacheKey{ScreenshotHash: "abc", Assertion: "button visible", Model: "m", PromptVersion: "v1"}
	result := NewFailResult(55, "hidden", []string{"cta below fold"}, []string{"move cta"})
	result.Usage = TokenUsage{Input: 1200, Output: 80}

	entry := NewVisionCacheEntry(key, result, 0.0048, now)
	assert.Equal(t, now.Add(7*24*time.Hour), entry.ExpiresAt)
	assert.Zero(t, entry.HitCount)
	assert.Equal(t, int64(1200), entry.Tokens.Input)

	assert.False(t, entry.Expired(entry.ExpiresAt))
	assert.True(t, entry.Expired(entry.ExpiresAt.Add(time.Millisecond)))

	back := entry.AnalysisResult()
	assert.True(t, back.IsFail())
	assert.Equal(t, []string{"cta below fold"}, back.Issues)
}
