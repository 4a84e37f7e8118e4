package sql

import (
	"time"

	"github.com/BaSui01/flowguard/types"
)

type visionCacheRow struct {
	ID             uint                 `gorm:"primaryKey;autoIncrement"`
	ScreenshotHash string               `gorm:"size:128;not null;index:idx_vision_cache_lookup,priority:1"`
	Assertion      string               `gorm:"type:text;not null"`
	Model          string               `gorm:"size:128;not null;index:idx_vision_cache_lookup,priority:2"`
	PromptVersion  string               `gorm:"size:32;not null;index:idx_vision_cache_lookup,priority:3"`
	Verdict        types.AnalysisStatus `gorm:"size:16;not null"`
	Confidence     float64              `gorm:"not null"`
	Reasoning      string               `gorm:"type:text"`
	Issues         []string             `gorm:"type:text;serializer:json"`
	Suggestions    []string             `gorm:"type:text;serializer:json"`
	InputTokens    int64                `gorm:"not null;default:0"`
	OutputTokens   int64                `gorm:"not null;default:0"`
	Cost           float64              `gorm:"not null;default:0"`
	CreatedAt      time.Time            `gorm:"not null;index:idx_vision_cache_lookup,priority:4"`
	ExpiresAt      time.Time            `gorm:"not null;index"`
	HitCount       int64                `gorm:"not null;default:0"`
}

func (visionCacheRow) TableName() string { return "vision_cache_entries" }

func fromEntry(e *types.VisionCacheEntry) visionCacheRow {
	return visionCacheRow{
		ScreenshotHash: e.Key.ScreenshotHash,
		Assertion:      e.Key.Assertion,
		Model:          e.Key.Model,
		PromptVersion:  e.Key.PromptVersion,
		Verdict:        e.Verdict,
		Confidence:     e.Confidence,
		Reasoning:      e.Reasoning,
		Issues:         e.Issues,
		Suggestions:    e.Suggestions,
		InputTokens:    e.Tokens.Input,
		OutputTokens:   e.Tokens.Output,
		Cost:           e.Cost,
		CreatedAt:      normalize(e.CreatedAt),
		ExpiresAt:      normalize(e.ExpiresAt),
		HitCount:       e.HitCount,
	}
}

func (r visionCacheRow) toEntry() types.VisionCacheEntry {
	return types.VisionCacheEntry{
		Key: types.VisionCacheKey{
			ScreenshotHash: r.ScreenshotHash,
			Assertion:      r.Assertion,
			Model:          r.Model,
			PromptVersion:  r.PromptVersion,
		},
		Verdict:     r.Verdict,
		Confidence:  r.Confidence,
		Reasoning:   r.Reasoning,
		Issues:      r.Issues,
		Suggestions: r.Suggestions,
		Tokens:      types.TokenUsage{Input: r.InputTokens, Output: r.OutputTokens},
		Cost:        r.Cost,
		CreatedAt:   r.CreatedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
		HitCount:    r.HitCount,
	}
}

type testResultRow struct {
	ID             string             `gorm:"primaryKey;size:64"`
	FlowName       string             `gorm:"size:255;not null;index:idx_test_results_flow,priority:1"`
	Intent         string             `gorm:"type:text"`
	URL            string             `gorm:"type:text"`
	ViewportWidth  int                `gorm:"not null"`
	ViewportHeight int                `gorm:"not null"`
	Verdict        types.Verdict      `gorm:"size:16;not null"`
	Confidence     float64            `gorm:"not null"`
	Steps          []types.StepResult `gorm:"type:text;serializer:json"`
	StartedAt      time.Time          `gorm:"not null;index:idx_test_results_flow,priority:2"`
	CompletedAt    time.Time          `gorm:"not null"`
	DurationMs     int64              `gorm:"not null"`
	TraceRef       string             `gorm:"size:64"`
}

func (testResultRow) TableName() string { return "test_results" }

func fromResult(id string, r *types.FlowRunResult) testResultRow {
	return testResultRow{
		ID:             id,
		FlowName:       r.FlowName,
		Intent:         r.Intent,
		URL:            r.URL,
		ViewportWidth:  r.Viewport.Width,
		ViewportHeight: r.Viewport.Height,
		Verdict:        r.Verdict,
		Confidence:     r.Confidence,
		Steps:          r.Steps,
		StartedAt:      normalize(r.StartedAt),
		CompletedAt:    normalize(r.CompletedAt),
		DurationMs:     r.DurationMs,
		TraceRef:       r.TraceRef,
	}
}

func (r testResultRow) toResult() types.FlowRunResult {
	return types.FlowRunResult{
		ID:          r.ID,
		FlowName:    r.FlowName,
		Intent:      r.Intent,
		URL:         r.URL,
		Viewport:    types.Viewport{Width: r.ViewportWidth, Height: r.ViewportHeight},
		Verdict:     r.Verdict,
		Confidence:  r.Confidence,
		Steps:       r.Steps,
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: r.CompletedAt.UTC(),
		DurationMs:  r.DurationMs,
		TraceRef:    r.TraceRef,
	}
}

// normalize drops sub-millisecond precision so timestamps compare equally
// across drivers that store them as text.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
