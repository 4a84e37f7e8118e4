package mongo

import (
	"time"

	"github.com/BaSui01/flowguard/types"
)

type entryDocument struct {
	ScreenshotHash string               `bson:"screenshot_hash"`
	Assertion      string               `bson:"assertion"`
	Model          string               `bson:"model"`
	PromptVersion  string               `bson:"prompt_version"`
	Verdict        types.AnalysisStatus `bson:"verdict"`
	Confidence     float64              `bson:"confidence"`
	Reasoning      string               `bson:"reasoning"`
	Issues         []string             `bson:"issues,omitempty"`
	Suggestions    []string             `bson:"suggestions,omitempty"`
	Tokens         types.TokenUsage     `bson:"tokens"`
	Cost           float64              `bson:"cost"`
	CreatedAt      time.Time            `bson:"created_at"`
	ExpiresAt      time.Time            `bson:"expires_at"`
	HitCount       int64                `bson:"hit_count"`
}

func fromEntry(e *types.VisionCacheEntry) entryDocument {
	return entryDocument{
		ScreenshotHash: e.Key.ScreenshotHash,
		Assertion:      e.Key.Assertion,
		Model:          e.Key.Model,
		PromptVersion:  e.Key.PromptVersion,
		Verdict:        e.Verdict,
		Confidence:     e.Confidence,
		Reasoning:      e.Reasoning,
		Issues:         e.Issues,
		Suggestions:    e.Suggestions,
		Tokens:         e.Tokens,
		Cost:           e.Cost,
		CreatedAt:      e.CreatedAt.UTC(),
		ExpiresAt:      e.ExpiresAt.UTC(),
		HitCount:       e.HitCount,
	}
}

func (d entryDocument) toEntry() types.VisionCacheEntry {
	return types.VisionCacheEntry{
		Key: types.VisionCacheKey{
			ScreenshotHash: d.ScreenshotHash,
			Assertion:      d.Assertion,
			Model:          d.Model,
			PromptVersion:  d.PromptVersion,
		},
		Verdict:     d.Verdict,
		Confidence:  d.Confidence,
		Reasoning:   d.Reasoning,
		Issues:      d.Issues,
		Suggestions: d.Suggestions,
		Tokens:      d.Tokens,
		Cost:        d.Cost,
		CreatedAt:   d.CreatedAt.UTC(),
		ExpiresAt:   d.ExpiresAt.UTC(),
		HitCount:    d.HitCount,
	}
}

type stepDocument struct {
	StepIndex     int                   `bson:"step_index"`
	Action        types.Action          `bson:"action"`
	Success       bool                  `bson:"success"`
	ScreenshotRef string                `bson:"screenshot_ref,omitempty"`
	Analysis      *types.AnalysisResult `bson:"analysis,omitempty"`
	DurationMs    int64                 `bson:"duration_ms"`
	Error         string                `bson:"error,omitempty"`
}

type resultDocument struct {
	RunID       string         `bson:"run_id"`
	FlowName    string         `bson:"flow_name"`
	Intent      string         `bson:"intent"`
	URL         string         `bson:"url"`
	Viewport    types.Viewport `bson:"viewport"`
	Verdict     types.Verdict  `bson:"verdict"`
	Confidence  float64        `bson:"confidence"`
	Steps       []stepDocument `bson:"steps"`
	StartedAt   time.Time      `bson:"started_at"`
	CompletedAt time.Time      `bson:"completed_at"`
	DurationMs  int64          `bson:"duration_ms"`
	TraceRef    string         `bson:"trace_ref,omitempty"`
}

func fromResult(r *types.FlowRunResult) resultDocument {
	steps := make([]stepDocument, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, stepDocument{
			StepIndex:     s.StepIndex,
			Action:        s.Action,
			Success:       s.Success,
			ScreenshotRef: s.ScreenshotRef,
			Analysis:      s.Analysis,
			DurationMs:    s.DurationMs,
			Error:         s.Error,
		})
	}
	return resultDocument{
		RunID:       r.ID,
		FlowName:    r.FlowName,
		Intent:      r.Intent,
		URL:         r.URL,
		Viewport:    r.Viewport,
		Verdict:     r.Verdict,
		Confidence:  r.Confidence,
		Steps:       steps,
		StartedAt:   r.StartedAt.UTC(),
		CompletedAt: r.CompletedAt.UTC(),
		DurationMs:  r.DurationMs,
		TraceRef:    r.TraceRef,
	}
}
