package types

import "time"

// VisionCacheTTL is how long a cached verdict stays readable.
const VisionCacheTTL = 7 * 24 * time.Hour

// VisionCacheKey identifies a cacheable vision result.
type VisionCacheKey struct {
	ScreenshotHash string `json:"screenshotHash" bson:"screenshot_hash"`
	Assertion      string `json:"assertion" bson:"assertion"`
	Model          string `json:"model" bson:"model"`
	PromptVersion  string `json:"promptVersion" bson:"prompt_version"`
}

// VisionCacheEntry is one cached vision verdict.
type VisionCacheEntry struct {
	Key         VisionCacheKey `json:"key"`
	Verdict     AnalysisStatus `json:"verdict"`
	Confidence  float64        `json:"confidence"`
	Reasoning   string         `json:"reasoning"`
	Issues      []string       `json:"issues,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Tokens      TokenUsage     `json:"tokens"`
	Cost        float64        `json:"cost"`
	CreatedAt   time.Time      `json:"createdAt"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	HitCount    int64          `json:"hitCount"`
}

// NewVisionCacheEntry stamps a fresh entry created at now.
func NewVisionCacheEntry(key VisionCacheKey, result AnalysisResult, cost float64, now time.Time) *VisionCacheEntry {
	return &VisionCacheEntry{
		Key:         key,
		Verdict:     result.Status,
		Confidence:  result.Confidence,
		Reasoning:   result.Reasoning,
		Issues:      result.Issues,
		Suggestions: result.Suggestions,
		Tokens:      result.Usage,
		Cost:        cost,
		CreatedAt:   now,
		ExpiresAt:   now.Add(VisionCacheTTL),
		HitCount:    0,
	}
}

// Expired reports whether the entry is no longer readable at t.
func (e *VisionCacheEntry) Expired(t time.Time) bool {
	return t.After(e.ExpiresAt)
}

// AnalysisResult rebuilds the verdict stored in the entry.
func (e *VisionCacheEntry) AnalysisResult() AnalysisResult {
	if e.Verdict == AnalysisFail {
		return NewFailResult(e.Confidence, e.Reasoning, e.Issues, e.Suggestions)
	}
	return NewPassResult(e.Confidence, e.Reasoning)
}
