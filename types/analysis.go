package types

// AnalysisStatus tags which variant of AnalysisResult is populated.
type AnalysisStatus string

const (
	AnalysisPass  AnalysisStatus = "pass"
	AnalysisFail  AnalysisStatus = "fail"
	AnalysisError AnalysisStatus = "error"
)

// AnalysisResult is the outcome of scoring one screenshot. Exactly one
// variant is populated, selected by Status:
//
//   - pass:  Confidence, Reasoning
//   - fail:  Confidence, Reasoning, Issues, Suggestions
//   - error: Message
//
// Build values with NewPassResult, NewFailResult or NewErrorResult.
type AnalysisResult struct {
	Status      AnalysisStatus `json:"status"`
	Confidence  float64        `json:"confidence,omitempty"`
	Reasoning   string         `json:"reasoning,omitempty"`
	Issues      []string       `json:"issues,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Message     string         `json:"message,omitempty"`

	// Usage is reported by the model call that produced the result; it is
	// zero for cache hits.
	Usage TokenUsage `json:"-"`
}

// TokenUsage counts model tokens for one call.
type TokenUsage struct {
	Input  int64 `json:"input" bson:"input"`
	Output int64 `json:"output" bson:"output"`
}

// NewPassResult builds a pass variant.
func NewPassResult(confidence float64, reasoning string) AnalysisResult {
	return AnalysisResult{
		Status:     AnalysisPass,
		Confidence: ClampConfidence(confidence),
		Reasoning:  reasoning,
	}
}

// NewFailResult builds a fail variant. Nil slices become empty ones.
func NewFailResult(confidence float64, reasoning string, issues, suggestions []string) AnalysisResult {
	if issues == nil {
		issues = []string{}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return AnalysisResult{
		Status:      AnalysisFail,
		Confidence:  ClampConfidence(confidence),
		Reasoning:   reasoning,
		Issues:      issues,
		Suggestions: suggestions,
	}
}

// NewErrorResult builds an error variant.
func NewErrorResult(message string) AnalysisResult {
	return AnalysisResult{Status: AnalysisError, Message: message}
}

// IsPass reports whether the result is the pass variant.
func (r AnalysisResult) IsPass() bool { return r.Status == AnalysisPass }

// IsFail reports whether the result is the fail variant.
func (r AnalysisResult) IsFail() bool { return r.Status == AnalysisFail }

// IsError reports whether the result is the error variant.
func (r AnalysisResult) IsError() bool { return r.Status == AnalysisError }

// ClampConfidence bounds c to [0, 100].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
