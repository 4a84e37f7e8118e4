package types

import "time"

// Verdict is the tri-state outcome of a flow run.
type Verdict string

const (
	VerdictPass  Verdict = "pass"
	VerdictFail  Verdict = "fail"
	VerdictError Verdict = "error"
)

// ErrorKind classifies a step failure for verdict derivation.
type ErrorKind string

const (
	// ErrorKindAssertion is a plain failed assertion.
	ErrorKindAssertion ErrorKind = "assertion"
	// ErrorKindStep is a browser action that could not be performed.
	ErrorKindStep ErrorKind = "step"
	// ErrorKindSetup is a browser or session setup failure.
	ErrorKindSetup ErrorKind = "setup"
	// ErrorKindAnalysis is a vision analysis that returned an Error result.
	ErrorKindAnalysis ErrorKind = "analysis"
)

// StepResult is produced once per executed step and never mutated after the
// run appends it.
type StepResult struct {
	StepIndex        int             `json:"stepIndex"`
	Action           Action          `json:"action"`
	Success          bool            `json:"success"`
	ScreenshotRef    string          `json:"screenshotRef,omitempty"`
	ScreenshotBase64 string          `json:"-"`
	Analysis         *AnalysisResult `json:"analysis,omitempty"`
	DurationMs       int64           `json:"durationMs"`
	Error            string          `json:"error,omitempty"`
	ErrorKind        ErrorKind       `json:"-"`
}

// FlowRunResult is the complete artifact of one flow run.
type FlowRunResult struct {
	ID          string       `json:"id,omitempty"`
	FlowName    string       `json:"flowName"`
	Intent      string       `json:"intent"`
	URL         string       `json:"url"`
	Viewport    Viewport     `json:"viewport"`
	Verdict     Verdict      `json:"verdict"`
	Confidence  float64      `json:"confidence"`
	Steps       []StepResult `json:"steps"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt time.Time    `json:"completedAt"`
	DurationMs  int64        `json:"durationMs"`
	TraceRef    string       `json:"traceRef,omitempty"`
}

// DeriveVerdict computes the run verdict from its step results: error when
// any step failed with something other than a plain assertion failure, pass
// when every step succeeded, fail otherwise.
func DeriveVerdict(steps []StepResult) Verdict {
	failed := false
	for _, s := range steps {
		if s.Success {
			continue
		}
		if s.ErrorKind != ErrorKindAssertion {
			return VerdictError
		}
		failed = true
	}
	if failed {
		return VerdictFail
	}
	return VerdictPass
}

// MinConfidence returns the lowest confidence among analyzed steps, or 0 when
// no step carries a pass/fail analysis.
func MinConfidence(steps []StepResult) float64 {
	found := false
	var lowest float64
	for _, s := range steps {
		if s.Analysis == nil || s.Analysis.Status == AnalysisError {
			continue
		}
		if !found || s.Analysis.Confidence < lowest {
			lowest = s.Analysis.Confidence
			found = true
		}
	}
	return lowest
}
