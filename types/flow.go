package types

import "time"

// Action is a browser step action name.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionType       Action = "type"
	ActionScreenshot Action = "screenshot"
	ActionWait       Action = "wait"
	ActionScroll     Action = "scroll"
)

// Valid reports whether a is one of the supported step actions.
func (a Action) Valid() bool {
	switch a {
	case ActionNavigate, ActionClick, ActionType, ActionScreenshot, ActionWait, ActionScroll:
		return true
	}
	return false
}

// Viewport is the browser viewport size used for a run.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultViewport is used when a flow does not specify one.
func DefaultViewport() Viewport {
	return Viewport{Width: 1280, Height: 720}
}

// Flow is a named sequence of browser steps plus the intent it validates.
// It is owned by the caller and never mutated by a run.
type Flow struct {
	Name     string    `json:"name"`
	Intent   string    `json:"intent"`
	URL      string    `json:"url"`
	Viewport *Viewport `json:"viewport,omitempty"`
	Steps    []Step    `json:"steps"`
}

// EffectiveViewport returns the flow viewport or the default one.
func (f *Flow) EffectiveViewport() Viewport {
	if f.Viewport == nil || f.Viewport.Width <= 0 || f.Viewport.Height <= 0 {
		return DefaultViewport()
	}
	return *f.Viewport
}

// Step is one browser action.
type Step struct {
	Action    Action `json:"action"`
	Target    string `json:"target,omitempty"`
	Value     string `json:"value,omitempty"`
	Assertion string `json:"assert,omitempty"`
	TimeoutMs int    `json:"timeout,omitempty"`
}

// Timeout returns the step timeout, or def when none is set.
func (s Step) Timeout(def time.Duration) time.Duration {
	if s.TimeoutMs > 0 {
		return time.Duration(s.TimeoutMs) * time.Millisecond
	}
	return def
}
