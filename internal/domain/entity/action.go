package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

type ActionType string

const (
	ActionClick    ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Action struct {
	Type      ActionType     `json:"type"`
	Selector  string         `json:"selector,omitempty"`
	Point     *Point         `json:"target,omitempty"`
	Text      string         `json:"text,omitempty"`
	Direction string         `json:"direction,omitempty"`
	Amount    int            `json:"amount,omitempty"`
	Duration  int            `json:"duration,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// Locator is the selector, or the coordinates for point clicks.
func (a Action) Locator() string {
	if a.Selector != "" {
		return a.Selector
	}
	if a.Point != nil {
		return fmt.Sprintf("@%g,%g", a.Point.X, a.Point.Y)
	}
	return ""
}

// UnmarshalJSON accepts "target" either as a selector string or as {x, y}.
func (a *Action) UnmarshalJSON(data []byte) error {
	type plain Action
	var raw struct {
		plain
		Target json.RawMessage `json:"target,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Action(raw.plain)
	a.Point = nil

	if len(raw.Target) == 0 || string(raw.Target) == "null" {
		return nil
	}
	var sel string
	if err := json.Unmarshal(raw.Target, &sel); err == nil {
		if a.Selector == "" {
			a.Selector = sel
		}
		return nil
	}
	var pt Point
	if err := json.Unmarshal(raw.Target, &pt); err != nil {
		return fmt.Errorf("action target: %w", err)
	}
	a.Point = &pt
	return nil
}

type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

type ActionOutcome struct {
	Action    Action       `json:"action"`
	Result    ActionResult `json:"result"`
	Timestamp time.Time    `json:"timestamp"`
}

type StepKind string

const (
	StepScreenshot   StepKind = "screenshot"
	StepAnalysis     StepKind = "analysis"
	StepPageInfo     StepKind = "page_info"
	StepPlan         StepKind = "plan"
	StepActionResult StepKind = "action_result"
	StepVerification StepKind = "verification"
)

type Verification struct {
	Changed *bool  `json:"changed,omitempty"`
	Summary string `json:"summary"`
}

// ActionStep is one entry of the perception-action step log. Image bytes
// are never stored here, only a reference to the capture.
type ActionStep struct {
	Kind         StepKind       `json:"kind"`
	Timestamp    time.Time      `json:"timestamp"`
	Screenshot   *ScreenshotRef `json:"screenshot,omitempty"`
	Analysis     string         `json:"analysis,omitempty"`
	PageInfo     *PageInfo      `json:"pageInfo,omitempty"`
	Plan         []Action       `json:"plan,omitempty"`
	PlanSource   string         `json:"planSource,omitempty"`
	Action       *Action        `json:"action,omitempty"`
	Result       *ActionResult  `json:"result,omitempty"`
	Verification *Verification  `json:"verification,omitempty"`
}

// Succeeded reports whether the step is an action result that worked.
func (s ActionStep) Succeeded() bool {
	return s.Kind == StepActionResult && s.Action != nil && s.Result != nil && s.Result.Success
}
