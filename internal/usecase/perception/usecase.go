package perception

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/prompts"
)

var _ input.PerceptionLoop = (*UseCase)(nil)

var ErrNoActiveTab = errors.New("no active tab")

const (
	defaultHistorySize = 50
	defaultWait        = time.Second
	noAnalysis         = "analysis unavailable"
)

type Config struct {
	HistorySize int
	// SettleDelay follows every action, VerifyDelay precedes the re-capture.
	SettleDelay time.Duration
	VerifyDelay time.Duration
	LoadTimeout time.Duration

	VisionModel       string
	VisionTemperature float32
	VisionMaxTokens   int
	PlanModel         string
	PlanTemperature   float32
	PlanMaxTokens     int
}

func DefaultConfig() Config {
	return Config{
		HistorySize:       defaultHistorySize,
		SettleDelay:       500 * time.Millisecond,
		VerifyDelay:       time.Second,
		LoadTimeout:       30 * time.Second,
		VisionTemperature: 0.7,
		VisionMaxTokens:   2000,
		PlanTemperature:   0.3,
		PlanMaxTokens:     2000,
	}
}

type UseCase struct {
	tabs   output.TabController
	page   output.PageDriver
	llm    output.LLMPort
	logger output.LoggerPort
	cfg    Config

	mu      sync.Mutex
	history []entity.Screenshot
}

func New(
	tabs output.TabController,
	page output.PageDriver,
	llm output.LLMPort,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	return &UseCase{
		tabs:   tabs,
		page:   page,
		llm:    llm,
		logger: logger.WithField("component", "perception"),
		cfg:    cfg,
	}
}

// run carries the state of one loop invocation.
type run struct {
	tab    output.TabHandle
	steps  []entity.ActionStep
	result []entity.ActionOutcome
}

func (r *run) add(step entity.ActionStep) {
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now().UTC()
	}
	r.steps = append(r.steps, step)
}

func (uc *UseCase) Run(ctx context.Context, req input.LoopRequest) *entity.LoopResult {
	r := &run{tab: req.Tab}

	final, err := uc.run(ctx, req, r)
	if err != nil {
		uc.logger.Warn("Perception loop failed", "error", err, "steps", len(r.steps))
		return &entity.LoopResult{
			Success: false,
			Error:   err.Error(),
			Steps:   r.steps,
			Results: r.result,
		}
	}

	uc.logger.Info("Perception loop finished", "actions", len(r.result), "steps", len(r.steps))
	return &entity.LoopResult{
		Success:         true,
		Steps:           r.steps,
		Results:         r.result,
		FinalScreenshot: final.Ref(),
	}
}

func (uc *UseCase) run(ctx context.Context, req input.LoopRequest, r *run) (*entity.Screenshot, error) {
	if r.tab == "" {
		tab, err := uc.tabs.Active(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoActiveTab, err)
		}
		r.tab = tab
	}

	if req.URL != "" {
		if err := uc.tabs.Navigate(ctx, r.tab, req.URL); err != nil {
			return nil, fmt.Errorf("navigate to %s: %w", req.URL, err)
		}
		if err := uc.tabs.WaitForLoad(ctx, r.tab, uc.cfg.LoadTimeout); err != nil {
			return nil, err
		}
	}

	// CAPTURE
	shot, err := uc.capture(ctx, r.tab)
	if err != nil {
		return nil, err
	}
	r.add(entity.ActionStep{Kind: entity.StepScreenshot, Screenshot: shot.Ref()})

	// ANALYZE
	visionPrompt, err := prompts.Vision(req.Prompt, goalOf(req))
	if err != nil {
		return nil, err
	}
	analysis := uc.analyze(ctx, shot, visionPrompt)
	r.add(entity.ActionStep{Kind: entity.StepAnalysis, Analysis: analysis})

	// INSPECT
	info, err := uc.page.Inspect(ctx, r.tab)
	if err != nil {
		return nil, err
	}
	r.add(entity.ActionStep{Kind: entity.StepPageInfo, PageInfo: info})

	// PLAN
	actions, source := uc.plan(ctx, req, analysis, info)
	r.add(entity.ActionStep{Kind: entity.StepPlan, Plan: actions, PlanSource: source})
	uc.logger.Debug("Actions planned", "count", len(actions), "source", source)

	// EXECUTE and VERIFY
	for _, action := range actions {
		if err := uc.execute(ctx, r, action); err != nil {
			return nil, err
		}
	}

	return uc.capture(ctx, r.tab)
}

func (uc *UseCase) execute(ctx context.Context, r *run, action entity.Action) error {
	var res entity.ActionResult
	if action.Type == entity.ActionWait {
		// wait is the loop's own delay; the page is not involved.
		wait := time.Duration(action.Duration) * time.Millisecond
		if wait <= 0 {
			wait = defaultWait
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		res = entity.ActionResult{Success: true}
	} else {
		var err error
		res, err = uc.page.Perform(ctx, r.tab, action)
		if err != nil {
			res = entity.ActionResult{Success: false, Error: err.Error()}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := sleep(ctx, uc.cfg.SettleDelay); err != nil {
		return err
	}

	now := time.Now().UTC()
	act := action
	r.result = append(r.result, entity.ActionOutcome{Action: act, Result: res, Timestamp: now})
	r.add(entity.ActionStep{Kind: entity.StepActionResult, Timestamp: now, Action: &act, Result: &res})
	if !res.Success {
		uc.logger.Info("Action failed", "type", action.Type, "target", action.Locator(), "error", res.Error)
	}

	if err := sleep(ctx, uc.cfg.VerifyDelay); err != nil {
		return err
	}
	after, err := uc.capture(ctx, r.tab)
	if err != nil {
		return err
	}
	verifyPrompt, err := prompts.Verify(action)
	if err != nil {
		return err
	}
	r.add(entity.ActionStep{
		Kind:         entity.StepVerification,
		Screenshot:   after.Ref(),
		Verification: parseVerification(uc.analyze(ctx, after, verifyPrompt)),
	})
	return nil
}

func (uc *UseCase) capture(ctx context.Context, tab output.TabHandle) (*entity.Screenshot, error) {
	shot, err := uc.tabs.CaptureVisual(ctx, tab)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	if shot.Timestamp.IsZero() {
		shot.Timestamp = time.Now().UTC()
	}

	uc.mu.Lock()
	uc.history = append(uc.history, *shot)
	if over := len(uc.history) - uc.cfg.HistorySize; over > 0 {
		uc.history = append(uc.history[:0:0], uc.history[over:]...)
	}
	uc.mu.Unlock()
	return shot, nil
}

// analyze asks the vision model about a screenshot. Transport problems come
// back as text so the loop can keep going.
func (uc *UseCase) analyze(ctx context.Context, shot *entity.Screenshot, prompt string) string {
	resp, err := uc.llm.Chat(ctx, output.ChatRequest{
		Model:       uc.cfg.VisionModel,
		Messages:    []entity.Message{{Role: entity.RoleUser, Content: prompt, Image: shot}},
		Temperature: uc.cfg.VisionTemperature,
		MaxTokens:   uc.cfg.VisionMaxTokens,
	})
	if err != nil {
		uc.logger.Warn("Vision analysis failed", "error", err)
		return "vision analysis error: " + err.Error()
	}
	if resp == nil || resp.Content == "" {
		return noAnalysis
	}
	return resp.Content
}

// History returns the captured screenshots, oldest first.
func (uc *UseCase) History() []entity.Screenshot {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return append([]entity.Screenshot(nil), uc.history...)
}

func goalOf(req input.LoopRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return req.Goal
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
