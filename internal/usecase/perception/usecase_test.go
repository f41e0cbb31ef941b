package perception

import (
	"context"
	"errors"
	"testing"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	cfg.VerifyDelay = 0
	return cfg
}

func newLoop(tabs *fakeTabs, page *fakePage, llm *fakeLLM) *UseCase {
	return New(tabs, page, llm, logger.NewNop(), testConfig())
}

func stepKinds(steps []entity.ActionStep) []entity.StepKind {
	kinds := make([]entity.StepKind, 0, len(steps))
	for _, s := range steps {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func TestRun_FencedPlannerAnswer(t *testing.T) {
	page := &fakePage{info: searchPage()}
	llm := &fakeLLM{
		vision: "a search page",
		plan:   "Sure! ```json\n[{\"type\":\"click\",\"selector\":\"#go\"}]\n```",
	}

	res := newLoop(&fakeTabs{}, page, llm).Run(context.Background(), input.LoopRequest{Goal: "search"})

	require.True(t, res.Success, res.Error)
	require.Len(t, page.performed, 1)
	assert.Equal(t, entity.Action{Type: entity.ActionClick, Selector: "#go"}, page.performed[0])
	assert.Equal(t, []entity.StepKind{
		entity.StepScreenshot,
		entity.StepAnalysis,
		entity.StepPageInfo,
		entity.StepPlan,
		entity.StepActionResult,
		entity.StepVerification,
	}, stepKinds(res.Steps))
	assert.Equal(t, SourcePlanner, res.Steps[3].PlanSource)
	assert.Equal(t, "a search page", res.Steps[1].Analysis)
	require.Len(t, res.Results, 1)
	assert.True(t, res.Results[0].Result.Success)
	assert.NotNil(t, res.FinalScreenshot)
	assert.Contains(t, llm.planPrompt, `"#go"`)
}

func TestRun_PlannerDownUsesFallback(t *testing.T) {
	page := &fakePage{info: searchPage()}
	llm := &fakeLLM{vision: "page", planErr: errors.New("connection refused")}

	res := newLoop(&fakeTabs{}, page, llm).Run(context.Background(), input.LoopRequest{Goal: "find go", SearchText: "golang"})

	require.True(t, res.Success)
	assert.Equal(t, []entity.Action{
		{Type: entity.ActionTypeText, Selector: "#q", Text: "golang"},
		{Type: entity.ActionClick, Selector: "#go"},
	}, page.performed)
	assert.Equal(t, SourceFallback, res.Steps[3].PlanSource)
}

func TestRun_VisionErrorDegradesToText(t *testing.T) {
	page := &fakePage{info: searchPage()}
	llm := &fakeLLM{visionErr: errors.New("HTTP 500"), plan: "[]"}

	res := newLoop(&fakeTabs{}, page, llm).Run(context.Background(), input.LoopRequest{Goal: "look"})

	require.True(t, res.Success)
	assert.Equal(t, "vision analysis error: HTTP 500", res.Steps[1].Analysis)
	assert.Empty(t, page.performed)
}

func TestRun_ProvidedActionsSkipPlanning(t *testing.T) {
	page := &fakePage{info: searchPage()}
	llm := &fakeLLM{vision: "ok"}
	tabs := &fakeTabs{}

	res := newLoop(tabs, page, llm).Run(context.Background(), input.LoopRequest{
		URL:     "https://a.test/form",
		Actions: []entity.Action{{Type: entity.ActionScroll, Direction: "down", Amount: 300}},
	})

	require.True(t, res.Success)
	assert.Equal(t, 0, llm.planCalls)
	assert.Equal(t, []string{"https://a.test/form"}, tabs.navigated)
	assert.Equal(t, SourceProvided, res.Steps[3].PlanSource)
	require.Len(t, page.performed, 1)
}

func TestRun_FailedActionDoesNotHaltPlan(t *testing.T) {
	page := &fakePage{
		info:    searchPage(),
		results: map[string]entity.ActionResult{"#missing": {Success: false, Error: "element not found: #missing"}},
	}
	llm := &fakeLLM{
		vision: "ok",
		plan:   `[{"type":"click","selector":"#missing"},{"type":"click","selector":"#go"}]`,
	}

	res := newLoop(&fakeTabs{}, page, llm).Run(context.Background(), input.LoopRequest{Goal: "x"})

	require.True(t, res.Success)
	require.Len(t, res.Results, 2)
	assert.False(t, res.Results[0].Result.Success)
	assert.True(t, res.Results[1].Result.Success)
}

func TestRun_CaptureFailureKeepsPartialSteps(t *testing.T) {
	page := &fakePage{info: searchPage()}
	llm := &fakeLLM{vision: "ok", plan: `[{"type":"click","selector":"#go"}]`}

	res := newLoop(&fakeTabs{failAfter: 1}, page, llm).Run(context.Background(), input.LoopRequest{Goal: "x"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tab gone")
	assert.Equal(t, []entity.StepKind{
		entity.StepScreenshot,
		entity.StepAnalysis,
		entity.StepPageInfo,
		entity.StepPlan,
		entity.StepActionResult,
	}, stepKinds(res.Steps))
}

func TestRun_NoActiveTab(t *testing.T) {
	res := newLoop(&fakeTabs{activeErr: errors.New("browser closed")}, &fakePage{}, &fakeLLM{}).
		Run(context.Background(), input.LoopRequest{Goal: "x"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrNoActiveTab.Error())
	assert.Empty(t, res.Steps)
}

func TestHistoryIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.HistorySize = 3
	loop := New(&fakeTabs{}, &fakePage{info: searchPage()}, &fakeLLM{plan: "[]"}, logger.NewNop(), cfg)

	for i := 0; i < 3; i++ {
		loop.Run(context.Background(), input.LoopRequest{Goal: "x"})
	}
	assert.Len(t, loop.History(), 3)
}

func TestRun_SilentModelIsNoAnswer(t *testing.T) {
	page := &fakePage{info: searchPage()}

	res := newLoop(&fakeTabs{}, page, &fakeLLM{silent: true}).Run(context.Background(), input.LoopRequest{Goal: "find go", SearchText: "golang"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, noAnalysis, res.Steps[1].Analysis)
	assert.Equal(t, SourceFallback, res.Steps[3].PlanSource)
	assert.Len(t, page.performed, 2)
}

func TestRun_UntypedPlanUsesFallback(t *testing.T) {
	page := &fakePage{info: searchPage()}
	llm := &fakeLLM{vision: "page", plan: `[{}]`}

	res := newLoop(&fakeTabs{}, page, llm).Run(context.Background(), input.LoopRequest{Goal: "search"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, SourceFallback, res.Steps[3].PlanSource)
	for _, a := range page.performed {
		assert.NotEmpty(t, a.Type)
	}
}

func TestRun_WaitIsHandledByLoop(t *testing.T) {
	page := &fakePage{info: searchPage()}
	llm := &fakeLLM{vision: "page", plan: `[{"type":"wait","duration":1},{"type":"click","selector":"#go"}]`}

	res := newLoop(&fakeTabs{}, page, llm).Run(context.Background(), input.LoopRequest{Goal: "search"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []entity.Action{{Type: entity.ActionClick, Selector: "#go"}}, page.performed)
	require.Len(t, res.Results, 2)
	assert.Equal(t, entity.ActionWait, res.Results[0].Action.Type)
	assert.True(t, res.Results[0].Result.Success)
}
