package memory

import (
	"testing"
	"time"

	"taskpilot/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func experience(at time.Time, ok bool, steps ...entity.ActionStep) entity.Experience {
	return entity.Experience{
		Timestamp:       at,
		Task:            entity.ExperienceTask{Description: "search"},
		Actions:         steps,
		Result:          entity.ExperienceResult{Success: ok},
		Performance:     entity.Performance{StepsCount: len(steps), ExecutionTimeMs: 1000},
		LearnedPatterns: ExtractPatterns(steps),
	}
}

func TestBuildKnowledge(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	typeStep := entity.ActionStep{
		Kind:   entity.StepActionResult,
		Action: &entity.Action{Type: entity.ActionTypeText, Selector: "#q", Text: "go"},
		Result: &entity.ActionResult{Success: true},
	}

	similar := []entity.Experience{
		experience(base.Add(2*time.Hour), true, typeStep, clickStep("#go", true, "")),
		experience(base.Add(time.Hour), true, clickStep("#go", true, ""), clickStep("#ad", false, "hidden")),
		experience(base, false, clickStep("#ad", false, "hidden"), clickStep("", false, "no target")),
	}

	k := BuildKnowledge(similar)

	require.Len(t, k.SimilarTasks, 3)
	assert.Equal(t, map[string]int{"#go": 2, "#q": 1}, k.BestPractices.SuccessfulSelectors)
	assert.Len(t, k.BestPractices.ActionSequences, 2)
	assert.Equal(t, 1000.0, k.BestPractices.Timing.AverageWaitTime)
	assert.Equal(t, 2.0, k.BestPractices.Timing.AverageSteps)

	assert.Equal(t, []entity.Mistake{
		{Action: "click:#ad", Count: 2},
		{Action: "click:unknown", Count: 1},
	}, k.CommonMistakes)

	require.Len(t, k.RecommendedActions, 2)
	top := k.RecommendedActions[0]
	assert.Equal(t, entity.ActionClick, top.Type)
	require.NotNil(t, top.Selector)
	assert.Equal(t, "#go", *top.Selector)
	assert.Equal(t, 1.0, top.Confidence)
	assert.Equal(t, 1, top.SuggestedPosition)

	assert.Equal(t, 0.5, k.RecommendedActions[1].Confidence)
}

func TestBuildKnowledge_NoSuccesses(t *testing.T) {
	k := BuildKnowledge([]entity.Experience{experience(time.Now(), false, clickStep("#x", false, "boom"))})

	assert.Empty(t, k.RecommendedActions)
	assert.Empty(t, k.BestPractices.SuccessfulSelectors)
	assert.Equal(t, 0.0, k.BestPractices.Timing.AverageSteps)
	assert.Len(t, k.CommonMistakes, 1)
}

func TestRecommendation_NilSelectorForPointClicks(t *testing.T) {
	step := entity.ActionStep{
		Kind:   entity.StepActionResult,
		Action: &entity.Action{Type: entity.ActionClick, Point: &entity.Point{X: 10, Y: 20}},
		Result: &entity.ActionResult{Success: true},
	}
	k := BuildKnowledge([]entity.Experience{experience(time.Now(), true, step)})

	require.Len(t, k.RecommendedActions, 1)
	assert.Nil(t, k.RecommendedActions[0].Selector)
	assert.Equal(t, "@10,20", k.SimilarTasks[0].Actions[0].Selector)
}
