package perception

import (
	"context"
	"encoding/json"
	"strings"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/prompts"
)

const (
	SourceProvided = "provided"
	SourcePlanner  = "planner"
	SourceFallback = "fallback"
)

var (
	submitWords = []string{"submit", "search", "отправить", "найти"}
	searchTypes = []string{"text", "search"}
)

func (uc *UseCase) plan(ctx context.Context, req input.LoopRequest, analysis string, info *entity.PageInfo) ([]entity.Action, string) {
	if len(req.Actions) > 0 {
		return req.Actions, SourceProvided
	}

	prompt, err := prompts.Plan(goalOf(req), analysis, info, req.Hints)
	if err != nil {
		uc.logger.Warn("Plan prompt failed, using fallback", "error", err)
		return FallbackActions(req.SearchText, info), SourceFallback
	}

	resp, err := uc.llm.Chat(ctx, output.ChatRequest{
		Model:       uc.cfg.PlanModel,
		Messages:    []entity.Message{{Role: entity.RoleUser, Content: prompt}},
		Temperature: uc.cfg.PlanTemperature,
		MaxTokens:   uc.cfg.PlanMaxTokens,
	})
	if err != nil {
		uc.logger.Warn("Planner unavailable, using fallback", "error", err)
		return FallbackActions(req.SearchText, info), SourceFallback
	}

	if resp == nil {
		uc.logger.Info("Planner gave no answer, using fallback")
		return FallbackActions(req.SearchText, info), SourceFallback
	}
	actions, ok := ParseActions(resp.Content)
	if !ok {
		uc.logger.Info("No action list in planner answer, using fallback")
		return FallbackActions(req.SearchText, info), SourceFallback
	}
	return actions, SourcePlanner
}

// ParseActions returns the first well-formed JSON array of actions found
// anywhere in text, such as inside a fenced code block. Entries without a
// type are dropped; an array left with nothing usable does not count.
func ParseActions(text string) ([]entity.Action, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		var raw []*entity.Action
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		actions := make([]entity.Action, 0, len(raw))
		for _, a := range raw {
			if a != nil && a.Type != "" {
				actions = append(actions, *a)
			}
		}
		if len(raw) > 0 && len(actions) == 0 {
			continue
		}
		return actions, true
	}
	return nil, false
}

// FallbackActions is the deterministic plan used when the planner gives no
// usable answer: type the search text into the first text-like input, then
// click the first submit-like button. It may return no actions.
func FallbackActions(searchText string, info *entity.PageInfo) []entity.Action {
	actions := []entity.Action{}
	if info == nil {
		return actions
	}

	if searchText != "" {
		for _, in := range info.Elements.Inputs {
			if containsAny(in.Type, searchTypes) || strings.Contains(strings.ToLower(in.Placeholder), "search") {
				actions = append(actions, entity.Action{
					Type:     entity.ActionTypeText,
					Selector: in.Selector,
					Text:     searchText,
				})
				break
			}
		}
	}

	for _, b := range info.Elements.Buttons {
		text := strings.ToLower(b.Text)
		for _, w := range submitWords {
			if strings.Contains(text, w) {
				return append(actions, entity.Action{Type: entity.ActionClick, Selector: b.Selector})
			}
		}
	}
	return actions
}

func containsAny(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
