package memory

import (
	"net/url"
	"sort"
	"strings"

	"taskpilot/internal/domain/entity"
)

// ExtractPatterns mines an action log for what worked and what did not.
func ExtractPatterns(steps []entity.ActionStep) entity.LearnedPatterns {
	patterns := entity.NewLearnedPatterns()

	for _, step := range steps {
		switch step.Kind {
		case entity.StepActionResult:
			if step.Action == nil || step.Result == nil {
				continue
			}
			if step.Result.Success {
				patterns.SuccessfulActions = append(patterns.SuccessfulActions, entity.PatternAction{
					Type:     step.Action.Type,
					Selector: step.Action.Locator(),
					Options:  step.Action.Options,
				})
				if step.Action.Selector != "" {
					patterns.CommonSelectors[step.Action.Selector]++
				}
			} else {
				patterns.FailedActions = append(patterns.FailedActions, entity.PatternAction{
					Type:     step.Action.Type,
					Selector: step.Action.Locator(),
					Error:    step.Result.Error,
				})
			}

		case entity.StepPageInfo:
			if step.PageInfo == nil {
				continue
			}
			patterns.PageStructures = append(patterns.PageStructures, entity.PageStructure{
				URL: step.PageInfo.URL,
				ElementsCount: entity.ElementCounts{
					Buttons: len(step.PageInfo.Elements.Buttons),
					Inputs:  len(step.PageInfo.Elements.Inputs),
					Links:   len(step.PageInfo.Elements.Links),
				},
			})
		}
	}
	return patterns
}

// Retain keeps at most max experiences: successes before failures, then
// newer before older. The result is in that order.
func Retain(exps []entity.Experience, max int) []entity.Experience {
	sortBySuccessThenRecency(exps)
	if len(exps) > max {
		exps = exps[:max]
	}
	return exps
}

func sortBySuccessThenRecency(exps []entity.Experience) {
	sort.SliceStable(exps, func(i, j int) bool {
		a, b := exps[i], exps[j]
		if a.Result.Success != b.Result.Success {
			return a.Result.Success
		}
		return a.Timestamp.After(b.Timestamp)
	})
}

// FindSimilar matches on a case-insensitive description substring in either
// direction, or on the same URL host.
func FindSimilar(exps []entity.Experience, task entity.Task, limit int) []entity.Experience {
	desc := strings.ToLower(task.Label())
	host := hostname(task.URL())

	var similar []entity.Experience
	for _, exp := range exps {
		expDesc := strings.ToLower(exp.Task.Description)
		descMatch := desc != "" && expDesc != "" &&
			(strings.Contains(expDesc, desc) || strings.Contains(desc, expDesc))
		hostMatch := host != "" && host == hostname(exp.Task.URL)
		if descMatch || hostMatch {
			similar = append(similar, exp)
		}
	}

	sortBySuccessThenRecency(similar)
	if limit >= 0 && len(similar) > limit {
		similar = similar[:limit]
	}
	return similar
}

// hostname returns "" for empty or unparseable URLs, so they never match.
func hostname(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
