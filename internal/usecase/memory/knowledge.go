package memory

import (
	"sort"

	"taskpilot/internal/domain/entity"
)

// BuildKnowledge derives guidance from already-ranked similar experiences.
func BuildKnowledge(similar []entity.Experience) *entity.Knowledge {
	k := &entity.Knowledge{
		SimilarTasks:       make([]entity.SimilarTask, 0, len(similar)),
		BestPractices:      bestPractices(similar),
		CommonMistakes:     commonMistakes(similar),
		RecommendedActions: recommendedActions(similar),
	}
	for _, exp := range similar {
		actions := exp.LearnedPatterns.SuccessfulActions
		if len(actions) > similarTaskActions {
			actions = actions[:similarTaskActions]
		}
		k.SimilarTasks = append(k.SimilarTasks, entity.SimilarTask{
			Description:     exp.Task.Description,
			Success:         exp.Result.Success,
			Actions:         actions,
			CommonSelectors: exp.LearnedPatterns.CommonSelectors,
		})
	}
	return k
}

func successful(exps []entity.Experience) []entity.Experience {
	var out []entity.Experience
	for _, exp := range exps {
		if exp.Result.Success {
			out = append(out, exp)
		}
	}
	return out
}

func bestPractices(exps []entity.Experience) entity.BestPractices {
	bp := entity.BestPractices{
		SuccessfulSelectors: map[string]int{},
		ActionSequences:     [][]entity.SequenceStep{},
	}

	ok := successful(exps)
	if len(ok) == 0 {
		return bp
	}

	var totalTime, totalSteps float64
	for _, exp := range ok {
		for sel, n := range exp.LearnedPatterns.CommonSelectors {
			bp.SuccessfulSelectors[sel] += n
		}

		var seq []entity.SequenceStep
		for _, step := range exp.Actions {
			if step.Succeeded() {
				seq = append(seq, entity.SequenceStep{Type: step.Action.Type, Selector: step.Action.Locator()})
			}
		}
		if len(seq) > 0 {
			bp.ActionSequences = append(bp.ActionSequences, seq)
		}

		totalTime += float64(exp.Performance.ExecutionTimeMs)
		totalSteps += float64(exp.Performance.StepsCount)
	}
	bp.Timing.AverageWaitTime = totalTime / float64(len(ok))
	bp.Timing.AverageSteps = totalSteps / float64(len(ok))
	return bp
}

// commonMistakes counts failed actions across every retrieved experience,
// including ones that succeeded overall.
func commonMistakes(exps []entity.Experience) []entity.Mistake {
	counts := map[string]int{}
	var order []string
	for _, exp := range exps {
		for _, failed := range exp.LearnedPatterns.FailedActions {
			sel := failed.Selector
			if sel == "" {
				sel = "unknown"
			}
			key := string(failed.Type) + ":" + sel
			if _, seen := counts[key]; !seen {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	mistakes := make([]entity.Mistake, 0, len(order))
	for _, key := range order {
		mistakes = append(mistakes, entity.Mistake{Action: key, Count: counts[key]})
	}
	sort.SliceStable(mistakes, func(i, j int) bool { return mistakes[i].Count > mistakes[j].Count })
	if len(mistakes) > maxMistakes {
		mistakes = mistakes[:maxMistakes]
	}
	return mistakes
}

type actionKey struct {
	typ      entity.ActionType
	selector string
}

type actionFrequency struct {
	key      actionKey
	count    int
	position int
	seenAt   int64
}

// recommendedActions ranks successful actions by frequency. Confidence is
// occurrences over successful experiences, which can exceed 1 when an
// action repeats within one run; it is capped at 1. Position is the step
// index of the most recent occurrence.
func recommendedActions(exps []entity.Experience) []entity.Recommendation {
	ok := successful(exps)
	if len(ok) == 0 {
		return []entity.Recommendation{}
	}

	freq := map[actionKey]*actionFrequency{}
	var order []*actionFrequency
	for _, exp := range ok {
		seenAt := exp.Timestamp.UnixNano()
		for i, step := range exp.Actions {
			if !step.Succeeded() {
				continue
			}
			key := actionKey{typ: step.Action.Type, selector: step.Action.Selector}
			f, found := freq[key]
			if !found {
				f = &actionFrequency{key: key, position: i, seenAt: seenAt}
				freq[key] = f
				order = append(order, f)
			}
			f.count++
			if seenAt > f.seenAt || (seenAt == f.seenAt && i > f.position) {
				f.position = i
				f.seenAt = seenAt
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].count > order[j].count })
	if len(order) > maxRecommendations {
		order = order[:maxRecommendations]
	}

	recs := make([]entity.Recommendation, 0, len(order))
	for _, f := range order {
		var sel *string
		if f.key.selector != "" {
			s := f.key.selector
			sel = &s
		}
		confidence := float64(f.count) / float64(len(ok))
		if confidence > 1 {
			confidence = 1
		}
		recs = append(recs, entity.Recommendation{
			Type:              f.key.typ,
			Selector:          sel,
			Confidence:        confidence,
			SuggestedPosition: f.position,
		})
	}
	return recs
}
