package entity

type SimilarTask struct {
	Description     string          `json:"description"`
	Success         bool            `json:"success"`
	Actions         []PatternAction `json:"actions"`
	CommonSelectors map[string]int  `json:"commonSelectors"`
}

type SequenceStep struct {
	Type     ActionType `json:"type"`
	Selector string     `json:"selector,omitempty"`
}

type Timing struct {
	AverageWaitTime float64 `json:"averageWaitTime"`
	AverageSteps    float64 `json:"averageSteps"`
}

type BestPractices struct {
	SuccessfulSelectors map[string]int   `json:"successfulSelectors"`
	ActionSequences     [][]SequenceStep `json:"actionSequences"`
	Timing              Timing           `json:"timing"`
}

type Mistake struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

type Recommendation struct {
	Type              ActionType `json:"type"`
	Selector          *string    `json:"selector"`
	Confidence        float64    `json:"confidence"`
	SuggestedPosition int        `json:"suggestedPosition"`
}

// Knowledge is derived on demand and never persisted.
type Knowledge struct {
	SimilarTasks       []SimilarTask    `json:"similarTasks"`
	BestPractices      BestPractices    `json:"bestPractices"`
	CommonMistakes     []Mistake        `json:"commonMistakes"`
	RecommendedActions []Recommendation `json:"recommendedActions"`
}

func (k *Knowledge) Empty() bool {
	return k == nil || (len(k.RecommendedActions) == 0 && len(k.CommonMistakes) == 0)
}

type MemoryStats struct {
	TotalExperiences int     `json:"totalExperiences"`
	Successful       int     `json:"successful"`
	Failed           int     `json:"failed"`
	SuccessRate      float64 `json:"successRate"`
	UniqueTasks      int     `json:"uniqueTasks"`
	UniqueURLs       int     `json:"uniqueUrls"`
	MemorySize       int     `json:"memorySize"`
	OldestExperience *string `json:"oldestExperience"`
	NewestExperience *string `json:"newestExperience"`
}
