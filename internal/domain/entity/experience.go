package entity

import "time"

const MemorySchemaVersion = 1

type ExperienceTask struct {
	Type        TaskType `json:"type"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Goal        string   `json:"goal,omitempty"`
}

type ExperienceResult struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	ScreenshotSaved bool   `json:"screenshotSaved,omitempty"`
}

type ExperienceContext struct {
	PageInfo    *PageInfo      `json:"pageInfo,omitempty"`
	VisitedURLs []string       `json:"visitedUrls"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type Performance struct {
	StepsCount      int   `json:"stepsCount"`
	ExecutionTimeMs int64 `json:"executionTime"`
	SuccessRate     int   `json:"successRate"`
}

type PatternAction struct {
	Type     ActionType     `json:"type"`
	Selector string         `json:"selector,omitempty"`
	Options  map[string]any `json:"context,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type ElementCounts struct {
	Buttons int `json:"buttons"`
	Inputs  int `json:"inputs"`
	Links   int `json:"links"`
}

type PageStructure struct {
	URL           string        `json:"url"`
	ElementsCount ElementCounts `json:"elementsCount"`
}

type LearnedPatterns struct {
	SuccessfulActions []PatternAction `json:"successfulActions"`
	FailedActions     []PatternAction `json:"failedActions"`
	CommonSelectors   map[string]int  `json:"commonSelectors"`
	PageStructures    []PageStructure `json:"pageStructures"`
}

func NewLearnedPatterns() LearnedPatterns {
	return LearnedPatterns{
		SuccessfulActions: []PatternAction{},
		FailedActions:     []PatternAction{},
		CommonSelectors:   map[string]int{},
		PageStructures:    []PageStructure{},
	}
}

// Experience is immutable once saved.
type Experience struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Task            ExperienceTask    `json:"task"`
	Actions         []ActionStep      `json:"actions"`
	Result          ExperienceResult  `json:"result"`
	Context         ExperienceContext `json:"context"`
	Performance     Performance       `json:"performance"`
	LearnedPatterns LearnedPatterns   `json:"learnedPatterns"`
}

type Memory struct {
	Version     int          `json:"version"`
	Experiences []Experience `json:"experiences"`
	AgentState  *AgentState  `json:"agentState"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Normalize fills defaults for blobs written by older versions.
func (m *Memory) Normalize(now time.Time) {
	if m.Version == 0 {
		m.Version = MemorySchemaVersion
	}
	if m.Experiences == nil {
		m.Experiences = []Experience{}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	for i := range m.Experiences {
		lp := &m.Experiences[i].LearnedPatterns
		if lp.CommonSelectors == nil {
			lp.CommonSelectors = map[string]int{}
		}
	}
}

type StateContext struct {
	VisitedURLs          []string         `json:"visitedUrls"`
	DownloadedFiles      []DownloadRecord `json:"downloadedFiles"`
	AnalysisResults      []AnalysisRecord `json:"analysisResults,omitempty"`
	AnalysisResultsCount int              `json:"analysisResultsCount"`
}

type AgentState struct {
	TaskQueue   []Task       `json:"taskQueue"`
	Context     StateContext `json:"context"`
	IsRunning   bool         `json:"isRunning"`
	CurrentTask *TaskSummary `json:"currentTask"`
	SavedAt     time.Time    `json:"savedAt"`
}
