package entity

import "time"

type TaskResult struct {
	Success         bool            `json:"success"`
	Skipped         bool            `json:"skipped,omitempty"`
	DepthExceeded   bool            `json:"depthExceeded,omitempty"`
	Depth           int             `json:"depth,omitempty"`
	Message         string          `json:"message,omitempty"`
	Error           string          `json:"error,omitempty"`
	URL             string          `json:"url,omitempty"`
	ExecutionTimeMs int64           `json:"executionTime"`
	Page            *AnalysisRecord `json:"page,omitempty"`
	Download        *DownloadResult `json:"download,omitempty"`
	Search          *SearchResult   `json:"search,omitempty"`
	Extracted       *ExtractedData  `json:"extracted,omitempty"`
	Chain           *ChainResult    `json:"chain,omitempty"`
	Autonomous      *LoopResult     `json:"autonomous,omitempty"`
	NextTasks       []Task          `json:"nextTasks,omitempty"`
}

// Steps returns the perception-action step log, if the task produced one.
func (r *TaskResult) Steps() []ActionStep {
	if r == nil || r.Autonomous == nil {
		return nil
	}
	return r.Autonomous.Steps
}

type AnalysisKind string

const (
	AnalysisPage       AnalysisKind = "page"
	AnalysisAutonomous AnalysisKind = "autonomous_task"
)

type AnalysisRecord struct {
	Kind      AnalysisKind `json:"kind"`
	URL       string       `json:"url,omitempty"`
	Title     string       `json:"title,omitempty"`
	Content   string       `json:"content,omitempty"`
	Links     []Link       `json:"links,omitempty"`
	Analysis  string       `json:"analysis,omitempty"`
	Task      string       `json:"task,omitempty"`
	Steps     int          `json:"steps,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type DownloadRecord struct {
	URL       string    `json:"url"`
	FileName  string    `json:"fileName"`
	Location  string    `json:"location,omitempty"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

type DownloadResult struct {
	DownloadRecord
	ContentType string `json:"contentType,omitempty"`
	Preview     string `json:"preview,omitempty"`
}

type SearchResult struct {
	Query   string `json:"query"`
	Results []Link `json:"results"`
}

type ExtractedData struct {
	Title  string              `json:"title,omitempty"`
	Text   string              `json:"text,omitempty"`
	HTML   string              `json:"html,omitempty"`
	Links  []Link              `json:"links,omitempty"`
	Images []Image             `json:"images,omitempty"`
	Custom map[string][]string `json:"custom,omitempty"`
}

type ChainResult struct {
	Results   []TaskResult `json:"results"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
}

type LoopResult struct {
	Success         bool            `json:"success"`
	Error           string          `json:"error,omitempty"`
	Steps           []ActionStep    `json:"steps"`
	Results         []ActionOutcome `json:"results,omitempty"`
	FinalScreenshot *ScreenshotRef  `json:"finalScreenshot,omitempty"`
}
