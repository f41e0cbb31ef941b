package userinteraction

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.TaskObserver = (*ConsoleReporter)(nil)

// ConsoleReporter prints scheduler progress for people watching a terminal.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: color.Output}
}

func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleReporter{out: w}
}

func (r *ConsoleReporter) TaskQueued(task entity.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dim := color.New(color.Faint)
	icon, name := getTaskDisplay(task.Type)
	dim.Fprintf(r.out, "+ %s %s queued", icon, name)
	if summary := formatTaskParams(task); summary != "" {
		dim.Fprintf(r.out, " (%s)", summary)
	}
	fmt.Fprintln(r.out)
}

func (r *ConsoleReporter) TaskStarted(task entity.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	icon, name := getTaskDisplay(task.Type)
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(r.out, "\n%s %s\n", icon, name)

	if summary := formatTaskParams(task); summary != "" {
		dim := color.New(color.Faint)
		dim.Fprintf(r.out, "   %s\n", summary)
	}
}

func (r *ConsoleReporter) TaskFinished(task entity.Task, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.Status == entity.TaskStatusFailed {
		red := color.New(color.FgRed)
		red.Fprint(r.out, "x Error: ")

		dim := color.New(color.Faint)
		dim.Fprintln(r.out, truncate(task.Error, 300))
		return
	}

	green := color.New(color.FgGreen)
	green.Fprintf(r.out, "ok %s (%s)\n", formatTaskResult(task), elapsed.Round(time.Millisecond))
}

func getTaskDisplay(t entity.TaskType) (string, string) {
	displays := map[entity.TaskType][2]string{
		entity.TaskAnalyzeURL:        {"🌐", "Analyze URL"},
		entity.TaskFollowLinks:       {"🔗", "Follow links"},
		entity.TaskDownloadFile:      {"📥", "Download"},
		entity.TaskSearchAnalyze:     {"🔎", "Search"},
		entity.TaskExtractData:       {"🔍", "Extract data"},
		entity.TaskChain:             {"⛓", "Chain"},
		entity.TaskAutonomousBrowser: {"🤖", "Autonomous task"},
	}

	if display, ok := displays[t]; ok {
		return display[0], display[1]
	}
	return "🔧", string(t)
}

func formatTaskParams(task entity.Task) string {
	switch p := task.Params.(type) {
	case *entity.AnalyzeURLParams:
		if p.Options.AutoFollow {
			return fmt.Sprintf("URL: %s (depth %d, follow %d)", truncate(p.URL, 80), p.Options.Depth, p.Options.MaxFollow)
		}
		return fmt.Sprintf("URL: %s", truncate(p.URL, 80))

	case *entity.FollowLinksParams:
		return fmt.Sprintf("Start: %s (depth %d)", truncate(p.StartURL, 80), p.Depth)

	case *entity.DownloadFileParams:
		return fmt.Sprintf("URL: %s", truncate(p.URL, 80))

	case *entity.SearchParams:
		return fmt.Sprintf("Query: %s", truncate(p.Query, 60))

	case *entity.ExtractDataParams:
		return fmt.Sprintf("URL: %s", truncate(p.URL, 80))

	case *entity.ChainParams:
		return fmt.Sprintf("Batch: %d tasks", len(p.Tasks))

	case *entity.AutonomousParams:
		goal := task.Label()
		if p.URL != "" {
			return fmt.Sprintf("Goal: %s | URL: %s", truncate(goal, 60), truncate(p.URL, 60))
		}
		return fmt.Sprintf("Goal: %s", truncate(goal, 60))
	}
	return ""
}

func formatTaskResult(task entity.Task) string {
	res := task.Result
	if res == nil {
		return "done"
	}

	switch {
	case res.Skipped:
		return "skipped, already visited"
	case res.DepthExceeded:
		return fmt.Sprintf("maximum depth reached (%d)", res.Depth)
	case !res.Success:
		return fmt.Sprintf("finished without success: %s", truncate(res.Error, 100))
	}

	switch task.Type {
	case entity.TaskAnalyzeURL, entity.TaskFollowLinks:
		if res.Page != nil {
			return fmt.Sprintf("%s | %d links | %d follow-ups", truncate(res.Page.Title, 60), len(res.Page.Links), len(res.NextTasks))
		}

	case entity.TaskDownloadFile:
		if res.Download != nil {
			return fmt.Sprintf("%s (%d bytes)", res.Download.FileName, res.Download.Size)
		}

	case entity.TaskSearchAnalyze:
		if res.Search != nil {
			return fmt.Sprintf("Found %d results", len(res.Search.Results))
		}

	case entity.TaskChain:
		if res.Chain != nil {
			return fmt.Sprintf("Completed %d/%d", res.Chain.Completed, res.Chain.Total)
		}

	case entity.TaskAutonomousBrowser:
		if res.Autonomous != nil {
			return fmt.Sprintf("%d actions | %d steps", len(res.Autonomous.Results), len(res.Autonomous.Steps))
		}
	}

	if res.Message != "" {
		return truncate(res.Message, 100)
	}
	return "done"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
