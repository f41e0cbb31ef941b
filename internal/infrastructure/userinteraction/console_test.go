package userinteraction

import (
	"bytes"
	"testing"
	"time"

	"taskpilot/internal/domain/entity"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestConsoleReporter_Lifecycle(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)

	task := entity.NewTask(&entity.SearchParams{Query: "golang"})
	r.TaskQueued(task)
	r.TaskStarted(task)

	task.Status = entity.TaskStatusCompleted
	task.Result = &entity.TaskResult{Success: true, Search: &entity.SearchResult{Query: "golang", Results: make([]entity.Link, 3)}}
	r.TaskFinished(task, 1200*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "Search queued (Query: golang)")
	assert.Contains(t, out, "ok Found 3 results (1.2s)")
}

func TestConsoleReporter_Failure(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)

	task := entity.NewTask(&entity.AnalyzeURLParams{URL: "https://example.com"})
	task.Status = entity.TaskStatusFailed
	task.Error = "tab load timeout"
	r.TaskFinished(task, time.Second)

	assert.Contains(t, buf.String(), "x Error: tab load timeout")
}

func TestFormatTaskResult(t *testing.T) {
	tests := []struct {
		name string
		task entity.Task
		want string
	}{
		{
			name: "skipped",
			task: entity.Task{Type: entity.TaskAnalyzeURL, Result: &entity.TaskResult{Skipped: true}},
			want: "skipped, already visited",
		},
		{
			name: "depth",
			task: entity.Task{Type: entity.TaskFollowLinks, Result: &entity.TaskResult{DepthExceeded: true, Depth: 5}},
			want: "maximum depth reached (5)",
		},
		{
			name: "chain",
			task: entity.Task{Type: entity.TaskChain, Result: &entity.TaskResult{Success: true, Chain: &entity.ChainResult{Completed: 1, Total: 2}}},
			want: "Completed 1/2",
		},
		{
			name: "no result",
			task: entity.Task{Type: entity.TaskChain},
			want: "done",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTaskResult(tt.task))
		})
	}
}
