package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"taskpilot/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCounts(t *testing.T) {
	o := NewObserver("taskpilot")
	task := entity.NewTask(&entity.AnalyzeURLParams{URL: "https://example.com"})

	o.TaskQueued(task)
	o.TaskStarted(task)
	assert.Equal(t, 1.0, testutil.ToFloat64(o.tasksRunning))

	task.Status = entity.TaskStatusCompleted
	o.TaskFinished(task, 1500*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(o.tasksQueued.WithLabelValues("analyze_url")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.tasksFinished.WithLabelValues("analyze_url", "completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(o.tasksRunning))
}

func TestObserverHandler(t *testing.T) {
	o := NewObserver("taskpilot")
	o.TaskQueued(entity.NewTask(&entity.SearchParams{Query: "go"}))

	rec := httptest.NewRecorder()
	o.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `taskpilot_tasks_queued_total{type="search_and_analyze"} 1`)
}
