//go:build integration

// Package integration drives the scheduler through a real browser against
// local test servers. Run with: go test -tags integration ./test/integration
package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/browser/page"
	"taskpilot/internal/infrastructure/browser/rod"
	"taskpilot/internal/infrastructure/fetch"
	"taskpilot/internal/infrastructure/llm/compat"
	"taskpilot/internal/infrastructure/llm/guard"
	"taskpilot/internal/infrastructure/logger"
	"taskpilot/internal/infrastructure/store"
	"taskpilot/internal/usecase/memory"
	"taskpilot/internal/usecase/perception"
	"taskpilot/internal/usecase/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func site(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html><html><head><title>Home</title></head>
<body><h1>Welcome</h1><a href="/a">Page A</a><a href="/b">Page B</a></body></html>`)
	})
	for _, p := range []string{"/a", "/b"} {
		name := p
		mux.HandleFunc(name, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<!DOCTYPE html><html><head><title>%s</title></head><body><p>leaf</p></body></html>`, name)
		})
	}
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 test"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func chatServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"A small test site."}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newScheduler(t *testing.T, downloads string) *scheduler.UseCase {
	t.Helper()
	if os.Getenv("TASKPILOT_BROWSER_TESTS") == "" {
		t.Skip("set TASKPILOT_BROWSER_TESTS=1 to run browser-backed tests")
	}
	log := logger.NewNop()

	bcfg := rod.DefaultConfig()
	bcfg.SlowMotion = 0
	tabs, err := rod.NewTabController(context.Background(), bcfg, log)
	require.NoError(t, err)
	t.Cleanup(tabs.Shutdown)

	llmCfg := compat.DefaultConfig(chatServer(t).URL, "test")
	gcfg := guard.DefaultConfig()
	gcfg.RequestsPerSecond = 0
	llm := guard.New(compat.NewAdapter(llmCfg), gcfg)

	driver := page.NewDriver(tabs, log)
	st := store.NewMemoryStore()

	cfg := scheduler.DefaultConfig()
	cfg.TaskInterval = 0
	cfg.MaxDepth = 2
	cfg.LoadTimeout = 15 * time.Second

	uc := scheduler.New(scheduler.Deps{
		Store:      st,
		Memory:     memory.New(st, log, memory.DefaultConfig()),
		Tabs:       tabs,
		Page:       driver,
		LLM:        llm,
		Loop:       perception.New(tabs, driver, llm, log, perception.DefaultConfig()),
		Downloader: fetch.NewHTTPDownloader(fetch.DefaultConfig()),
		Sink:       fetch.NewDirSink(downloads),
		Logger:     log,
		Observers:  []output.TaskObserver{},
	}, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = uc.Shutdown(ctx)
	})
	return uc
}

func drain(t *testing.T, uc *scheduler.UseCase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	require.NoError(t, uc.Wait(ctx))
}

func TestAnalyzeWithAutoFollow(t *testing.T) {
	srv := site(t)
	uc := newScheduler(t, t.TempDir())
	ctx := context.Background()

	_, err := uc.AddTask(ctx, entity.NewTask(&entity.AnalyzeURLParams{
		URL:     srv.URL + "/",
		Options: entity.AnalyzeOptions{AutoFollow: true, MaxFollow: 2},
	}))
	require.NoError(t, err)
	drain(t, uc)

	history := uc.History()
	require.Len(t, history, 3, "root page plus both children")
	for _, task := range history {
		assert.Equal(t, entity.TaskStatusCompleted, task.Status, task.URL())
	}

	analyses := uc.Analyses()
	require.NotEmpty(t, analyses)
	assert.Equal(t, "Home", analyses[0].Title)
	assert.Equal(t, "A small test site.", analyses[0].Analysis)
	assert.Equal(t, 3, uc.Stats().VisitedURLs)
}

func TestDownloadFile(t *testing.T) {
	srv := site(t)
	dir := t.TempDir()
	uc := newScheduler(t, dir)

	_, err := uc.AddTask(context.Background(), entity.NewTask(&entity.DownloadFileParams{URL: srv.URL + "/report.pdf"}))
	require.NoError(t, err)
	drain(t, uc)

	history := uc.History()
	require.Len(t, history, 1)
	assert.Equal(t, entity.TaskStatusCompleted, history[0].Status)

	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))
}
