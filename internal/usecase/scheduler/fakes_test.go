package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/logger"
	"taskpilot/internal/infrastructure/store"
	"taskpilot/internal/usecase/memory"

	"github.com/stretchr/testify/require"
)

type fakeTabs struct {
	mu       sync.Mutex
	seq      int
	urls     map[output.TabHandle]string
	opened   []string
	closed   []output.TabHandle
	slowURLs map[string]bool
}

func newFakeTabs() *fakeTabs {
	return &fakeTabs{urls: map[output.TabHandle]string{}, slowURLs: map[string]bool{}}
}

func (f *fakeTabs) Open(_ context.Context, url string, _ bool) (output.TabHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	h := output.TabHandle(fmt.Sprintf("tab-%d", f.seq))
	f.urls[h] = url
	f.opened = append(f.opened, url)
	return h, nil
}

func (f *fakeTabs) Navigate(_ context.Context, h output.TabHandle, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls[h] = url
	return nil
}

func (f *fakeTabs) WaitForLoad(_ context.Context, h output.TabHandle, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slowURLs[f.urls[h]] {
		return output.ErrLoadTimeout
	}
	return nil
}

func (f *fakeTabs) RunInPage(context.Context, output.TabHandle, string, ...any) (json.RawMessage, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeTabs) CaptureVisual(_ context.Context, h output.TabHandle) (*entity.Screenshot, error) {
	return &entity.Screenshot{URL: f.url(h), Timestamp: time.Now()}, nil
}

func (f *fakeTabs) Close(_ context.Context, h output.TabHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, h)
	return nil
}

func (f *fakeTabs) Active(context.Context) (output.TabHandle, error) {
	return "tab-active", nil
}

func (f *fakeTabs) url(h output.TabHandle) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.urls[h]
}

func (f *fakeTabs) counts() (opened, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened), len(f.closed)
}

// fakePage serves every URL with a small page; links are set per URL.
type fakePage struct {
	tabs  *fakeTabs
	mu    sync.Mutex
	links map[string][]entity.Link
}

func (p *fakePage) Content(_ context.Context, h output.TabHandle) (*entity.PageContent, error) {
	u := p.tabs.url(h)
	return &entity.PageContent{URL: u, Title: "Page " + u, Text: "Welcome to " + u}, nil
}

func (p *fakePage) Links(_ context.Context, h output.TabHandle) ([]entity.Link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.links[p.tabs.url(h)], nil
}

func (p *fakePage) Inspect(_ context.Context, h output.TabHandle) (*entity.PageInfo, error) {
	return &entity.PageInfo{URL: p.tabs.url(h)}, nil
}

func (p *fakePage) Extract(_ context.Context, h output.TabHandle, sel entity.Selectors) (*entity.ExtractedData, error) {
	data := &entity.ExtractedData{}
	if sel.Title {
		data.Title = "Page " + p.tabs.url(h)
	}
	return data, nil
}

func (p *fakePage) Perform(context.Context, output.TabHandle, entity.Action) (entity.ActionResult, error) {
	return entity.ActionResult{Success: true}, nil
}

type fakeLLM struct {
	answer string
	err    error
}

func (l *fakeLLM) Chat(context.Context, output.ChatRequest) (*output.ChatResponse, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &output.ChatResponse{Content: l.answer}, nil
}

// gateLoop blocks every run until release is closed.
type gateLoop struct {
	mu      sync.Mutex
	release chan struct{}
	reqs    []input.LoopRequest
}

func newGateLoop() *gateLoop {
	return &gateLoop{release: make(chan struct{})}
}

func (g *gateLoop) Run(ctx context.Context, req input.LoopRequest) *entity.LoopResult {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	select {
	case <-g.release:
	case <-ctx.Done():
		return &entity.LoopResult{Error: ctx.Err().Error()}
	}
	return &entity.LoopResult{
		Success:         true,
		Steps:           []entity.ActionStep{{Kind: entity.StepScreenshot}},
		FinalScreenshot: &entity.ScreenshotRef{URL: req.URL},
	}
}

func (g *gateLoop) requests() []input.LoopRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]input.LoopRequest(nil), g.reqs...)
}

type fakeDownloader struct {
	file *output.FetchedFile
	err  error
}

func (d *fakeDownloader) Download(context.Context, string) (*output.FetchedFile, error) {
	return d.file, d.err
}

type fakeSink struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (s *fakeSink) Save(_ context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[name] = data
	return "/downloads/" + name, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	queued   []string
	started  []string
	finished []entity.TaskStatus
}

func (o *recordingObserver) TaskQueued(t entity.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queued = append(o.queued, t.ID)
}

func (o *recordingObserver) TaskStarted(t entity.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, t.ID)
}

func (o *recordingObserver) TaskFinished(t entity.Task, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, t.Status)
}

func (o *recordingObserver) startedIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.started...)
}

type harness struct {
	uc       *UseCase
	tabs     *fakeTabs
	page     *fakePage
	llm      *fakeLLM
	loop     *gateLoop
	store    *store.MemoryStore
	memory   *memory.UseCase
	observer *recordingObserver
	sink     *fakeSink
	download *fakeDownloader
}

func newHarness(t *testing.T, mutate func(*Config, *Deps)) *harness {
	h := newHarnessOn(store.NewMemoryStore(), mutate)
	t.Cleanup(func() { h.shutdown(t) })
	return h
}

func newHarnessOn(st *store.MemoryStore, mutate func(*Config, *Deps)) *harness {
	log := logger.NewNop()
	tabs := newFakeTabs()
	h := &harness{
		tabs:     tabs,
		page:     &fakePage{tabs: tabs, links: map[string][]entity.Link{}},
		llm:      &fakeLLM{answer: "A page about testing."},
		loop:     newGateLoop(),
		store:    st,
		memory:   memory.New(st, log, memory.DefaultConfig()),
		observer: &recordingObserver{},
		sink:     &fakeSink{},
		download: &fakeDownloader{},
	}

	cfg := DefaultConfig()
	cfg.TaskInterval = 0
	deps := Deps{
		Store:      st,
		Memory:     h.memory,
		Tabs:       h.tabs,
		Page:       h.page,
		LLM:        h.llm,
		Loop:       h.loop,
		Downloader: h.download,
		Sink:       h.sink,
		Logger:     log,
		Observers:  []output.TaskObserver{h.observer},
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	h.uc = New(deps, cfg)
	return h
}

func (h *harness) shutdown(t require.TestingT) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.uc.Shutdown(ctx))
}

// drain waits until the worker has gone idle.
func (h *harness) drain(t require.TestingT) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.uc.Wait(ctx))
}

func (h *harness) add(t require.TestingT, params entity.TaskParams) string {
	id, err := h.uc.AddTask(context.Background(), entity.NewTask(params))
	require.NoError(t, err)
	return id
}

func (h *harness) finished(id string) (entity.Task, bool) {
	for _, t := range h.uc.History() {
		if t.ID == id {
			return t, true
		}
	}
	return entity.Task{}, false
}
