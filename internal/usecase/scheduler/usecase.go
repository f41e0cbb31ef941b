package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"

	"github.com/google/uuid"
)

var _ input.TaskScheduler = (*UseCase)(nil)

var ErrUnknownTaskType = errors.New("unknown task type")

const (
	DefaultStateKey = "agentState"

	defaultMaxDepth    = 5
	defaultHistorySize = 100
)

type Config struct {
	StateKey     string
	MaxDepth     int
	TaskInterval time.Duration
	HistorySize  int
	LoadTimeout  time.Duration
	// Learning turns knowledge lookup and experience recording on.
	Learning bool

	SearchURL          string
	AnalysisModel      string
	AnalysisTemp       float32
	AnalysisMaxTokens  int
	DefaultMaxFollow   int
	DefaultMaxLinks    int
	DefaultMaxResults  int
	MaxAnalysisContent int
	MaxAnalysisLinks   int

	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		StateKey:           DefaultStateKey,
		MaxDepth:           defaultMaxDepth,
		TaskInterval:       time.Second,
		HistorySize:        defaultHistorySize,
		LoadTimeout:        30 * time.Second,
		Learning:           true,
		SearchURL:          "https://html.duckduckgo.com/html/?q=",
		AnalysisModel:      "gemma-3-12b",
		AnalysisTemp:       0.7,
		AnalysisMaxTokens:  1000,
		DefaultMaxFollow:   5,
		DefaultMaxLinks:    10,
		DefaultMaxResults:  5,
		MaxAnalysisContent: 5000,
		MaxAnalysisLinks:   20,
		Now:                time.Now,
	}
}

// Deps are the collaborators a scheduler drives. Memory and Loop may be nil:
// without memory nothing is learned, without a loop autonomous tasks fail.
type Deps struct {
	Store      output.PersistentStore
	Memory     input.ExperienceMemory
	Tabs       output.TabController
	Page       output.PageDriver
	LLM        output.LLMPort
	Loop       input.PerceptionLoop
	Downloader output.Downloader
	Sink       output.FileSink
	Logger     output.LoggerPort
	Observers  []output.TaskObserver
}

// UseCase is the single-worker task scheduler. Every mutation of the queue
// and the shared context goes through its methods under mu; handlers only
// return data.
type UseCase struct {
	deps   Deps
	logger output.LoggerPort
	cfg    Config

	mu            sync.Mutex
	queue         []entity.Task
	running       bool
	stopRequested bool
	current       *entity.Task
	visited       map[string]struct{}
	visitedOrder  []string
	downloads     []entity.DownloadRecord
	analyses      []entity.AnalysisRecord
	history       []entity.Task

	restoreOnce sync.Once

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(deps Deps, cfg Config) *UseCase {
	def := DefaultConfig()
	if cfg.StateKey == "" {
		cfg.StateKey = def.StateKey
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = def.LoadTimeout
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = def.SearchURL
	}
	if cfg.DefaultMaxFollow <= 0 {
		cfg.DefaultMaxFollow = def.DefaultMaxFollow
	}
	if cfg.DefaultMaxLinks <= 0 {
		cfg.DefaultMaxLinks = def.DefaultMaxLinks
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = def.DefaultMaxResults
	}
	if cfg.MaxAnalysisContent <= 0 {
		cfg.MaxAnalysisContent = def.MaxAnalysisContent
	}
	if cfg.MaxAnalysisLinks <= 0 {
		cfg.MaxAnalysisLinks = def.MaxAnalysisLinks
	}
	if cfg.AnalysisMaxTokens <= 0 {
		cfg.AnalysisMaxTokens = def.AnalysisMaxTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	base, cancel := context.WithCancel(context.Background())
	return &UseCase{
		deps:    deps,
		logger:  deps.Logger.WithField("component", "scheduler"),
		cfg:     cfg,
		visited: make(map[string]struct{}),
		baseCtx: base,
		cancel:  cancel,
	}
}

// AddTask queues a task and wakes the worker if it is idle.
func (uc *UseCase) AddTask(ctx context.Context, task entity.Task) (string, error) {
	id := uc.enqueue(ctx, task)
	uc.Start(ctx)
	return id, nil
}

// enqueue appends to the queue without touching the worker, so tasks spawned
// by a running handler never cancel a pending stop. Every queued task gets a
// fresh id; only restored tasks keep the id they were saved with.
func (uc *UseCase) enqueue(ctx context.Context, task entity.Task) string {
	uc.mu.Lock()
	task.ID = uuid.NewString()
	if task.Version == 0 {
		task.Version = entity.TaskSchemaVersion
	}
	if task.Params != nil && task.Type == "" {
		task.Type = task.Params.Kind()
	}
	task.Status = entity.TaskStatusPending
	task.CreatedAt = uc.cfg.Now().UTC()
	task.CompletedAt = nil
	task.Error = ""
	task.Result = nil
	uc.queue = append(uc.queue, task)
	uc.mu.Unlock()

	uc.logger.Info("Task queued", "id", task.ID, "type", task.Type)
	uc.saveState(ctx)
	for _, o := range uc.deps.Observers {
		o.TaskQueued(task)
	}
	return task.ID
}

// Start launches the worker unless one is already running. The worker is
// detached from ctx; Shutdown is the way to cancel it.
func (uc *UseCase) Start(_ context.Context) {
	uc.mu.Lock()
	if uc.running {
		uc.stopRequested = false
		uc.mu.Unlock()
		return
	}
	uc.running = true
	uc.stopRequested = false
	uc.wg.Add(1)
	uc.mu.Unlock()

	go uc.loop(uc.baseCtx)
}

// Stop is coarse: the task in flight finishes, nothing after it starts.
func (uc *UseCase) Stop() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.running {
		uc.stopRequested = true
		uc.logger.Info("Stop requested")
	}
}

// Wait blocks until the worker has exited or ctx is done.
func (uc *UseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the worker and, if it does not exit before ctx is done,
// cancels the task in flight.
func (uc *UseCase) Shutdown(ctx context.Context) error {
	uc.Stop()
	err := uc.Wait(ctx)
	uc.cancel()
	if err != nil {
		return uc.Wait(context.Background())
	}
	return nil
}

func (uc *UseCase) Running() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.running && !uc.stopRequested
}

func (uc *UseCase) Stats() input.SchedulerStats {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	stats := input.SchedulerStats{
		QueueLength:     len(uc.queue),
		IsRunning:       uc.running && !uc.stopRequested,
		VisitedURLs:     len(uc.visitedOrder),
		DownloadedFiles: len(uc.downloads),
		AnalysisResults: len(uc.analyses),
	}
	if uc.current != nil {
		summary := uc.current.Summary()
		stats.CurrentTask = &summary
	}
	return stats
}

// History returns finished tasks, oldest first.
func (uc *UseCase) History() []entity.Task {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]entity.Task, len(uc.history))
	copy(out, uc.history)
	return out
}

// Analyses returns the recorded page and autonomous analyses.
func (uc *UseCase) Analyses() []entity.AnalysisRecord {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]entity.AnalysisRecord, len(uc.analyses))
	copy(out, uc.analyses)
	return out
}

// ClearHistory forgets visited URLs, downloads and analyses.
func (uc *UseCase) ClearHistory(ctx context.Context) error {
	uc.mu.Lock()
	uc.visited = make(map[string]struct{})
	uc.visitedOrder = nil
	uc.downloads = nil
	uc.analyses = nil
	uc.mu.Unlock()

	return uc.persistState(ctx)
}

// Restore merges the persisted scheduler state and the snapshot kept in
// memory into this scheduler. It runs at most once; later calls are no-ops.
// It reports whether unfinished tasks are waiting.
func (uc *UseCase) Restore(ctx context.Context) bool {
	uc.restoreOnce.Do(func() {
		if uc.deps.Memory != nil {
			if err := uc.deps.Memory.Init(ctx); err != nil {
				uc.logger.Warn("Memory init failed", "error", err)
			}
		}
		if state := uc.loadState(ctx); state != nil {
			uc.merge(state, true)
		}
		if uc.deps.Memory != nil {
			state, err := uc.deps.Memory.LoadAgentState(ctx)
			if err != nil {
				uc.logger.Warn("Agent snapshot unavailable", "error", err)
			} else if state != nil {
				uc.merge(state, false)
			}
		}
	})

	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.queue) > 0
}

func (uc *UseCase) loop(ctx context.Context) {
	defer uc.wg.Done()

	uc.Restore(ctx)
	uc.logger.Info("Scheduler started")

	for {
		task, ok := uc.next()
		if !ok {
			break
		}
		uc.saveState(ctx)

		uc.runTask(ctx, task)

		uc.mu.Lock()
		uc.current = nil
		uc.mu.Unlock()
		uc.saveState(ctx)
		uc.saveSnapshot(ctx)

		if err := sleep(ctx, uc.cfg.TaskInterval); err != nil {
			uc.mu.Lock()
			uc.running = false
			uc.stopRequested = false
			uc.mu.Unlock()
			break
		}
	}

	uc.saveSnapshot(context.WithoutCancel(ctx))
	uc.logger.Info("Scheduler stopped")
}

// next pops the queue head, or marks the worker idle when there is nothing
// to do or a stop was requested.
func (uc *UseCase) next() (entity.Task, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.stopRequested || len(uc.queue) == 0 {
		uc.running = false
		uc.stopRequested = false
		uc.current = nil
		return entity.Task{}, false
	}
	task := uc.queue[0]
	uc.queue[0] = entity.Task{}
	uc.queue = uc.queue[1:]
	task.Status = entity.TaskStatusRunning
	uc.current = &task
	return task, true
}

func (uc *UseCase) runTask(ctx context.Context, task entity.Task) {
	log := uc.logger.WithFields(map[string]any{"task": task.ID, "type": task.Type})
	log.Info("Task started", "description", task.Label())
	for _, o := range uc.deps.Observers {
		o.TaskStarted(task)
	}

	var knowledge *entity.Knowledge
	if uc.learning() {
		k, err := uc.deps.Memory.GetKnowledgeForTask(ctx, task)
		if err != nil {
			log.Warn("Knowledge lookup failed", "error", err)
		}
		knowledge = k
	}

	start := time.Now()
	res, err := uc.dispatchSafe(ctx, task, knowledge)
	elapsed := time.Since(start)

	finished := uc.cfg.Now().UTC()
	task.CompletedAt = &finished
	outcome := input.Outcome{ExecutionTime: elapsed}
	ectx := entity.ExperienceContext{VisitedURLs: uc.visitedURLs()}

	if err != nil {
		task.Status = entity.TaskStatusFailed
		task.Error = err.Error()
		outcome.Error = err.Error()
		log.Error("Task failed", "error", err, "elapsed", elapsed)
	} else {
		res.ExecutionTimeMs = elapsed.Milliseconds()
		task.Status = entity.TaskStatusCompleted
		task.Result = res
		outcome.Success = res.Success
		outcome.Error = res.Error
		outcome.Steps = res.Steps()
		outcome.ScreenshotSaved = res.Autonomous != nil && res.Autonomous.FinalScreenshot != nil
		ectx.PageInfo = lastPageInfo(outcome.Steps)
		log.Info("Task completed", "success", res.Success, "elapsed", elapsed)
	}

	if uc.learning() {
		if _, err := uc.deps.Memory.SaveExperience(ctx, task, outcome, ectx); err != nil {
			log.Warn("Experience not saved", "error", err)
		}
	}

	if res != nil {
		for _, next := range res.NextTasks {
			uc.enqueue(ctx, next)
		}
	}

	uc.mu.Lock()
	uc.history = append(uc.history, task)
	if over := len(uc.history) - uc.cfg.HistorySize; over > 0 {
		uc.history = append([]entity.Task(nil), uc.history[over:]...)
	}
	uc.mu.Unlock()

	for _, o := range uc.deps.Observers {
		o.TaskFinished(task, elapsed)
	}
}

// dispatchSafe turns a handler panic into a task failure.
func (uc *UseCase) dispatchSafe(ctx context.Context, task entity.Task, knowledge *entity.Knowledge) (res *entity.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("Task handler panicked", "task", task.ID, "panic", r, "stack", string(debug.Stack()))
			res, err = nil, fmt.Errorf("task handler panic: %v", r)
		}
	}()
	return uc.dispatch(ctx, task, knowledge)
}

func (uc *UseCase) learning() bool {
	return uc.cfg.Learning && uc.deps.Memory != nil
}

// markVisited records url and reports whether it was new.
func (uc *UseCase) markVisited(url string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, ok := uc.visited[url]; ok {
		return false
	}
	uc.visited[url] = struct{}{}
	uc.visitedOrder = append(uc.visitedOrder, url)
	return true
}

func (uc *UseCase) visitedURLs() []string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]string, len(uc.visitedOrder))
	copy(out, uc.visitedOrder)
	return out
}

func (uc *UseCase) recordAnalysis(rec entity.AnalysisRecord) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.analyses = append(uc.analyses, rec)
}

func (uc *UseCase) recordDownload(rec entity.DownloadRecord) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.downloads = append(uc.downloads, rec)
}

func (uc *UseCase) queuedLocked(id string) bool {
	for _, t := range uc.queue {
		if t.ID == id {
			return true
		}
	}
	return false
}

// state builds a snapshot. Full analysis records go to the store; the
// memory snapshot only carries their count.
func (uc *UseCase) state(full bool) entity.AgentState {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	queue := make([]entity.Task, len(uc.queue))
	copy(queue, uc.queue)
	visited := make([]string, len(uc.visitedOrder))
	copy(visited, uc.visitedOrder)
	downloads := make([]entity.DownloadRecord, len(uc.downloads))
	copy(downloads, uc.downloads)

	state := entity.AgentState{
		TaskQueue: queue,
		Context: entity.StateContext{
			VisitedURLs:          visited,
			DownloadedFiles:      downloads,
			AnalysisResultsCount: len(uc.analyses),
		},
		IsRunning: uc.running && !uc.stopRequested,
		SavedAt:   uc.cfg.Now().UTC(),
	}
	if full {
		state.Context.AnalysisResults = append([]entity.AnalysisRecord(nil), uc.analyses...)
	}
	if uc.current != nil {
		summary := uc.current.Summary()
		state.CurrentTask = &summary
	}
	return state
}

func (uc *UseCase) persistState(ctx context.Context) error {
	raw, err := json.Marshal(uc.state(true))
	if err != nil {
		return fmt.Errorf("encode scheduler state: %w", err)
	}
	if err := uc.deps.Store.Set(ctx, map[string]json.RawMessage{uc.cfg.StateKey: raw}); err != nil {
		return fmt.Errorf("save scheduler state: %w", err)
	}
	return nil
}

// saveState checkpoints to the store. Failures are logged; the queue keeps
// working from memory.
func (uc *UseCase) saveState(ctx context.Context) {
	if err := uc.persistState(ctx); err != nil {
		uc.logger.Warn("State checkpoint failed", "error", err)
	}
}

func (uc *UseCase) saveSnapshot(ctx context.Context) {
	if uc.deps.Memory == nil {
		return
	}
	if err := uc.deps.Memory.SaveAgentState(ctx, uc.state(false)); err != nil {
		uc.logger.Warn("Agent snapshot failed", "error", err)
	}
}

func (uc *UseCase) loadState(ctx context.Context) *entity.AgentState {
	values, err := uc.deps.Store.Get(ctx, uc.cfg.StateKey)
	if err != nil {
		uc.logger.Warn("Scheduler state unavailable", "error", err)
		return nil
	}
	raw, ok := values[uc.cfg.StateKey]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var state entity.AgentState
	if err := json.Unmarshal(raw, &state); err != nil {
		uc.logger.Warn("Scheduler state is corrupt, ignoring it", "error", err)
		return nil
	}
	return &state
}

// merge appends the unfinished tasks of a saved state that are not queued
// yet and unions its context into ours.
func (uc *UseCase) merge(state *entity.AgentState, withAnalyses bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	restored := 0
	for _, t := range state.TaskQueue {
		if t.Status != entity.TaskStatusPending && t.Status != entity.TaskStatusRunning {
			continue
		}
		if t.ID == "" || uc.queuedLocked(t.ID) {
			continue
		}
		t.Status = entity.TaskStatusPending
		uc.queue = append(uc.queue, t)
		restored++
	}

	for _, u := range state.Context.VisitedURLs {
		if _, ok := uc.visited[u]; !ok {
			uc.visited[u] = struct{}{}
			uc.visitedOrder = append(uc.visitedOrder, u)
		}
	}
	for _, d := range state.Context.DownloadedFiles {
		if !containsDownload(uc.downloads, d) {
			uc.downloads = append(uc.downloads, d)
		}
	}
	if withAnalyses {
		uc.analyses = append(uc.analyses, state.Context.AnalysisResults...)
	}

	if restored > 0 {
		uc.logger.Info("Tasks restored", "count", restored)
	}
}

func containsDownload(list []entity.DownloadRecord, d entity.DownloadRecord) bool {
	for _, x := range list {
		if x.URL == d.URL && x.FileName == d.FileName && x.Timestamp.Equal(d.Timestamp) {
			return true
		}
	}
	return false
}

// lastPageInfo returns the most recent page inspection of a step log.
func lastPageInfo(steps []entity.ActionStep) *entity.PageInfo {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Kind == entity.StepPageInfo && steps[i].PageInfo != nil {
			return steps[i].PageInfo
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
