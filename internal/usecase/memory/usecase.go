package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"

	"github.com/google/uuid"
)

var _ input.ExperienceMemory = (*UseCase)(nil)

const (
	DefaultKey     = "agentMemory"
	DefaultMaxSize = 1000

	similarForKnowledge = 3
	similarTaskActions  = 5
	maxMistakes         = 10
	maxRecommendations  = 5
)

// timestampLayout matches the millisecond ISO-8601 form used in exports.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Config struct {
	Key     string
	MaxSize int
	Now     func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Key:     DefaultKey,
		MaxSize: DefaultMaxSize,
		Now:     time.Now,
	}
}

// UseCase is the experience memory. All reads and writes go through the
// store as one JSON document; the mutex makes each read-modify-write atomic
// within this process.
type UseCase struct {
	store  output.PersistentStore
	logger output.LoggerPort
	cfg    Config
	mu     sync.Mutex
}

func New(store output.PersistentStore, logger output.LoggerPort, cfg Config) *UseCase {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &UseCase{
		store:  store,
		logger: logger.WithField("component", "memory"),
		cfg:    cfg,
	}
}

func (uc *UseCase) Init(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	mem, err := uc.load(ctx)
	if err != nil {
		return err
	}
	uc.logger.Info("Memory loaded", "experiences", len(mem.Experiences))
	return nil
}

func (uc *UseCase) SaveExperience(ctx context.Context, task entity.Task, outcome input.Outcome, ectx entity.ExperienceContext) (*entity.Experience, error) {
	steps := outcome.Steps
	if steps == nil {
		steps = []entity.ActionStep{}
	}
	if ectx.VisitedURLs == nil {
		ectx.VisitedURLs = []string{}
	}

	exp := entity.Experience{
		ID:        uuid.NewString(),
		Timestamp: uc.cfg.Now().UTC(),
		Task: entity.ExperienceTask{
			Type:        task.Type,
			Description: task.Label(),
			URL:         task.URL(),
			Goal:        task.Goal(),
		},
		Actions: steps,
		Result: entity.ExperienceResult{
			Success:         outcome.Success,
			Error:           outcome.Error,
			ScreenshotSaved: outcome.ScreenshotSaved,
		},
		Context: ectx,
		Performance: entity.Performance{
			StepsCount:      len(steps),
			ExecutionTimeMs: outcome.ExecutionTime.Milliseconds(),
			SuccessRate:     boolToInt(outcome.Success),
		},
		LearnedPatterns: ExtractPatterns(steps),
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	mem, err := uc.load(ctx)
	if err != nil {
		return nil, err
	}
	mem.Experiences = append(mem.Experiences, exp)
	if len(mem.Experiences) > uc.cfg.MaxSize {
		evicted := len(mem.Experiences) - uc.cfg.MaxSize
		mem.Experiences = Retain(mem.Experiences, uc.cfg.MaxSize)
		uc.logger.Debug("Memory trimmed", "evicted", evicted)
	}
	if err := uc.save(ctx, mem); err != nil {
		return nil, err
	}
	return &exp, nil
}

func (uc *UseCase) FindSimilarExperiences(ctx context.Context, task entity.Task, limit int) ([]entity.Experience, error) {
	mem, err := uc.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FindSimilar(mem.Experiences, task, limit), nil
}

func (uc *UseCase) GetKnowledgeForTask(ctx context.Context, task entity.Task) (*entity.Knowledge, error) {
	similar, err := uc.FindSimilarExperiences(ctx, task, similarForKnowledge)
	if err != nil {
		return nil, err
	}
	return BuildKnowledge(similar), nil
}

func (uc *UseCase) GetMemoryStats(ctx context.Context) (*entity.MemoryStats, error) {
	mem, err := uc.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	exps := mem.Experiences
	stats := &entity.MemoryStats{TotalExperiences: len(exps)}

	types := make(map[entity.TaskType]struct{})
	urls := make(map[string]struct{})
	for _, exp := range exps {
		if exp.Result.Success {
			stats.Successful++
		}
		types[exp.Task.Type] = struct{}{}
		if exp.Task.URL != "" {
			urls[exp.Task.URL] = struct{}{}
		}
	}
	stats.Failed = len(exps) - stats.Successful
	stats.UniqueTasks = len(types)
	stats.UniqueURLs = len(urls)
	if len(exps) > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(len(exps))
		oldest := exps[len(exps)-1].Timestamp.Format(timestampLayout)
		newest := exps[0].Timestamp.Format(timestampLayout)
		stats.OldestExperience = &oldest
		stats.NewestExperience = &newest
	}

	raw, err := json.Marshal(mem)
	if err != nil {
		return nil, fmt.Errorf("measure memory: %w", err)
	}
	stats.MemorySize = len(raw)
	return stats, nil
}

func (uc *UseCase) ClearMemory(ctx context.Context, keepSuccessful bool) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !keepSuccessful {
		if err := uc.store.Remove(ctx, uc.cfg.Key); err != nil {
			return fmt.Errorf("remove memory: %w", err)
		}
		uc.logger.Info("Memory cleared")
		_, err := uc.load(ctx)
		return err
	}

	mem, err := uc.load(ctx)
	if err != nil {
		return err
	}
	kept := make([]entity.Experience, 0, len(mem.Experiences))
	for _, exp := range mem.Experiences {
		if exp.Result.Success {
			kept = append(kept, exp)
		}
	}
	uc.logger.Info("Memory cleared", "kept", len(kept), "removed", len(mem.Experiences)-len(kept))
	mem.Experiences = kept
	return uc.save(ctx, mem)
}

func (uc *UseCase) ExportMemory(ctx context.Context) (string, error) {
	mem, err := uc.snapshot(ctx)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(mem, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export memory: %w", err)
	}
	return string(raw), nil
}

// ImportMemory replaces the stored memory wholesale. It reports false and
// leaves the store untouched when the blob does not parse.
func (uc *UseCase) ImportMemory(ctx context.Context, blob string) bool {
	var mem entity.Memory
	if err := json.Unmarshal([]byte(blob), &mem); err != nil {
		uc.logger.Warn("Memory import rejected", "error", err)
		return false
	}
	mem.Normalize(uc.cfg.Now().UTC())

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := uc.save(ctx, &mem); err != nil {
		uc.logger.Error("Memory import failed", "error", err)
		return false
	}
	uc.logger.Info("Memory imported", "experiences", len(mem.Experiences))
	return true
}

func (uc *UseCase) SaveAgentState(ctx context.Context, state entity.AgentState) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	mem, err := uc.load(ctx)
	if err != nil {
		return err
	}
	state.SavedAt = uc.cfg.Now().UTC()
	if state.TaskQueue == nil {
		state.TaskQueue = []entity.Task{}
	}
	mem.AgentState = &state
	return uc.save(ctx, mem)
}

func (uc *UseCase) LoadAgentState(ctx context.Context) (*entity.AgentState, error) {
	mem, err := uc.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return mem.AgentState, nil
}

func (uc *UseCase) snapshot(ctx context.Context) (*entity.Memory, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.load(ctx)
}

// load reads the memory document. A missing or unreadable document yields
// a fresh, empty memory.
func (uc *UseCase) load(ctx context.Context) (*entity.Memory, error) {
	now := uc.cfg.Now().UTC()

	values, err := uc.store.Get(ctx, uc.cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}

	mem := &entity.Memory{}
	if raw, ok := values[uc.cfg.Key]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, mem); err != nil {
			uc.logger.Warn("Stored memory is corrupt, starting empty", "error", err)
			mem = &entity.Memory{}
		}
	}
	mem.Normalize(now)
	return mem, nil
}

func (uc *UseCase) save(ctx context.Context, mem *entity.Memory) error {
	raw, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := uc.store.Set(ctx, map[string]json.RawMessage{uc.cfg.Key: raw}); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
