package input

import (
	"context"
	"time"

	"taskpilot/internal/domain/entity"
)

// Outcome is what the scheduler reports about one finished task.
type Outcome struct {
	Success         bool
	Error           string
	ExecutionTime   time.Duration
	Steps           []entity.ActionStep
	ScreenshotSaved bool
}

type ExperienceMemory interface {
	Init(ctx context.Context) error
	SaveExperience(ctx context.Context, task entity.Task, outcome Outcome, ectx entity.ExperienceContext) (*entity.Experience, error)
	FindSimilarExperiences(ctx context.Context, task entity.Task, limit int) ([]entity.Experience, error)
	GetKnowledgeForTask(ctx context.Context, task entity.Task) (*entity.Knowledge, error)
	GetMemoryStats(ctx context.Context) (*entity.MemoryStats, error)
	ClearMemory(ctx context.Context, keepSuccessful bool) error
	ExportMemory(ctx context.Context) (string, error)
	ImportMemory(ctx context.Context, blob string) bool
	SaveAgentState(ctx context.Context, state entity.AgentState) error
	LoadAgentState(ctx context.Context) (*entity.AgentState, error)
}
