package input

import (
	"context"

	"taskpilot/internal/domain/entity"
)

type SchedulerStats struct {
	QueueLength     int                 `json:"queueLength"`
	IsRunning       bool                `json:"isRunning"`
	VisitedURLs     int                 `json:"visitedUrls"`
	DownloadedFiles int                 `json:"downloadedFiles"`
	AnalysisResults int                 `json:"analysisResults"`
	CurrentTask     *entity.TaskSummary `json:"currentTask"`
}

type TaskScheduler interface {
	AddTask(ctx context.Context, task entity.Task) (string, error)
	Start(ctx context.Context)
	Stop()
	Running() bool
	Stats() SchedulerStats
	History() []entity.Task
	ClearHistory(ctx context.Context) error
}
