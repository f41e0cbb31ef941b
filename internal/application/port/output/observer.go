package output

import (
	"time"

	"taskpilot/internal/domain/entity"
)

type TaskObserver interface {
	TaskQueued(task entity.Task)
	TaskStarted(task entity.Task)
	TaskFinished(task entity.Task, elapsed time.Duration)
}
