package input

import (
	"context"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
)

type LoopRequest struct {
	// Tab defaults to the active tab.
	Tab         output.TabHandle
	URL         string
	Description string
	Goal        string
	Prompt      string
	SearchText  string
	// Actions, when set, are executed as given and planning is skipped.
	Actions []entity.Action
	// Hints are lessons from earlier runs added to the planning prompt.
	Hints []string
}

// PerceptionLoop never returns an error: failures are reported in the
// LoopResult together with the steps taken so far.
type PerceptionLoop interface {
	Run(ctx context.Context, req LoopRequest) *entity.LoopResult
}
