package output

import (
	"context"

	"taskpilot/internal/domain/entity"
)

// PageDriver runs the in-page primitives on an already loaded tab.
type PageDriver interface {
	Content(ctx context.Context, handle TabHandle) (*entity.PageContent, error)
	// Links returns anchors plus URLs found in visible text, deduplicated.
	Links(ctx context.Context, handle TabHandle) ([]entity.Link, error)
	Inspect(ctx context.Context, handle TabHandle) (*entity.PageInfo, error)
	Extract(ctx context.Context, handle TabHandle, selectors entity.Selectors) (*entity.ExtractedData, error)
	// Perform reports in-page failures in the ActionResult; the error is
	// reserved for transport problems.
	Perform(ctx context.Context, handle TabHandle, action entity.Action) (entity.ActionResult, error)
}
