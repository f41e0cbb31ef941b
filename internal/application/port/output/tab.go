package output

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"taskpilot/internal/domain/entity"
)

var (
	ErrLoadTimeout = errors.New("timed out waiting for tab load")
	ErrTabNotFound = errors.New("tab not found")
)

type TabHandle string

// TabController drives the controlled browsing surface.
type TabController interface {
	Open(ctx context.Context, url string, background bool) (TabHandle, error)
	Navigate(ctx context.Context, handle TabHandle, url string) error
	// WaitForLoad fails with ErrLoadTimeout once the deadline passes.
	WaitForLoad(ctx context.Context, handle TabHandle, timeout time.Duration) error
	// RunInPage evaluates a JS function expression with args and returns its JSON result.
	RunInPage(ctx context.Context, handle TabHandle, fn string, args ...any) (json.RawMessage, error)
	CaptureVisual(ctx context.Context, handle TabHandle) (*entity.Screenshot, error)
	Close(ctx context.Context, handle TabHandle) error
	Active(ctx context.Context) (TabHandle, error)
}
