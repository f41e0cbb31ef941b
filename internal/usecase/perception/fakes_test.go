package perception

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
)

type fakeTabs struct {
	mu        sync.Mutex
	captures  int
	failAfter int
	navigated []string
	loadErr   error
	activeErr error
}

func (f *fakeTabs) Open(ctx context.Context, url string, background bool) (output.TabHandle, error) {
	return "tab-1", nil
}

func (f *fakeTabs) Navigate(ctx context.Context, h output.TabHandle, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeTabs) WaitForLoad(ctx context.Context, h output.TabHandle, timeout time.Duration) error {
	return f.loadErr
}

func (f *fakeTabs) RunInPage(ctx context.Context, h output.TabHandle, fn string, args ...any) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func (f *fakeTabs) CaptureVisual(ctx context.Context, h output.TabHandle) (*entity.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if f.failAfter > 0 && f.captures > f.failAfter {
		return nil, errors.New("tab gone")
	}
	return &entity.Screenshot{Data: []byte{0xff}, Format: "jpeg", URL: "https://a.test/"}, nil
}

func (f *fakeTabs) Close(ctx context.Context, h output.TabHandle) error { return nil }

func (f *fakeTabs) Active(ctx context.Context) (output.TabHandle, error) {
	if f.activeErr != nil {
		return "", f.activeErr
	}
	return "tab-1", nil
}

type fakePage struct {
	info      *entity.PageInfo
	performed []entity.Action
	results   map[string]entity.ActionResult
}

func (f *fakePage) Content(ctx context.Context, h output.TabHandle) (*entity.PageContent, error) {
	return &entity.PageContent{}, nil
}

func (f *fakePage) Links(ctx context.Context, h output.TabHandle) ([]entity.Link, error) {
	return nil, nil
}

func (f *fakePage) Inspect(ctx context.Context, h output.TabHandle) (*entity.PageInfo, error) {
	return f.info, nil
}

func (f *fakePage) Extract(ctx context.Context, h output.TabHandle, s entity.Selectors) (*entity.ExtractedData, error) {
	return &entity.ExtractedData{}, nil
}

func (f *fakePage) Perform(ctx context.Context, h output.TabHandle, a entity.Action) (entity.ActionResult, error) {
	f.performed = append(f.performed, a)
	if res, ok := f.results[a.Selector]; ok {
		return res, nil
	}
	return entity.ActionResult{Success: true}, nil
}

// fakeLLM answers vision requests (with an image) and planning requests
// (text only) separately.
type fakeLLM struct {
	vision     string
	visionErr  error
	plan       string
	planErr    error
	planCalls  int
	planPrompt string
	// silent makes every call return neither an answer nor an error.
	silent bool
}

func (f *fakeLLM) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	if f.silent {
		return nil, nil
	}
	if len(req.Messages) > 0 && req.Messages[0].Image != nil {
		if f.visionErr != nil {
			return nil, f.visionErr
		}
		return &output.ChatResponse{Content: f.vision}, nil
	}
	f.planCalls++
	if len(req.Messages) > 0 {
		f.planPrompt = req.Messages[0].Content
	}
	if f.planErr != nil {
		return nil, f.planErr
	}
	return &output.ChatResponse{Content: f.plan}, nil
}

func searchPage() *entity.PageInfo {
	return &entity.PageInfo{
		URL: "https://a.test/",
		Elements: entity.PageElements{
			Buttons: []entity.UIElement{
				{Text: "Menu", Selector: "button.menu"},
				{Text: "Search now", Selector: "#go"},
			},
			Inputs: []entity.UIElement{
				{Type: "checkbox", Selector: "#remember"},
				{Type: "search", Placeholder: "Find", Selector: "#q"},
			},
		},
	}
}
