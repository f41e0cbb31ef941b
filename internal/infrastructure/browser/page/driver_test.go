package page

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/browser/pagescripts"
	"taskpilot/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTabs struct {
	results map[string]any
	args    []any
	err     error
}

func (s *scriptedTabs) Open(ctx context.Context, url string, background bool) (output.TabHandle, error) {
	return "t1", nil
}
func (s *scriptedTabs) Navigate(ctx context.Context, h output.TabHandle, url string) error {
	return nil
}
func (s *scriptedTabs) WaitForLoad(ctx context.Context, h output.TabHandle, timeout time.Duration) error {
	return nil
}
func (s *scriptedTabs) CaptureVisual(ctx context.Context, h output.TabHandle) (*entity.Screenshot, error) {
	return &entity.Screenshot{}, nil
}
func (s *scriptedTabs) Close(ctx context.Context, h output.TabHandle) error  { return nil }
func (s *scriptedTabs) Active(ctx context.Context) (output.TabHandle, error) { return "t1", nil }

func (s *scriptedTabs) RunInPage(ctx context.Context, h output.TabHandle, fn string, args ...any) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.args = args
	return json.Marshal(s.results[fn])
}

const testPage = `<html><head><title>Shop</title></head><body>
<form><input id="q" type="search" placeholder="Search"><button class="btn primary">Find</button></form>
<a href="/about">About</a><a href="javascript:void(0)">noop</a>
</body></html>`

func newDriver(tabs *scriptedTabs) *Driver {
	return NewDriver(tabs, logger.NewNop())
}

func TestInspect(t *testing.T) {
	tabs := &scriptedTabs{results: map[string]any{
		pagescripts.PageContent: entity.PageContent{URL: "https://shop.test/", Title: "Shop", HTML: testPage},
	}}

	info, err := newDriver(tabs).Inspect(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, "Shop", info.Title)
	require.Len(t, info.Elements.Inputs, 1)
	assert.Equal(t, "#q", info.Elements.Inputs[0].Selector)
	require.Len(t, info.Elements.Buttons, 1)
	assert.Equal(t, "button.btn", info.Elements.Buttons[0].Selector)
	assert.Equal(t, "https://shop.test/about", info.Elements.Links[0].Href)
}

func TestLinksMergesTextURLs(t *testing.T) {
	tabs := &scriptedTabs{results: map[string]any{
		pagescripts.PageContent: entity.PageContent{
			URL:  "https://shop.test/",
			HTML: testPage,
			Text: "See https://docs.test/guide and https://shop.test/about.",
		},
	}}

	links, err := newDriver(tabs).Links(context.Background(), "t1")
	require.NoError(t, err)

	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	assert.Equal(t, []string{"https://shop.test/about", "https://docs.test/guide"}, urls)
}

func TestExtractCleansHTML(t *testing.T) {
	tabs := &scriptedTabs{results: map[string]any{
		pagescripts.ExtractData: map[string]any{
			"title": "Shop",
			"html":  `<body><script>x()</script><p style="color:red">hi</p></body>`,
		},
	}}

	data, err := newDriver(tabs).Extract(context.Background(), "t1", entity.Selectors{Title: true, HTML: true})
	require.NoError(t, err)
	assert.Equal(t, "Shop", data.Title)
	assert.NotContains(t, data.HTML, "script")
	assert.Contains(t, data.HTML, "hi")
	assert.Equal(t, entity.Selectors{Title: true, HTML: true}, tabs.args[0])
}

func TestPerform(t *testing.T) {
	tabs := &scriptedTabs{results: map[string]any{
		pagescripts.ExecuteAction: map[string]any{"success": false, "error": "element not found: #nope"},
	}}

	res, err := newDriver(tabs).Perform(context.Background(), "t1", entity.Action{Type: entity.ActionClick, Selector: "#nope"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "element not found: #nope", res.Error)

	tabs.err = errors.New("tab crashed")
	_, err = newDriver(tabs).Perform(context.Background(), "t1", entity.Action{Type: entity.ActionWait})
	assert.ErrorContains(t, err, "tab crashed")
}
