package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func firstByTag(t *testing.T, raw, tag string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	n := findElement(doc, tag)
	require.NotNil(t, n, "no <%s> in fixture", tag)
	return n
}

func TestSelector(t *testing.T) {
	tests := []struct {
		name string
		html string
		tag  string
		want string
	}{
		{
			name: "id wins over classes and ancestry",
			html: `<div id="outer"><button id="x" class="btn primary">Go</button></div>`,
			tag:  "button",
			want: "#x",
		},
		{
			name: "tag and first class",
			html: `<div><button class="btn primary">Go</button></div>`,
			tag:  "button",
			want: "button.btn",
		},
		{
			name: "ancestor walk stops at id",
			html: `<div id="form"><section class="row wide"><button>Go</button></section></div>`,
			tag:  "button",
			want: "#form > section.row > button",
		},
		{
			name: "full path without any id",
			html: `<div><span><input name="q"></span></div>`,
			tag:  "input",
			want: "html > body > div > span > input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := firstByTag(t, tt.html, tt.tag)
			assert.Equal(t, tt.want, Selector(n))
		})
	}
}

func TestInspect(t *testing.T) {
	page := `<html><head><title> Search page </title></head><body>
<form id="f">
  <input type="search" placeholder="Search the site" name="q">
  <textarea class="notes"></textarea>
  <input type="submit" value="Find">
  <button class="go">Search</button>
</form>
<div role="button" aria-label="Close"></div>
<a href="/about" class="nav">About</a>
<a href="https://other.test/x">Other</a>
</body></html>`

	info, err := Inspect(page, "https://a.test/page")
	require.NoError(t, err)

	assert.Equal(t, "Search page", info.Title)
	assert.Equal(t, "https://a.test/page", info.URL)

	require.Len(t, info.Elements.Buttons, 3)
	assert.Equal(t, "Find", info.Elements.Buttons[0].Text)
	assert.Equal(t, "Search", info.Elements.Buttons[1].Text)
	assert.Equal(t, "button.go", info.Elements.Buttons[1].Selector)
	assert.Equal(t, "Close", info.Elements.Buttons[2].Text)

	require.Len(t, info.Elements.Inputs, 3)
	assert.Equal(t, "search", info.Elements.Inputs[0].Type)
	assert.Equal(t, "Search the site", info.Elements.Inputs[0].Placeholder)
	assert.Equal(t, "textarea", info.Elements.Inputs[1].Type)
	assert.Equal(t, "textarea.notes", info.Elements.Inputs[1].Selector)

	require.Len(t, info.Elements.Links, 2)
	assert.Equal(t, "https://a.test/about", info.Elements.Links[0].Href)
	assert.Equal(t, "a.nav", info.Elements.Links[0].Selector)
}

func TestInspectCapsLinks(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<body>")
	for i := 0; i < 30; i++ {
		sb.WriteString(`<a href="/p">p</a>`)
	}
	sb.WriteString("</body>")

	info, err := Inspect(sb.String(), "https://a.test/")
	require.NoError(t, err)
	assert.Len(t, info.Elements.Links, maxInspectLinks)
}

func TestLinksAndTextLinks(t *testing.T) {
	page := `<body>
<a href="/a" title="A">First</a>
<a href="javascript:void(0)">js</a>
<a href="mailto:x@y.z">mail</a>
<a href="https://b.test/">B</a>
</body>`

	links, err := Links(page, "https://a.test/dir/")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "https://a.test/a", links[0].URL)
	assert.Equal(t, "A", links[0].Title)
	assert.Equal(t, "https://b.test/", links[1].URL)

	text := TextLinks("see https://c.test/docs, and http://d.test/x. also ftp://e.test")
	require.Len(t, text, 2)
	assert.Equal(t, "https://c.test/docs", text[0].URL)
	assert.Equal(t, "http://d.test/x", text[1].URL)

	merged := MergeLinks(3, links, text, links)
	require.Len(t, merged, 3)
	assert.Equal(t, "https://c.test/docs", merged[2].URL)
}
