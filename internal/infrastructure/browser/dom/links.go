package dom

import (
	"net/url"
	"strings"

	"taskpilot/internal/domain/entity"

	"golang.org/x/net/html"
	"mvdan.cc/xurls/v2"
)

var strictURLs = xurls.Strict()

// Links returns the absolute http(s) anchors of a page in document order.
func Links(rawHTML, pageURL string) ([]entity.Link, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	var links []entity.Link
	walk(doc, func(n *html.Node) {
		if n.Data != "a" || !hasAttr(n, "href") {
			return
		}
		abs := resolve(base, attr(n, "href"))
		if !isHTTP(abs) {
			return
		}
		links = append(links, entity.Link{
			URL:   abs,
			Text:  strings.TrimSpace(textContent(n)),
			Title: attr(n, "title"),
		})
	})
	return links, nil
}

// TextLinks finds bare URLs mentioned in visible text.
func TextLinks(text string) []entity.Link {
	var links []entity.Link
	for _, u := range strictURLs.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:)")
		if isHTTP(u) {
			links = append(links, entity.Link{URL: u})
		}
	}
	return links
}

// MergeLinks keeps the first occurrence of every URL and at most limit entries.
func MergeLinks(limit int, groups ...[]entity.Link) []entity.Link {
	seen := make(map[string]bool)
	var out []entity.Link
	for _, group := range groups {
		for _, l := range group {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			out = append(out, l)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
