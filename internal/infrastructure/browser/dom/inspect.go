package dom

import (
	"net/url"
	"strings"

	"taskpilot/internal/domain/entity"

	"golang.org/x/net/html"
)

const maxInspectLinks = 20

// Inspect enumerates buttons, inputs and links of a page and gives each a
// selector the page scripts can resolve with querySelector.
func Inspect(rawHTML, pageURL string) (*entity.PageInfo, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	info := &entity.PageInfo{
		URL: pageURL,
		Elements: entity.PageElements{
			Buttons: []entity.UIElement{},
			Inputs:  []entity.UIElement{},
			Links:   []entity.UIElement{},
		},
	}
	if title := findElement(doc, "title"); title != nil {
		info.Title = strings.TrimSpace(textContent(title))
	}

	base, _ := url.Parse(pageURL)

	walk(doc, func(n *html.Node) {
		if isButton(n) {
			el := entity.UIElement{
				Index:    len(info.Elements.Buttons),
				Kind:     entity.ElementButton,
				Text:     buttonText(n),
				Selector: Selector(n),
			}
			info.Elements.Buttons = append(info.Elements.Buttons, el)
		}

		if isOneOf(n.Data, "input", "textarea", "select") {
			info.Elements.Inputs = append(info.Elements.Inputs, entity.UIElement{
				Index:       len(info.Elements.Inputs),
				Kind:        entity.ElementInput,
				Type:        inputType(n),
				Placeholder: attr(n, "placeholder"),
				Name:        attr(n, "name"),
				Selector:    Selector(n),
			})
		}

		if n.Data == "a" && hasAttr(n, "href") && len(info.Elements.Links) < maxInspectLinks {
			info.Elements.Links = append(info.Elements.Links, entity.UIElement{
				Index:    len(info.Elements.Links),
				Kind:     entity.ElementLink,
				Text:     strings.TrimSpace(textContent(n)),
				Href:     resolve(base, attr(n, "href")),
				Selector: Selector(n),
			})
		}
	})

	return info, nil
}

// Selector synthesizes a CSS selector: #id, then tag.firstClass, then the
// ancestor path joined with " > " which stops at the first ancestor with an id.
func Selector(n *html.Node) string {
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}
	if cls := firstClass(n); cls != "" {
		return n.Data + "." + cls
	}

	var path []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if id := attr(cur, "id"); id != "" {
			path = append(path, "#"+id)
			break
		}
		seg := cur.Data
		if cls := firstClass(cur); cls != "" {
			seg += "." + cls
		}
		path = append(path, seg)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if len(path) == 0 {
		return n.Data
	}
	return strings.Join(path, " > ")
}

func isButton(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "button":
		return true
	case "input":
		t := strings.ToLower(attr(n, "type"))
		return t == "button" || t == "submit"
	}
	return attr(n, "role") == "button"
}

func buttonText(n *html.Node) string {
	if text := strings.TrimSpace(textContent(n)); text != "" {
		return text
	}
	if v := attr(n, "value"); v != "" {
		return v
	}
	return attr(n, "aria-label")
}

func inputType(n *html.Node) string {
	if n.Data != "input" {
		return n.Data
	}
	if t := strings.ToLower(attr(n, "type")); t != "" {
		return t
	}
	return "text"
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func firstClass(n *html.Node) string {
	fields := strings.Fields(attr(n, "class"))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
