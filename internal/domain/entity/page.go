package entity

import "time"

type PageContent struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
	HTML  string `json:"html,omitempty"`
}

type Link struct {
	URL   string `json:"url"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type ElementKind string

const (
	ElementButton ElementKind = "button"
	ElementInput  ElementKind = "input"
	ElementLink   ElementKind = "link"
)

type UIElement struct {
	Index       int         `json:"index"`
	Kind        ElementKind `json:"kind"`
	Text        string      `json:"text,omitempty"`
	Type        string      `json:"type,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Name        string      `json:"name,omitempty"`
	Href        string      `json:"href,omitempty"`
	Selector    string      `json:"selector"`
}

type PageElements struct {
	Buttons []UIElement `json:"buttons"`
	Inputs  []UIElement `json:"inputs"`
	Links   []UIElement `json:"links"`
}

type PageInfo struct {
	Title    string       `json:"title"`
	URL      string       `json:"url"`
	Elements PageElements `json:"elements"`
}

type Screenshot struct {
	Data      []byte
	Format    string
	Width     int
	Height    int
	URL       string
	Timestamp time.Time
}

func (s *Screenshot) Ref() *ScreenshotRef {
	if s == nil {
		return nil
	}
	return &ScreenshotRef{URL: s.URL, Format: s.Format, Timestamp: s.Timestamp}
}

type ScreenshotRef struct {
	URL       string    `json:"url"`
	Format    string    `json:"format,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
