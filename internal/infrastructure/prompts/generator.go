package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"taskpilot/internal/domain/entity"
)

// Text sent to the planner is capped so a huge page cannot blow the context.
const maxAnalysisText = 3000

type AnalysisData struct {
	URL   string
	Title string
	Text  string
}

type VisionData struct {
	Prompt string
	Goal   string
}

type ButtonHint struct {
	Text     string `json:"text"`
	Selector string `json:"selector"`
}

type InputHint struct {
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	Name        string `json:"name"`
	Selector    string `json:"selector"`
}

type LinkHint struct {
	Text     string `json:"text"`
	Href     string `json:"href"`
	Selector string `json:"selector"`
}

type PlanData struct {
	Goal     string
	Analysis string
	Buttons  []ButtonHint
	Inputs   []InputHint
	Links    []LinkHint
	Hints    []string
}

type VerifyData struct {
	Action string
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
}

func Render(name, baseTemplate string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", fmt.Errorf("parse %s prompt: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

func Analysis(page entity.PageContent) (string, error) {
	text := page.Text
	if r := []rune(text); len(r) > maxAnalysisText {
		text = string(r[:maxAnalysisText])
	}
	return Render("analysis", AnalysisPrompt, AnalysisData{URL: page.URL, Title: page.Title, Text: text})
}

func Vision(prompt, goal string) (string, error) {
	return Render("vision", VisionPrompt, VisionData{Prompt: prompt, Goal: goal})
}

// Plan renders the planning prompt from the inspected page elements.
func Plan(goal, analysis string, info *entity.PageInfo, hints []string) (string, error) {
	data := PlanData{
		Goal:     goal,
		Analysis: analysis,
		Buttons:  []ButtonHint{},
		Inputs:   []InputHint{},
		Links:    []LinkHint{},
		Hints:    hints,
	}
	if info != nil {
		for _, b := range info.Elements.Buttons {
			data.Buttons = append(data.Buttons, ButtonHint{Text: b.Text, Selector: b.Selector})
		}
		for _, in := range info.Elements.Inputs {
			data.Inputs = append(data.Inputs, InputHint{Type: in.Type, Placeholder: in.Placeholder, Name: in.Name, Selector: in.Selector})
		}
		for _, l := range info.Elements.Links {
			data.Links = append(data.Links, LinkHint{Text: l.Text, Href: l.Href, Selector: l.Selector})
		}
	}
	return Render("plan", PlanPrompt, data)
}

func Verify(action entity.Action) (string, error) {
	desc := string(action.Type)
	if loc := action.Locator(); loc != "" {
		desc += " " + loc
	}
	return Render("verify", VerifyPrompt, VerifyData{Action: desc})
}
