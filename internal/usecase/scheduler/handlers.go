package scheduler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/fetch"
	"taskpilot/internal/infrastructure/prompts"
)

const (
	previewChars = 100
	maxMistakes  = 3
)

// dispatch routes a task to its handler. Handlers never touch the queue or
// the shared context directly.
func (uc *UseCase) dispatch(ctx context.Context, task entity.Task, knowledge *entity.Knowledge) (*entity.TaskResult, error) {
	switch p := task.Params.(type) {
	case *entity.AnalyzeURLParams:
		return uc.analyzeURL(ctx, p.URL, p.Options)
	case *entity.FollowLinksParams:
		return uc.followLinks(ctx, p)
	case *entity.DownloadFileParams:
		return uc.download(ctx, p)
	case *entity.SearchParams:
		return uc.search(ctx, p)
	case *entity.ExtractDataParams:
		return uc.extract(ctx, p)
	case *entity.ChainParams:
		return uc.chain(ctx, p)
	case *entity.AutonomousParams:
		return uc.autonomous(ctx, task, p, knowledge)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}
}

// openLoaded opens url in a background tab and waits for it. The returned
// release func always closes the tab.
func (uc *UseCase) openLoaded(ctx context.Context, rawURL string) (output.TabHandle, func(), error) {
	tab, err := uc.deps.Tabs.Open(ctx, rawURL, true)
	if err != nil {
		return "", nil, fmt.Errorf("open tab: %w", err)
	}
	release := func() {
		if err := uc.deps.Tabs.Close(context.WithoutCancel(ctx), tab); err != nil {
			uc.logger.Debug("Tab close failed", "tab", tab, "error", err)
		}
	}
	if err := uc.deps.Tabs.WaitForLoad(ctx, tab, uc.cfg.LoadTimeout); err != nil {
		release()
		return "", nil, fmt.Errorf("load %s: %w", rawURL, err)
	}
	return tab, release, nil
}

func (uc *UseCase) analyzeURL(ctx context.Context, rawURL string, opts entity.AnalyzeOptions) (*entity.TaskResult, error) {
	if rawURL == "" {
		return nil, errors.New("analyze_url: url is required")
	}
	if !uc.markVisited(rawURL) {
		uc.logger.Debug("URL already visited", "url", rawURL)
		return &entity.TaskResult{
			Skipped: true,
			URL:     rawURL,
			Depth:   opts.Depth,
			Message: "URL already visited",
		}, nil
	}

	tab, release, err := uc.openLoaded(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer release()

	content, err := uc.deps.Page.Content(ctx, tab)
	if err != nil {
		return nil, err
	}
	links, err := uc.deps.Page.Links(ctx, tab)
	if err != nil {
		return nil, err
	}
	if len(links) > uc.cfg.MaxAnalysisLinks {
		links = links[:uc.cfg.MaxAnalysisLinks]
	}

	record := entity.AnalysisRecord{
		Kind:      entity.AnalysisPage,
		URL:       content.URL,
		Title:     content.Title,
		Content:   truncateRunes(content.Text, uc.cfg.MaxAnalysisContent),
		Links:     links,
		Analysis:  uc.analyzeText(ctx, content, opts.Prompt),
		Timestamp: uc.cfg.Now().UTC(),
	}
	if record.URL == "" {
		record.URL = rawURL
	}
	uc.recordAnalysis(record)

	res := &entity.TaskResult{
		Success: true,
		URL:     rawURL,
		Depth:   opts.Depth,
		Page:    &record,
	}

	if opts.AutoFollow && opts.Depth+1 < uc.cfg.MaxDepth {
		limit := opts.MaxFollow
		if limit <= 0 {
			limit = uc.cfg.DefaultMaxFollow
		}
		for _, l := range links {
			if len(res.NextTasks) == limit {
				break
			}
			res.NextTasks = append(res.NextTasks, entity.NewTask(&entity.AnalyzeURLParams{
				URL: l.URL,
				Options: entity.AnalyzeOptions{
					AutoFollow: true,
					MaxFollow:  opts.MaxFollow,
					Depth:      opts.Depth + 1,
					Prompt:     opts.Prompt,
				},
			}))
		}
	}
	return res, nil
}

// analyzeText asks the planner about a page. Transport problems come back as
// text so the analysis record is always written.
func (uc *UseCase) analyzeText(ctx context.Context, content *entity.PageContent, prompt string) string {
	if prompt == "" {
		rendered, err := prompts.Analysis(*content)
		if err != nil {
			return fmt.Sprintf("analysis error: %v", err)
		}
		prompt = rendered
	}
	resp, err := uc.deps.LLM.Chat(ctx, output.ChatRequest{
		Model:       uc.cfg.AnalysisModel,
		Messages:    []entity.Message{{Role: entity.RoleUser, Content: prompt}},
		Temperature: uc.cfg.AnalysisTemp,
		MaxTokens:   uc.cfg.AnalysisMaxTokens,
	})
	if err != nil {
		uc.logger.Warn("Page analysis failed", "url", content.URL, "error", err)
		return fmt.Sprintf("analysis error: %v", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "analysis unavailable"
	}
	return resp.Content
}

func (uc *UseCase) followLinks(ctx context.Context, p *entity.FollowLinksParams) (*entity.TaskResult, error) {
	if p.Depth >= uc.cfg.MaxDepth {
		return &entity.TaskResult{
			DepthExceeded: true,
			Depth:         p.Depth,
			URL:           p.StartURL,
			Message:       "maximum depth reached",
		}, nil
	}
	maxLinks := p.MaxLinks
	if maxLinks <= 0 {
		maxLinks = uc.cfg.DefaultMaxLinks
	}
	return uc.analyzeURL(ctx, p.StartURL, entity.AnalyzeOptions{
		AutoFollow: true,
		MaxFollow:  maxLinks,
		Depth:      p.Depth,
	})
}

func (uc *UseCase) download(ctx context.Context, p *entity.DownloadFileParams) (*entity.TaskResult, error) {
	if uc.deps.Downloader == nil || uc.deps.Sink == nil {
		return nil, errors.New("download_file: downloads are not configured")
	}
	file, err := uc.deps.Downloader.Download(ctx, p.URL)
	if err != nil {
		return nil, err
	}

	name := p.FileName
	if name == "" {
		name = fetch.FileName(p.URL, file.ContentDisposition)
	}
	location, err := uc.deps.Sink.Save(ctx, name, file.Data)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}

	record := entity.DownloadRecord{
		URL:       p.URL,
		FileName:  name,
		Location:  location,
		Size:      int64(len(file.Data)),
		Timestamp: uc.cfg.Now().UTC(),
	}
	uc.recordDownload(record)

	preview := base64.StdEncoding.EncodeToString(file.Data)
	if len(preview) > previewChars {
		preview = preview[:previewChars]
	}
	return &entity.TaskResult{
		Success: true,
		URL:     p.URL,
		Download: &entity.DownloadResult{
			DownloadRecord: record,
			ContentType:    file.ContentType,
			Preview:        preview,
		},
	}, nil
}

func (uc *UseCase) search(ctx context.Context, p *entity.SearchParams) (*entity.TaskResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, errors.New("search_and_analyze: query is required")
	}
	maxResults := p.MaxResults
	if maxResults <= 0 {
		maxResults = uc.cfg.DefaultMaxResults
	}

	searchURL := uc.cfg.SearchURL + url.QueryEscape(p.Query)
	tab, release, err := uc.openLoaded(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	defer release()

	links, err := uc.deps.Page.Links(ctx, tab)
	if err != nil {
		return nil, err
	}

	engineHost := hostname(uc.cfg.SearchURL)
	results := make([]entity.Link, 0, maxResults)
	for _, l := range links {
		if len(results) == maxResults {
			break
		}
		if strings.HasPrefix(strings.ToLower(l.URL), "javascript:") {
			continue
		}
		if h := hostname(l.URL); h == "" || sameSite(h, engineHost) {
			continue
		}
		results = append(results, l)
	}

	res := &entity.TaskResult{
		Success: true,
		URL:     searchURL,
		Search:  &entity.SearchResult{Query: p.Query, Results: results},
	}
	for _, l := range results {
		res.NextTasks = append(res.NextTasks, entity.NewTask(&entity.AnalyzeURLParams{URL: l.URL}))
	}
	return res, nil
}

func (uc *UseCase) extract(ctx context.Context, p *entity.ExtractDataParams) (*entity.TaskResult, error) {
	if p.URL == "" {
		return nil, errors.New("extract_data: url is required")
	}
	tab, release, err := uc.openLoaded(ctx, p.URL)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := uc.deps.Page.Extract(ctx, tab, p.Selectors)
	if err != nil {
		return nil, err
	}
	return &entity.TaskResult{Success: true, URL: p.URL, Extracted: data}, nil
}

// chain runs subtasks in order. A failing subtask stops the chain only when
// it carries stopOnError. Follow-up tasks of the subtasks are passed on.
func (uc *UseCase) chain(ctx context.Context, p *entity.ChainParams) (*entity.TaskResult, error) {
	res := &entity.TaskResult{
		Success: true,
		Chain: &entity.ChainResult{
			Results: make([]entity.TaskResult, 0, len(p.Tasks)),
			Total:   len(p.Tasks),
		},
	}
	for _, sub := range p.Tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		subRes, err := uc.dispatch(ctx, sub, nil)
		if err != nil {
			subRes = &entity.TaskResult{Error: err.Error()}
		}
		res.Chain.Results = append(res.Chain.Results, *subRes)
		res.NextTasks = append(res.NextTasks, subRes.NextTasks...)
		if subRes.Success {
			res.Chain.Completed++
			continue
		}
		if sub.StopOnError {
			uc.logger.Info("Chain stopped", "at", len(res.Chain.Results), "total", len(p.Tasks))
			break
		}
	}
	return res, nil
}

func (uc *UseCase) autonomous(ctx context.Context, task entity.Task, p *entity.AutonomousParams, knowledge *entity.Knowledge) (*entity.TaskResult, error) {
	if uc.deps.Loop == nil {
		return nil, errors.New("autonomous_browser_task: browser automation is not configured")
	}

	hints := knowledgeHints(knowledge)
	prompt := p.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Perform the following task on the web page: %s. "+
			"Analyze the screen, determine the necessary actions and perform them.", task.Label())
	}
	if len(hints) > 0 {
		prompt += "\n\n" + strings.Join(hints, "\n")
	}

	out := uc.deps.Loop.Run(ctx, input.LoopRequest{
		URL:         p.URL,
		Description: task.Description,
		Goal:        p.Goal,
		Prompt:      prompt,
		SearchText:  p.SearchText,
		Actions:     p.Actions,
		Hints:       hints,
	})

	if out.FinalScreenshot != nil {
		uc.recordAnalysis(entity.AnalysisRecord{
			Kind:      entity.AnalysisAutonomous,
			URL:       out.FinalScreenshot.URL,
			Task:      task.Label(),
			Steps:     len(out.Steps),
			Timestamp: uc.cfg.Now().UTC(),
		})
	}

	res := &entity.TaskResult{
		Success:    out.Success,
		URL:        p.URL,
		Error:      out.Error,
		Autonomous: out,
		Message:    "task completed successfully",
	}
	if !out.Success {
		res.Message = "error: " + out.Error
	}
	return res, nil
}

// knowledgeHints turns learned recommendations and mistakes into lines for
// the planning prompt.
func knowledgeHints(k *entity.Knowledge) []string {
	if k.Empty() {
		return nil
	}
	var hints []string
	if len(k.RecommendedActions) > 0 {
		hints = append(hints, "Recommendations from past experience:")
		for i, r := range k.RecommendedActions {
			sel := "any"
			if r.Selector != nil {
				sel = *r.Selector
			}
			hints = append(hints, fmt.Sprintf("%d. Try %s on element %s (confidence: %.0f%%)",
				i+1, r.Type, sel, r.Confidence*100))
		}
	}
	if len(k.CommonMistakes) > 0 {
		hints = append(hints, "Avoid these mistakes:")
		for i, m := range k.CommonMistakes {
			if i == maxMistakes {
				break
			}
			hints = append(hints, fmt.Sprintf("%d. %s (failed %d times)", i+1, m.Action, m.Count))
		}
	}
	return hints
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// sameSite treats subdomains of the engine host as the engine itself.
func sameSite(host, engine string) bool {
	if engine == "" {
		return false
	}
	base := strings.TrimPrefix(engine, "html.")
	return host == engine || host == base || strings.HasSuffix(host, "."+base)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
