// Package page implements the in-page primitives on top of a TabController
// using the embedded page scripts and the dom helpers.
package page

import (
	"context"
	"encoding/json"
	"fmt"

	"taskpilot/internal/application/port/output"
	"taskpilot/internal/domain/entity"
	"taskpilot/internal/infrastructure/browser/dom"
	"taskpilot/internal/infrastructure/browser/pagescripts"
)

var _ output.PageDriver = (*Driver)(nil)

type Driver struct {
	tabs   output.TabController
	logger output.LoggerPort
}

func NewDriver(tabs output.TabController, logger output.LoggerPort) *Driver {
	return &Driver{
		tabs:   tabs,
		logger: logger.WithField("component", "page"),
	}
}

func (d *Driver) Content(ctx context.Context, h output.TabHandle) (*entity.PageContent, error) {
	raw, err := d.tabs.RunInPage(ctx, h, pagescripts.PageContent)
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}
	var content entity.PageContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("decode page content: %w", err)
	}
	return &content, nil
}

func (d *Driver) Links(ctx context.Context, h output.TabHandle) ([]entity.Link, error) {
	content, err := d.Content(ctx, h)
	if err != nil {
		return nil, err
	}
	anchors, err := dom.Links(content.HTML, content.URL)
	if err != nil {
		return nil, fmt.Errorf("parse links: %w", err)
	}
	return dom.MergeLinks(0, anchors, dom.TextLinks(content.Text)), nil
}

func (d *Driver) Inspect(ctx context.Context, h output.TabHandle) (*entity.PageInfo, error) {
	content, err := d.Content(ctx, h)
	if err != nil {
		return nil, err
	}
	info, err := dom.Inspect(content.HTML, content.URL)
	if err != nil {
		return nil, fmt.Errorf("inspect page: %w", err)
	}
	if content.Title != "" {
		info.Title = content.Title
	}
	d.logger.Debug("Page inspected",
		"url", content.URL,
		"buttons", len(info.Elements.Buttons),
		"inputs", len(info.Elements.Inputs),
		"links", len(info.Elements.Links),
	)
	return info, nil
}

func (d *Driver) Extract(ctx context.Context, h output.TabHandle, selectors entity.Selectors) (*entity.ExtractedData, error) {
	raw, err := d.tabs.RunInPage(ctx, h, pagescripts.ExtractData, selectors)
	if err != nil {
		return nil, fmt.Errorf("extract data: %w", err)
	}
	var data entity.ExtractedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode extracted data: %w", err)
	}
	if data.HTML != "" {
		data.HTML = dom.CleanHTML(data.HTML, nil)
	}
	return &data, nil
}

func (d *Driver) Perform(ctx context.Context, h output.TabHandle, action entity.Action) (entity.ActionResult, error) {
	raw, err := d.tabs.RunInPage(ctx, h, pagescripts.ExecuteAction, action)
	if err != nil {
		return entity.ActionResult{}, fmt.Errorf("run %s action: %w", action.Type, err)
	}
	var res entity.ActionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return entity.ActionResult{}, fmt.Errorf("decode action result: %w", err)
	}
	return res, nil
}
