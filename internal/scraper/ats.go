package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"jobmate/aggregator-service/internal/model"
)

// Greenhouse queries the board-hosted Greenhouse job API, one call per
// configured board.
type Greenhouse struct{ base }

// Search implements Adapter over the configured boards.
func (a *Greenhouse) Search(ctx context.Context, p model.SearchProfile) Result {
	return a.SearchBoards(ctx, p, a.cfg.Boards)
}

// SearchBoards implements BoardSearcher.
func (a *Greenhouse) SearchBoards(ctx context.Context, _ model.SearchProfile, boards []string) Result {
	if !a.Enabled() {
		return disabledResult(a.name)
	}
	root := a.endpoint("https://boards-api.greenhouse.io/v1/boards")
	return fanOutBoards(ctx, a.base, boards, func(ctx context.Context, board string) ([]model.JobLink, error) {
		body, err := a.fetch.Get(ctx, root+"/"+url.PathEscape(board)+"/jobs?content=true", "application/json")
		if err != nil {
			return nil, err
		}
		return ParseGreenhouse(body, board)
	})
}

// ParseGreenhouse converts a Greenhouse board payload into links named
// "Greenhouse:<board>".
func ParseGreenhouse(data []byte, board string) ([]model.JobLink, error) {
	var payload struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("greenhouse %s: %w", board, err)
	}
	links := linksFrom(payload.Jobs, "absolute_url", "Greenhouse:"+board, "greenhouse.io")
	for i := range links {
		links[i].Meta["board"] = board
	}
	return links, nil
}

// Lever queries the public Lever postings API, one call per company.
type Lever struct{ base }

// Search implements Adapter over the configured companies.
func (a *Lever) Search(ctx context.Context, p model.SearchProfile) Result {
	return a.SearchBoards(ctx, p, a.cfg.Companies)
}

// SearchBoards implements BoardSearcher.
func (a *Lever) SearchBoards(ctx context.Context, _ model.SearchProfile, companies []string) Result {
	if !a.Enabled() {
		return disabledResult(a.name)
	}
	root := a.endpoint("https://api.lever.co/v0/postings")
	return fanOutBoards(ctx, a.base, companies, func(ctx context.Context, company string) ([]model.JobLink, error) {
		body, err := a.fetch.Get(ctx, root+"/"+url.PathEscape(company)+"?mode=json", "application/json")
		if err != nil {
			return nil, err
		}
		return ParseLever(body, company)
	})
}

// ParseLever converts a Lever postings payload into links named
// "Lever:<company>". hostedUrl is preferred over applyUrl.
func ParseLever(data []byte, company string) ([]model.JobLink, error) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("lever %s: %w", company, err)
	}
	links := make([]model.JobLink, 0, len(items))
	for _, item := range items {
		u, _ := item["hostedUrl"].(string)
		if u == "" {
			u, _ = item["applyUrl"].(string)
		}
		if u == "" {
			continue
		}
		item["board"] = company
		links = append(links, model.JobLink{URL: u, SourceName: "Lever:" + company, SourceDomain: "lever.co", Meta: item})
	}
	return links, nil
}

// fanOutBoards runs fetch for each slug in order and concatenates the links.
// A failing slug is logged and skipped; the result only fails when no slug
// succeeded.
func fanOutBoards(
	ctx context.Context,
	b base,
	slugs []string,
	fetch func(ctx context.Context, slug string) ([]model.JobLink, error),
) Result {
	var (
		out       []model.JobLink
		errs      []error
		succeeded int
	)
	for _, slug := range slugs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		links, err := fetch(ctx, slug)
		if err != nil {
			b.log.Warn().Err(err).Str("board", slug).Msg("board failed — continuing")
			errs = append(errs, fmt.Errorf("%s: %w", slug, err))
			continue
		}
		succeeded++
		out = append(out, links...)
	}

	err := errors.Join(errs...)
	if err != nil && succeeded == 0 {
		return failedResult(b.name, err)
	}
	res := okResult(b.name, out)
	res.Err = err
	return res
}
