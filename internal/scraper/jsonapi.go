package scraper

import (
	"context"
	"encoding/json"
	"fmt"

	"jobmate/aggregator-service/internal/model"
)

// RemoteOK reads the public Remote OK API. The first array element is a
// legal notice without a url and is skipped like any other url-less item.
type RemoteOK struct{ base }

// Search implements Adapter.
func (a *RemoteOK) Search(ctx context.Context, _ model.SearchProfile) Result {
	if !a.Enabled() {
		return disabledResult(a.name)
	}
	body, err := a.fetch.Get(ctx, a.endpoint("https://remoteok.com/api"), "application/json")
	if err != nil {
		a.log.Warn().Err(err).Msg("fetch failed")
		return failedResult(a.name, err)
	}
	links, err := ParseRemoteOK(body)
	if err != nil {
		a.log.Warn().Err(err).Msg("parse failed")
		return failedResult(a.name, err)
	}
	return okResult(a.name, links)
}

// ParseRemoteOK converts a Remote OK API payload into links.
func ParseRemoteOK(data []byte) ([]model.JobLink, error) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("remoteok: %w", err)
	}
	return linksFrom(items, "url", "Remote OK API", "remoteok.com"), nil
}

// Remotive reads the Remotive remote-jobs API.
type Remotive struct{ base }

// Search implements Adapter.
func (a *Remotive) Search(ctx context.Context, _ model.SearchProfile) Result {
	if !a.Enabled() {
		return disabledResult(a.name)
	}
	body, err := a.fetch.Get(ctx, a.endpoint("https://remotive.com/api/remote-jobs"), "application/json")
	if err != nil {
		a.log.Warn().Err(err).Msg("fetch failed")
		return failedResult(a.name, err)
	}
	links, err := ParseRemotive(body)
	if err != nil {
		a.log.Warn().Err(err).Msg("parse failed")
		return failedResult(a.name, err)
	}
	return okResult(a.name, links)
}

// ParseRemotive converts a Remotive payload ({"jobs": [...]}) into links.
func ParseRemotive(data []byte) ([]model.JobLink, error) {
	var payload struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("remotive: %w", err)
	}
	return linksFrom(payload.Jobs, "url", "Remotive API", "remotive.com"), nil
}

// Arbeitnow reads the Arbeitnow job-board API.
type Arbeitnow struct{ base }

// Search implements Adapter.
func (a *Arbeitnow) Search(ctx context.Context, _ model.SearchProfile) Result {
	if !a.Enabled() {
		return disabledResult(a.name)
	}
	body, err := a.fetch.Get(ctx, a.endpoint("https://www.arbeitnow.com/api/job-board-api"), "application/json")
	if err != nil {
		a.log.Warn().Err(err).Msg("fetch failed")
		return failedResult(a.name, err)
	}
	links, err := ParseArbeitnow(body)
	if err != nil {
		a.log.Warn().Err(err).Msg("parse failed")
		return failedResult(a.name, err)
	}
	return okResult(a.name, links)
}

// ParseArbeitnow converts an Arbeitnow payload ({"data": [...]}) into links.
func ParseArbeitnow(data []byte) ([]model.JobLink, error) {
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("arbeitnow: %w", err)
	}
	return linksFrom(payload.Data, "url", "Arbeitnow API", "arbeitnow.com"), nil
}

// linksFrom keeps every item that has a non-empty string under urlKey. The
// whole item becomes the link metadata.
func linksFrom(items []map[string]any, urlKey, sourceName, domain string) []model.JobLink {
	links := make([]model.JobLink, 0, len(items))
	for _, item := range items {
		u, _ := item[urlKey].(string)
		if u == "" {
			continue
		}
		links = append(links, model.JobLink{URL: u, SourceName: sourceName, SourceDomain: domain, Meta: item})
	}
	return links
}
