// Package scraper implements the pluggable job sources and the manager that
// fans a search out over them.
package scraper

import (
	"context"
	"strings"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
)

// Adapter is one external job source.
//
// Search never panics or returns an error past its boundary: failures are
// reported in Result.Err with OK=false and no links. A disabled adapter
// returns an empty result without touching the network.
type Adapter interface {
	Name() string
	Domain() string
	Enabled() bool
	Search(ctx context.Context, p model.SearchProfile) Result
}

// BoardSearcher is implemented by ATS adapters that can be pointed at an
// explicit list of boards or companies for a single call.
type BoardSearcher interface {
	SearchBoards(ctx context.Context, p model.SearchProfile, slugs []string) Result
}

// Result is the outcome of one adapter call. OK is false when nothing could
// be collected because of an error; Err may still be set alongside OK=true
// when only some boards failed.
type Result struct {
	Source   string
	Domain   string
	Links    []model.JobLink
	OK       bool
	Disabled bool
	Err      error
}

func okResult(source string, links []model.JobLink) Result {
	return Result{Source: source, Links: links, OK: true}
}

func failedResult(source string, err error) Result {
	return Result{Source: source, Err: err}
}

func disabledResult(source string) Result {
	return Result{Source: source, OK: true, Disabled: true}
}

// base carries what every adapter variant shares.
type base struct {
	name   string
	domain string
	cfg    config.SourceConfig
	fetch  *Fetcher
	log    *logger.Logger
}

func newBase(name, domain string, cfg config.SourceConfig, f *Fetcher) base {
	if cfg.Domain != "" {
		domain = cfg.Domain
	}
	l := logger.Named("scraper").With().Str("source", name).Logger()
	return base{name: name, domain: domain, cfg: cfg, fetch: f, log: &l}
}

func (b base) Name() string   { return b.name }
func (b base) Domain() string { return b.domain }
func (b base) Enabled() bool  { return b.cfg.Enabled }

// endpoint returns the configured base_url override or def.
func (b base) endpoint(def string) string {
	if b.cfg.BaseURL != "" {
		return strings.TrimRight(b.cfg.BaseURL, "/")
	}
	return def
}

// Stub is the inert adapter used for source keys without an implementation.
type Stub struct{ base }

// Search always returns an empty, successful result.
func (s *Stub) Search(context.Context, model.SearchProfile) Result {
	if !s.Enabled() {
		return disabledResult(s.name)
	}
	return okResult(s.name, nil)
}

// Build instantiates adapters for the configured sources, in file order.
// Unknown keys become Stub adapters named after the key.
func Build(sources config.Sources, f *Fetcher) []Adapter {
	adapters := make([]Adapter, 0, len(sources))
	for _, s := range sources {
		adapters = append(adapters, buildOne(s.Key, s.Config, f))
	}
	return adapters
}

func buildOne(key string, cfg config.SourceConfig, f *Fetcher) Adapter {
	switch key {
	case "remoteok_api":
		return &RemoteOK{base: newBase(key, "remoteok.com", cfg, f)}
	case "remotive_api":
		return &Remotive{base: newBase(key, "remotive.com", cfg, f)}
	case "arbeitnow_api":
		return &Arbeitnow{base: newBase(key, "arbeitnow.com", cfg, f)}
	case "adzuna_api":
		return NewAdzuna(newBase(key, "adzuna.com", cfg, f))
	case "greenhouse_api":
		return &Greenhouse{base: newBase(key, "boards.greenhouse.io", cfg, f)}
	case "lever_api":
		return &Lever{base: newBase(key, "api.lever.co", cfg, f)}
	case "weworkremotely_rss":
		return newFeed(newBase(key, "weworkremotely.com", cfg, f), "We Work Remotely RSS",
			"https://weworkremotely.com", "/categories/remote-programming-jobs.rss")
	case "remoteok_rss":
		return newFeed(newBase(key, "remoteok.com", cfg, f), "RemoteOK RSS",
			"https://remoteok.com", "/remote-dev-jobs.rss")
	case "craigslist_rss":
		return newCraigslist(newBase(key, "craigslist.org", cfg, f))
	default:
		domain := cfg.Domain
		if domain == "" {
			domain = key
		}
		return &Stub{base: newBase(key, domain, cfg, f)}
	}
}
