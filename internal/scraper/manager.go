package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
)

const (
	DefaultAdapterTimeout = 30 * time.Second
	DefaultMaxParallel    = 4
)

// Options tunes a Manager. Zero values fall back to the defaults above.
type Options struct {
	IncludeDomains []string
	ExcludeDomains []string
	AdapterTimeout time.Duration
	MaxParallel    int
	Now            func() time.Time
}

// Manager fans a search out over every adapter and post-filters the links.
type Manager struct {
	adapters []Adapter
	opt      Options
	log      *logger.Logger
}

// Collection is the full outcome of a fan-out: the filtered links plus one
// Result per adapter, in adapter order. Result.Links is left unfiltered.
type Collection struct {
	Links   []model.JobLink
	Results []Result
}

// Failed counts the adapters that could not collect anything.
func (c Collection) Failed() int {
	n := 0
	for _, r := range c.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

// NewManager builds a manager over adapters, which keep their order.
func NewManager(adapters []Adapter, opt Options) *Manager {
	if opt.AdapterTimeout <= 0 {
		opt.AdapterTimeout = DefaultAdapterTimeout
	}
	if opt.MaxParallel <= 0 {
		opt.MaxParallel = DefaultMaxParallel
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Manager{adapters: adapters, opt: opt, log: logger.Named("manager")}
}

// Adapters returns the managed adapters in configuration order.
func (m *Manager) Adapters() []Adapter { return m.adapters }

// Search returns the filtered links of a full fan-out.
func (m *Manager) Search(ctx context.Context, p model.SearchProfile) []model.JobLink {
	return m.Collect(ctx, p).Links
}

// Collect invokes every adapter, concatenates their links in adapter order,
// then applies the time-window filter followed by the domain filter.
func (m *Manager) Collect(ctx context.Context, p model.SearchProfile) Collection {
	tasks := make([]task, len(m.adapters))
	for i, a := range m.adapters {
		tasks[i] = task{name: a.Name(), domain: a.Domain(), run: func(ctx context.Context) Result { return a.Search(ctx, p) }}
	}
	results := m.runAll(ctx, tasks)

	var links []model.JobLink
	for _, r := range results {
		links = append(links, r.Links...)
	}
	found := len(links)
	links = FilterTimeWindow(links, p.TimeWindowHours, m.opt.Now())
	windowed := len(links)
	links = FilterDomains(links, m.opt.IncludeDomains, m.opt.ExcludeDomains)

	m.log.Info().
		Str("profile", p.Name).
		Int("adapters", len(results)).
		Int("found", found).
		Int("in_window", windowed).
		Int("kept", len(links)).
		Msg("collection done")
	return Collection{Links: links, Results: results}
}

// EmployerLinks is the targeted-employer entry point: each employer is
// routed to the ATS adapter of its type with only its board slug.
func (m *Manager) EmployerLinks(ctx context.Context, p model.SearchProfile, employers []config.Employer) []model.JobLink {
	return m.CollectEmployers(ctx, p, employers).Links
}

// CollectEmployers is EmployerLinks with per-call results. Unknown ATS types
// and unconfigured adapters are skipped. No time or domain filter applies.
func (m *Manager) CollectEmployers(ctx context.Context, p model.SearchProfile, employers []config.Employer) Collection {
	var tasks []task
	for _, e := range employers {
		key, ok := atsAdapterKey(e.ATS)
		if !ok {
			m.log.Warn().Str("employer", e.Name).Str("ats", e.ATS).Msg("unsupported ATS — skipping")
			continue
		}
		a := m.find(key)
		if a == nil {
			m.log.Warn().Str("employer", e.Name).Str("adapter", key).Msg("adapter not configured — skipping")
			continue
		}
		bs, ok := a.(BoardSearcher)
		if !ok {
			m.log.Warn().Str("employer", e.Name).Str("adapter", key).Msg("adapter cannot target boards — skipping")
			continue
		}
		slug := e.BoardSlug
		tasks = append(tasks, task{
			name:   key + ":" + slug,
			domain: a.Domain(),
			run:    func(ctx context.Context) Result { return bs.SearchBoards(ctx, p, []string{slug}) },
		})
	}
	results := m.runAll(ctx, tasks)

	var links []model.JobLink
	for _, r := range results {
		links = append(links, r.Links...)
	}
	m.log.Info().Str("profile", p.Name).Int("employers", len(tasks)).Int("found", len(links)).Msg("employer collection done")
	return Collection{Links: links, Results: results}
}

func atsAdapterKey(ats string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(ats)) {
	case "greenhouse":
		return "greenhouse_api", true
	case "lever":
		return "lever_api", true
	default:
		return "", false
	}
}

func (m *Manager) find(name string) Adapter {
	for _, a := range m.adapters {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

type task struct {
	name   string
	domain string
	run    func(ctx context.Context) Result
}

// runAll executes tasks with bounded parallelism and returns their results in
// task order. Tasks not yet started when ctx is done are reported as failed.
func (m *Manager) runAll(ctx context.Context, tasks []task) []Result {
	results := make([]Result, len(tasks))
	var g errgroup.Group
	g.SetLimit(m.opt.MaxParallel)
	for i, t := range tasks {
		if ctx.Err() != nil {
			results[i] = failedResult(t.name, fmt.Errorf("not started: %w", ctx.Err()))
			results[i].Domain = t.domain
			continue
		}
		g.Go(func() error {
			results[i] = m.isolate(ctx, t)
			if results[i].Domain == "" {
				results[i].Domain = t.domain
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		switch {
		case r.Disabled:
			m.log.Debug().Str("source", r.Source).Msg("disabled")
		case !r.OK:
			m.log.Warn().Str("source", r.Source).Err(r.Err).Msg("source failed")
		default:
			ev := m.log.Info().Str("source", r.Source).Int("links", len(r.Links))
			if r.Err != nil {
				ev = ev.AnErr("partial", r.Err)
			}
			ev.Msg("source done")
		}
	}
	return results
}

// isolate runs one task under its own deadline. A panic becomes a failed
// Result; a task still running at the deadline is abandoned.
func (m *Manager) isolate(ctx context.Context, t task) Result {
	if err := ctx.Err(); err != nil {
		return failedResult(t.name, fmt.Errorf("not started: %w", err))
	}
	ctx, cancel := context.WithTimeout(ctx, m.opt.AdapterTimeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- failedResult(t.name, fmt.Errorf("panic: %v", r))
			}
		}()
		done <- t.run(ctx)
	}()

	select {
	case r := <-done:
		if r.Source == "" {
			r.Source = t.name
		}
		if !r.OK {
			r.Links = nil
		}
		return r
	case <-ctx.Done():
		return failedResult(t.name, fmt.Errorf("abandoned: %w", ctx.Err()))
	}
}
