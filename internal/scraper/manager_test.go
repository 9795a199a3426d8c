package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jobmate/aggregator-service/internal/config"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/scraper"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// fakeAdapter is an in-memory Adapter whose behaviour is a closure.
type fakeAdapter struct {
	name  string
	calls atomic.Int32
	run   func(ctx context.Context) scraper.Result
}

func (f *fakeAdapter) Name() string   { return f.name }
func (f *fakeAdapter) Domain() string { return f.name + ".test" }
func (f *fakeAdapter) Enabled() bool  { return true }
func (f *fakeAdapter) Search(ctx context.Context, _ model.SearchProfile) scraper.Result {
	f.calls.Add(1)
	return f.run(ctx)
}

func returning(name string, urls ...string) *fakeAdapter {
	return &fakeAdapter{name: name, run: func(context.Context) scraper.Result {
		links := make([]model.JobLink, len(urls))
		for i, u := range urls {
			links[i] = model.JobLink{URL: u, SourceName: name}
		}
		return scraper.Result{Source: name, Links: links, OK: true}
	}}
}

func urlsOf(links []model.JobLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}

func newManager(opt scraper.Options, adapters ...scraper.Adapter) *scraper.Manager {
	if opt.Now == nil {
		opt.Now = func() time.Time { return fixedNow }
	}
	return scraper.NewManager(adapters, opt)
}

// ── Fan-out ────────────────────────────────────────────────────────────────

func TestCollect_PreservesAdapterOrder(t *testing.T) {
	slow := &fakeAdapter{name: "slow", run: func(context.Context) scraper.Result {
		time.Sleep(40 * time.Millisecond)
		return scraper.Result{Source: "slow", OK: true, Links: []model.JobLink{{URL: "https://a.test/1"}, {URL: "https://a.test/2"}}}
	}}
	fast := returning("fast", "https://b.test/1")

	m := newManager(scraper.Options{MaxParallel: 4}, slow, fast)
	got := strings.Join(urlsOf(m.Search(context.Background(), testProfile(t))), " ")
	want := "https://a.test/1 https://a.test/2 https://b.test/1"
	if got != want {
		t.Errorf("links = %s\nwant   %s", got, want)
	}
}

func TestCollect_PanicIsIsolated(t *testing.T) {
	bad := &fakeAdapter{name: "bad", run: func(context.Context) scraper.Result { panic("kaboom") }}
	good := returning("good", "https://good.test/1")

	c := newManager(scraper.Options{}, bad, good).Collect(context.Background(), testProfile(t))
	if len(c.Links) != 1 || c.Links[0].URL != "https://good.test/1" {
		t.Errorf("links = %v", urlsOf(c.Links))
	}
	if c.Results[0].OK || c.Results[0].Err == nil || !strings.Contains(c.Results[0].Err.Error(), "kaboom") {
		t.Errorf("bad result = %+v", c.Results[0])
	}
	if c.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", c.Failed())
	}
}

func TestCollect_HungAdapterIsAbandoned(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	hung := &fakeAdapter{name: "hung", run: func(context.Context) scraper.Result {
		<-release // ignores its context on purpose
		return scraper.Result{Source: "hung", OK: true, Links: []model.JobLink{{URL: "https://late.test/1"}}}
	}}
	good := returning("good", "https://good.test/1")

	start := time.Now()
	c := newManager(scraper.Options{AdapterTimeout: 50 * time.Millisecond}, hung, good).
		Collect(context.Background(), testProfile(t))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Collect took %v, the hung adapter was not abandoned", elapsed)
	}
	if got := urlsOf(c.Links); len(got) != 1 || got[0] != "https://good.test/1" {
		t.Errorf("links = %v", got)
	}
	if c.Results[0].OK || !errors.Is(c.Results[0].Err, context.DeadlineExceeded) {
		t.Errorf("hung result = %+v", c.Results[0])
	}
}

func TestCollect_FailedResultLinksAreDropped(t *testing.T) {
	sloppy := &fakeAdapter{name: "sloppy", run: func(context.Context) scraper.Result {
		return scraper.Result{Source: "sloppy", Err: errors.New("half"), Links: []model.JobLink{{URL: "https://x.test/1"}}}
	}}
	c := newManager(scraper.Options{}, sloppy).Collect(context.Background(), testProfile(t))
	if len(c.Links) != 0 {
		t.Errorf("links = %v, want none from a failed result", urlsOf(c.Links))
	}
}

func TestCollect_CancelledContextStartsNothing(t *testing.T) {
	a := returning("a", "https://a.test/1")
	b := returning("b", "https://b.test/1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newManager(scraper.Options{}, a, b).Collect(ctx, testProfile(t))

	if a.calls.Load() != 0 || b.calls.Load() != 0 {
		t.Errorf("adapters called %d/%d times after cancellation", a.calls.Load(), b.calls.Load())
	}
	if len(c.Links) != 0 || c.Failed() != 2 {
		t.Errorf("links=%d failed=%d", len(c.Links), c.Failed())
	}
}

func TestCollect_BoundedParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	mk := func(name string) *fakeAdapter {
		return &fakeAdapter{name: name, run: func(context.Context) scraper.Result {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return scraper.Result{Source: name, OK: true}
		}}
	}
	var adapters []scraper.Adapter
	for i := 0; i < 6; i++ {
		adapters = append(adapters, mk(fmt.Sprintf("a%d", i)))
	}
	newManager(scraper.Options{MaxParallel: 2}, adapters...).Collect(context.Background(), testProfile(t))
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

// ── Filters ────────────────────────────────────────────────────────────────

func TestFilterTimeWindow(t *testing.T) {
	links := []model.JobLink{
		{URL: "https://x.test/fresh", Meta: map[string]any{"date": "2026-10-15T08:00:00Z"}},
		{URL: "https://x.test/stale", Meta: map[string]any{"published": "Mon, 12 Oct 2026 08:00:00 +0000"}},
		{URL: "https://x.test/nodate", Meta: map[string]any{"title": "x"}},
		{URL: "https://x.test/garbage", Meta: map[string]any{"created": "last tuesday"}},
		{URL: "https://x.test/epoch", Meta: map[string]any{"publication_date": float64(1791970200)}},
		{URL: "https://x.test/nilmeta"},
	}
	got := strings.Join(urlsOf(scraper.FilterTimeWindow(links, 24, fixedNow)), " ")
	want := "https://x.test/fresh https://x.test/nodate https://x.test/garbage https://x.test/nilmeta"
	if got != want {
		t.Errorf("24h window kept %s\nwant %s", got, want)
	}

	got = strings.Join(urlsOf(scraper.FilterTimeWindow(links, 48, fixedNow)), " ")
	if !strings.Contains(got, "epoch") || strings.Contains(got, "stale") {
		t.Errorf("48h window kept %s", got)
	}
}

func TestFilterDomains(t *testing.T) {
	links := []model.JobLink{
		{URL: "https://boards.greenhouse.io/acme/1"},
		{URL: "https://jobs.lever.co/globex/2"},
		{URL: "https://spam.example.com/3"},
		{URL: "https://notgreenhouse.io/4"},
		{URL: "https://WWW.Example.com:8443/5"},
		{URL: "https://www.linkedin.com/jobs/6"},
	}

	cases := []struct {
		name             string
		include, exclude []string
		want             string
	}{
		{"no lists", nil, nil, "1 2 3 4 5 6"},
		{"allow subdomain", []string{"greenhouse.io"}, nil, "1"},
		{"deny", nil, []string{"example.com"}, "1 2 4 6"},
		{"deny bare label", nil, []string{"LinkedIn", "indeed"}, "1 2 3 4 5"},
		{"allow bare label", []string{"greenhouse"}, nil, "1 4"},
		{"deny wins over allow", []string{"example.com"}, []string{"spam.example.com"}, "5"},
		{"same entry both ways", []string{"lever.co"}, []string{"lever.co"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ids []string
			for _, l := range scraper.FilterDomains(links, tc.include, tc.exclude) {
				ids = append(ids, l.URL[strings.LastIndex(l.URL, "/")+1:])
			}
			if got := strings.Join(ids, " "); got != tc.want {
				t.Errorf("kept %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCollect_AppliesWindowThenDomains(t *testing.T) {
	a := &fakeAdapter{name: "a", run: func(context.Context) scraper.Result {
		return scraper.Result{Source: "a", OK: true, Links: []model.JobLink{
			{URL: "https://good.test/1", Meta: map[string]any{"date": "2026-10-15T10:00:00Z"}},
			{URL: "https://good.test/old", Meta: map[string]any{"date": "2026-09-01T10:00:00Z"}},
			{URL: "https://blocked.test/1"},
		}}
	}}
	m := newManager(scraper.Options{ExcludeDomains: []string{"blocked.test"}}, a)
	if got := urlsOf(m.Search(context.Background(), testProfile(t))); len(got) != 1 || got[0] != "https://good.test/1" {
		t.Errorf("links = %v", got)
	}
}

// ── Employer mode ──────────────────────────────────────────────────────────

func TestEmployerLinks_RoutesByATS(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/gh/acme/jobs":
			fmt.Fprint(w, `{"jobs":[{"absolute_url":"https://boards.greenhouse.io/acme/jobs/1","updated_at":"2020-01-01T00:00:00Z"}]}`)
		case "/lv/globex":
			fmt.Fprint(w, `[{"hostedUrl":"https://jobs.lever.co/globex/9"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	adapters := scraper.Build(config.Sources{
		// configured boards must be ignored in employer mode
		{Key: "greenhouse_api", Config: config.SourceConfig{Enabled: true, BaseURL: srv.URL + "/gh", Boards: []string{"other"}}},
		{Key: "lever_api", Config: config.SourceConfig{Enabled: true, BaseURL: srv.URL + "/lv"}},
	}, scraper.NewFetcher(0, nil))
	m := newManager(scraper.Options{ExcludeDomains: []string{"lever.co"}}, adapters...)

	employers := []config.Employer{
		{Name: "Acme", ATS: "greenhouse", BoardSlug: "acme"},
		{Name: "Umbrella", ATS: "workday", BoardSlug: "umbrella"},
		{Name: "Globex", ATS: "Lever", BoardSlug: "globex"},
	}
	got := urlsOf(m.EmployerLinks(context.Background(), testProfile(t), employers))
	want := []string{"https://boards.greenhouse.io/acme/jobs/1", "https://jobs.lever.co/globex/9"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("links = %v, want %v", got, want)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hits = %d, want 2", n)
	}
}

func TestEmployerLinks_SkipsMissingAndDisabledAdapters(t *testing.T) {
	adapters := scraper.Build(config.Sources{
		{Key: "lever_api", Config: config.SourceConfig{Enabled: false, BaseURL: "http://127.0.0.1:1"}},
	}, scraper.NewFetcher(0, nil))
	m := newManager(scraper.Options{}, adapters...)

	c := m.CollectEmployers(context.Background(), testProfile(t), []config.Employer{
		{Name: "Acme", ATS: "greenhouse", BoardSlug: "acme"},
		{Name: "Globex", ATS: "lever", BoardSlug: "globex"},
	})
	if len(c.Links) != 0 {
		t.Errorf("links = %v", urlsOf(c.Links))
	}
	if len(c.Results) != 1 || !c.Results[0].Disabled {
		t.Errorf("results = %+v, want one disabled lever call", c.Results)
	}
}
