package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"jobmate/aggregator-service/internal/throttle"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	maxBodyBytes       = 10 << 20
	userAgent          = "jobmate-aggregator/1.0"
)

// Fetcher is the HTTP client shared by all adapters. Every request carries
// the client timeout plus the caller's context, and waits for the domain
// throttle first.
type Fetcher struct {
	client   *http.Client
	throttle *throttle.Domain
}

// NewFetcher constructs a fetcher. th may be nil to disable throttling.
func NewFetcher(timeout time.Duration, th *throttle.Domain) *Fetcher {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		throttle: th,
	}
}

// Get performs a GET and returns the body of a 200 response.
func (f *Fetcher) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if err := f.throttle.Wait(ctx, u.Hostname()); err != nil {
		return nil, fmt.Errorf("throttle %s: %w", u.Hostname(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d: %s", u.Host, resp.StatusCode, snippet(body))
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := f.Get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
