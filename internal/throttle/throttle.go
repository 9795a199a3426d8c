// Package throttle spaces out consecutive requests to the same domain.
//
// It is the only mutable state shared between source adapters, so every
// method is safe for concurrent use.
package throttle

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDelay is the minimum gap between two requests to one domain.
const DefaultDelay = 500 * time.Millisecond

// Domain hands out one single-token limiter per domain.
type Domain struct {
	delay    time.Duration
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns a throttle enforcing delay between requests to the same
// domain. A non-positive delay disables throttling.
func New(delay time.Duration) *Domain {
	return &Domain{delay: delay, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request to domain may be sent, or ctx is done.
// A nil receiver never waits.
func (d *Domain) Wait(ctx context.Context, domain string) error {
	if d == nil || d.delay <= 0 {
		return ctx.Err()
	}
	return d.limiter(domain).Wait(ctx)
}

// Delay returns the configured minimum gap.
func (d *Domain) Delay() time.Duration {
	if d == nil {
		return 0
	}
	return d.delay
}

func (d *Domain) limiter(domain string) *rate.Limiter {
	key := strings.ToLower(strings.TrimPrefix(domain, "www."))

	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(d.delay), 1)
		d.limiters[key] = l
	}
	return l
}
