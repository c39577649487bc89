// Package ratelimit enforces per-source request spacing with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/edwarddgao/historium/internal/metrics"
)

// Limiter manages one token bucket per source name. Buckets use a burst of
// one, so consecutive acquisitions for a source are separated by at least
// period/calls of wall-clock time no matter how many workers contend for it.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an empty Limiter. Sources acquire without limit until
// Configure is called for their name.
func New() *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// Configure sets the rate for a source to calls requests per period.
// Reconfiguring a name replaces its bucket. Non-positive rates remove the
// limit for that source.
func (l *Limiter) Configure(name string, calls float64, period time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if calls <= 0 || period <= 0 {
		delete(l.limiters, name)
		return
	}
	interval := rate.Limit(calls / period.Seconds())
	l.limiters[name] = rate.NewLimiter(interval, 1)
}

// Acquire blocks until issuing a request for the named source would not
// violate its configured rate, or until the context ends. Unconfigured
// sources return immediately.
func (l *Limiter) Acquire(ctx context.Context, name string) error {
	l.mu.Lock()
	limiter, ok := l.limiters[name]
	l.mu.Unlock()
	if !ok {
		return nil
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(name, delay)
	}
	return nil
}
