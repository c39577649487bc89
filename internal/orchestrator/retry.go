package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/edwarddgao/historium/internal/catalog"
)

// retryPolicy governs per-item retry with exponential backoff. Delays are
// deterministic (base * 2^attempt, capped) so a run's timing is predictable.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func newRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *retryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	return &retryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// shouldRetry decides whether another attempt is warranted. attempt is the
// zero-based index of the attempt that just failed. Only transient errors
// are retried; permanent conditions (client errors, undecodable payloads)
// and cancellation fail the attempt immediately.
func (p *retryPolicy) shouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts-1 {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return catalog.IsTransient(err)
}

// backoff returns the wait before retrying after the given attempt index.
func (p *retryPolicy) backoff(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}
