// Package memory provides the in-memory work queue used by source crawls.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned by Dequeue when no item arrived within the bounded
// wait. Workers use it to re-check the shutdown signal between waits.
var ErrTimeout = errors.New("queue receive timed out")

// Item is one unit of pending work: an opaque source-specific identifier.
// A sentinel item signals "no more work"; every worker observes exactly one.
type Item struct {
	ID       string
	Sentinel bool
}

// SentinelItem returns the distinguished end-of-work marker.
func SentinelItem() Item {
	return Item{Sentinel: true}
}

// Queue is a bounded in-memory queue with context-aware operations.
// Identifiers preserve enqueue order; completion order across workers is
// unordered.
type Queue struct {
	ch      chan Item
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan Item, capacity),
	}
}

// Enqueue pushes an item into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, waiting at most wait. It returns ErrTimeout on
// expiry so the caller can re-check for shutdown, and the context error if
// the run was cancelled.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (Item, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Item{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-timer.C:
		return Item{}, ErrTimeout
	case item, ok := <-q.ch:
		if !ok {
			return Item{}, errors.New("queue closed")
		}
		return item, nil
	}
}

// Len reports the number of items currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown. Safe to call twice.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
