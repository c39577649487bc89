// Package memory provides an in-process ingest event publisher for tests
// and DSN-less development runs.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Event is one captured ingest notification.
type Event struct {
	Topic   string
	Payload any
}

// Publisher captures ingest events instead of sending them to a broker.
// Events are retained in publish order for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []Event
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish captures the event and returns a sequence-based pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Topic: topic, Payload: payload})
	return fmt.Sprintf("mem-%d", len(p.events)), nil
}

// Events returns the captured events in publish order.
func (p *Publisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// ForTopic returns the captured events published to one topic.
func (p *Publisher) ForTopic(topic string) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Event
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
