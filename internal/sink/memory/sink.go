// Package memory provides an in-memory sink for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/edwarddgao/historium/internal/catalog"
)

// Sink stores records in a map keyed by (source id, original id), matching
// the Postgres upsert semantics: last write wins, one logical row per key.
type Sink struct {
	mu      sync.RWMutex
	records map[string]catalog.Record
	upserts int
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{
		records: make(map[string]catalog.Record),
	}
}

// Upsert stores a copy of the record under its natural key.
func (s *Sink) Upsert(_ context.Context, record *catalog.Record) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.Source.ID == "" || record.Source.OriginalID == "" {
		return fmt.Errorf("record key (source id, original id) is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(record.Source.ID, record.Source.OriginalID)] = *record
	s.upserts++
	return nil
}

// Close implements catalog.Sink; it performs no action.
func (s *Sink) Close() {}

// Get returns the stored record for a key, if present.
func (s *Sink) Get(sourceID, originalID string) (catalog.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(sourceID, originalID)]
	return rec, ok
}

// Len reports the number of distinct stored records.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Upserts reports the total number of Upsert calls, including overwrites.
func (s *Sink) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

func key(sourceID, originalID string) string {
	return sourceID + "/" + originalID
}
