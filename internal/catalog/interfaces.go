package catalog

import (
	"context"
	"time"
)

// Adapter is the per-source strategy the orchestration engine drives. One
// concrete implementation exists per source; the engine is written only
// against this interface.
//
// Transform must not perform I/O. A nil record with a nil error signals that
// the payload cannot be represented and the item should be skipped.
type Adapter interface {
	// Name returns the unique source key, e.g. "met".
	Name() string
	// CallsPerSecond exposes the source's configured request rate to the
	// engine's rate limiter.
	CallsPerSecond() float64
	// Open acquires the adapter's network session. It is called before
	// discovery and balanced by Close.
	Open(ctx context.Context) error
	// Close releases the adapter's session resources.
	Close() error
	// ListIdentifiers discovers every item identifier for this source.
	// Failure is fatal for the source and surfaces as a *DiscoveryError.
	ListIdentifiers(ctx context.Context) ([]string, error)
	// FetchRaw retrieves one item's raw payload. It returns ErrNotFound
	// for items that no longer exist and *TransientError for retryable
	// network conditions.
	FetchRaw(ctx context.Context, id string) ([]byte, error)
	// Transform maps a raw payload to the canonical schema.
	Transform(raw []byte) (*Record, error)
}

// Sink persists canonical records. Upsert must be idempotent on the
// (Source.ID, Source.OriginalID) key: repeated calls with the same key
// replace the record body and refresh its timestamp.
type Sink interface {
	Upsert(ctx context.Context, record *Record) error
	Close()
}

// Archive stores raw payloads as blobs and returns a URI. Archiving is best
// effort; the engine never fails an item over an archive error.
type Archive interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes ingest events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
