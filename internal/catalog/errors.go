package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that a source reports no item for the requested
// identifier. It is a terminal skip, never retried and never a failure.
var ErrNotFound = errors.New("item not found")

// DiscoveryError is fatal to one source's run: the controller terminates
// without starting workers, and sibling sources are unaffected.
type DiscoveryError struct {
	Source string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed for %s: %v", e.Source, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// TransientError marks a retryable condition (network or persistence)
// encountered while processing one item. Errors not wrapped in it are
// treated as permanent and fail the item without retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable *TransientError.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
