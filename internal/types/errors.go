package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrDuplicate       = errors.New("page already scheduled or processed")
	ErrFrontierClosed  = errors.New("frontier is closed")
	ErrNoPoemStructure = errors.New("no poem structure found")
	ErrMissingPage     = errors.New("page missing or invalid")
	ErrRootNotFound    = errors.New("root category not found")
)

// FetchError wraps errors from the gateway. Retryable errors are retried
// with backoff at the gateway boundary; an exhausted retry budget surfaces
// the final FetchError to the worker, which skips only that item.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps extraction failures for a specific page.
type ParseError struct {
	Title string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %q: %v", e.Title, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors from the persistence sink.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
