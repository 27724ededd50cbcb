package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for the announcement pipeline.
//
// Fatal kinds (ErrFetchFailed, ErrStoreUnavailable, ErrUnsupportedSchema) abort a run.
// Per-item kinds (ErrInvalidCandidate, ErrPublishFailed) skip one candidate and the run continues.
var (
	// ErrFetchFailed indicates the trend source was unreachable or returned a malformed response.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrStoreUnavailable indicates the backing store could not be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnsupportedSchema indicates the store was written by a newer schema than this binary knows.
	ErrUnsupportedSchema = errors.New("unsupported schema version")

	// ErrInvalidCandidate indicates a candidate is missing its identity or URL.
	ErrInvalidCandidate = errors.New("invalid candidate")

	// ErrPublishFailed indicates the publisher rejected or could not deliver a message.
	ErrPublishFailed = errors.New("publish failed")
)

// Store open failures.
var (
	// ErrNotFound indicates the store location does not exist (e.g. missing parent directory).
	ErrNotFound = errors.New("store not found")

	// ErrCorrupt indicates the file exists but is not a valid store.
	ErrCorrupt = errors.New("store corrupt")

	// ErrIOFailure indicates any other filesystem or driver failure while opening the store.
	ErrIOFailure = errors.New("store i/o failure")
)

// ValidationError represents a validation error with detailed field information.
// It unwraps to ErrInvalidCandidate so callers can branch with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidCandidate
}

// IsFatal reports whether err must abort the current run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFetchFailed) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrUnsupportedSchema)
}
