package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when a run is cancelled before it finishes.
	// No partial result accompanies it.
	ErrCancelled = errors.New("analysis cancelled")

	// ErrInvalidFootage is returned by Manager when the footage validator
	// rejects a completed run.
	ErrInvalidFootage = errors.New("footage does not show a street scene")

	// ErrNotFound is returned by History implementations for unknown IDs.
	ErrNotFound = errors.New("analysis not found")
)

// InputError reports a malformed request. It is returned before any frame
// is fetched.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SourceError wraps a detection source failure. It is fatal for the run.
type SourceError struct {
	Frame int
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("detection source failed at frame %d: %v", e.Frame, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
