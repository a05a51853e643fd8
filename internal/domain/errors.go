package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports an out-of-range or malformed input field. It is
// fatal for the single call that produced it and is never retried: retrying
// identical invalid input cannot succeed.
type ValidationError struct {
	Field string
	Value float64
	Bound string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %g: must be %s", e.Field, e.Value, e.Bound)
}

// CollaboratorError wraps a failure of an external dependency (weather
// source, history store, delegate). Idempotent reads are retried a bounded
// number of times before the error surfaces as a degraded result.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

var (
	// ErrAmbiguousIntent is returned when the classifier cannot confidently
	// assign an intent. Callers fall back to the decomposition path.
	ErrAmbiguousIntent = errors.New("ambiguous query intent")

	// ErrCacheInconsistency marks an internal cache invariant violation,
	// such as a degraded result found cached. It is a bug, never served.
	ErrCacheInconsistency = errors.New("cache inconsistency")
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
