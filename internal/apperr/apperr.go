// Package apperr defines the error taxonomy shared by the services and
// the HTTP layer. Services wrap these sentinels with context via fmt.Errorf
// and %w; handlers map them to status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrValidation marks bad input (unknown ids, day-number mismatch).
	// Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing row looked up by id.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a state conflict, e.g. starting a challenge that
	// already has an active or paused progress record.
	ErrConflict = errors.New("conflict")
)
