// Package common defines the error taxonomy shared by the storage, service and
// sync layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports bad caller input. It is never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound reports that a referenced id does not exist (or is a tombstone
	// where a live record is required).
	ErrNotFound = errors.New("not found")

	// ErrConstraint reports a referential violation, e.g. an item pointing to a
	// budget that does not exist.
	ErrConstraint = errors.New("constraint violation")

	// ErrSchema is fatal: local storage could not be brought to the current schema.
	ErrSchema = errors.New("schema error")

	// ErrSyncTransport reports a remote/network failure during sync. Local state
	// is left as it was before the failing phase, so the call can be retried.
	ErrSyncTransport = errors.New("sync transport error")
)

// FieldError describes an invalid input field. It matches ErrValidation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for &FieldError{Field: field, Reason: reason}.
func Invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
