package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated is returned when an operation requires an identity and none was supplied.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrUnauthorized is returned when the caller lacks the relationship required by the operation.
	ErrUnauthorized = errors.New("not allowed for this caller")
	// ErrCapacityExceeded is returned when a confirmation is rejected by the capacity evaluator.
	ErrCapacityExceeded = errors.New("activity capacity and waitlist are full")
	// ErrNotFound is returned when the targeted activity or entry no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrImageStorageDisabled is returned by image uploads when no object store is configured.
	ErrImageStorageDisabled = errors.New("image storage is not configured")
)

// ValidationError reports a malformed or missing field. The message is meant to be shown to the author.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Is lets errors.Is(err, ErrValidation) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
