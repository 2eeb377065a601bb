package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested session or conflict does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when the store already holds the record being created.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrCancellationWindowClosed is returned when a session is too close to its start to be cancelled.
	ErrCancellationWindowClosed = errors.New("application: cancellation window closed")
	// ErrInvalidTransition is returned when a session's status does not allow the requested change.
	ErrInvalidTransition = errors.New("application: invalid status transition")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
