package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrActivityNotFound is returned when an activity does not exist within the caller's scope.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrOwnershipConflict indicates both a user and a session were set on one activity.
	ErrOwnershipConflict = errors.New("activity cannot belong to both a user and a session")
	// ErrInvalidActivity indicates one or more activity fields failed validation.
	ErrInvalidActivity = errors.New("invalid activity")
)

// ValidationError carries field-level messages for a rejected write.
type ValidationError struct {
	Fields map[string][]string
	cause  error
}

// NewValidationError returns an empty ValidationError for field errors found outside the domain.
func NewValidationError() *ValidationError {
	return newValidationError(ErrInvalidActivity)
}

func newValidationError(cause error) *ValidationError {
	return &ValidationError{Fields: make(map[string][]string), cause: cause}
}

// Add records a message against field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return e.cause.Error() + " (" + strings.Join(parts, "; ") + ")"
}

// Is lets errors.Is(err, ErrValidation) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}
