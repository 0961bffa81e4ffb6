package models

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized means the bearer credential was missing or invalid
	ErrUnauthorized = errors.New("not authenticated")
	// ErrStorageUnavailable means the watch-state store could not serve the request
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrProvider means an external metadata lookup failed
	ErrProvider = errors.New("provider lookup failed")
)

// ValidationError reports user-correctable input problems
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError creates a validation error without field details
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}
	return e.Message + ": " + strings.Join(parts, ", ")
}
