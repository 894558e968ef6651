package service

import (
	"errors"
	"strings"

	"storefront/internal/repository"
)

var (
	ErrProductNotFound   = repository.ErrProductNotFound
	ErrUserNotFound      = repository.ErrUserNotFound
	ErrUserAlreadyExists = repository.ErrUserAlreadyExists

	// ErrSlugConflict means every slug attempt collided with a concurrent insert
	ErrSlugConflict = errors.New("could not allocate a unique slug")

	// ErrUpdateConflict means the product kept changing while an update was applied
	ErrUpdateConflict = errors.New("product changed concurrently")
)

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports missing or invalid input
type ValidationError struct {
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Problems = append(e.Problems, FieldError{Field: field, Message: message})
}

// orNil returns e only if it collected problems
func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Problems: []FieldError{{Field: field, Message: message}}}
}
