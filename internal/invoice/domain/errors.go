package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey signals an already-imported invoice during ingestion.
	// It is an idempotence signal, not a failure.
	ErrDuplicateKey = errors.New("duplicate_key")

	ErrNotFound      = errors.New("not_found")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrNoDocument    = errors.New("no_document")
)

// ValidationError reports malformed or incomplete invoice input. It is
// never retried and never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
