package services

import (
	"errors"
	"fmt"

	"github.com/nasubi-dev/artsdeck/internal/validation"
)

// Error taxonomy for the deck workflow. Handlers map these onto HTTP status
// codes and flash messages; nothing here is retried automatically.

// ValidationError reports malformed or out-of-range command input.
// Field/Reason carry the first violation; Violations carries all of them.
type ValidationError struct {
	Field      string
	Reason     string
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func newValidationError(v validation.Violations, order ...string) error {
	field, reason := v.First(order...)
	return &ValidationError{Field: field, Reason: reason, Violations: v}
}

// PersistenceError reports a storage operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ExternalServiceError reports a non-2xx or network failure from the image services.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service: %s: %v", e.Op, e.Err)
}
func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ErrNotFound signals a lookup by id that returned nothing.
var ErrNotFound = errors.New("not found")

// WorkflowError reports a downstream step that failed after an earlier step
// already committed. The committed ids are kept so callers can repair.
type WorkflowError struct {
	Step   string
	DeckID uint
	Err    error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow step %s failed (deck %d): %v", e.Step, e.DeckID, e.Err)
}
func (e *WorkflowError) Unwrap() error { return e.Err }
