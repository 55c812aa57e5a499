// Package services provides the coordination layer between the workflow
// engine, persistence, and the event bus, plus standardized error types for
// service operations.
package services

import (
	"errors"
	"fmt"

	"github.com/camforge/camforge/pkg/persistence"
	"github.com/camforge/camforge/pkg/workflow"
)

// Business logic errors - these indicate client errors (4xx responses).
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidMode     = errors.New("invalid workflow mode")
	ErrInvalidBudget   = errors.New("invalid search budget")
	ErrMissingContext  = errors.New("session has no context document")
	ErrSessionNotFound = persistence.ErrSessionNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return errors.Is(e.Err, target) }

// IsValidationError checks if an error is a validation error that should
// surface as HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidBudget) ||
		errors.Is(err, ErrMissingContext)
}

// IsTransitionError reports an invalid operation for the session's current
// state (HTTP 409).
func IsTransitionError(err error) bool {
	return workflow.IsTransitionError(err)
}

// IsGovernanceError reports an operation blocked by policy (HTTP 422).
func IsGovernanceError(err error) bool {
	return workflow.IsGovernanceError(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Message: message, Err: err}
}
