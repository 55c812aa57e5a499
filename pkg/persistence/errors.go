// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrSessionNotFound indicates a session was not found by the given identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionAlreadyExists indicates a session with the same identifier already exists.
	ErrSessionAlreadyExists = errors.New("session already exists")

	// ErrInvalidSessionState indicates an invalid workflow state was provided.
	ErrInvalidSessionState = errors.New("invalid session state")
)

// SessionError wraps session storage errors with additional context.
type SessionError struct {
	Op        string // Operation being performed (e.g., "SessionByID", "Save", "Delete")
	SessionID string // Session ID if applicable
	Err       error  // Underlying error
	Message   string // Additional context message
}

func (e *SessionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for session %s: %s (%v)", e.Op, e.SessionID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for session errors.
func (e *SessionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewSessionError creates a new session error with context.
func NewSessionError(op, sessionID string, err error) *SessionError {
	return &SessionError{
		Op:        op,
		SessionID: sessionID,
		Err:       err,
	}
}

// IsSessionNotFound checks if an error indicates a missing session.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsSessionAlreadyExists checks if an error indicates a duplicate session.
func IsSessionAlreadyExists(err error) bool {
	return errors.Is(err, ErrSessionAlreadyExists)
}
