// Package persistence provides the storage abstraction for workflow sessions.
//
// The durable encoding is the session's JSON form and must retain session id,
// mode, state, the full ordered event list, governance knobs, and both
// artifact refs: downstream diffing and indexing tools depend on that shape.
package persistence

import (
	"context"

	"github.com/camforge/camforge/pkg/models"
)

type Persistence interface {
	Sessions(ctx context.Context) ([]*models.WorkflowSession, error)
	SessionsByState(ctx context.Context, state models.WorkflowState) ([]*models.WorkflowSession, error)
	SaveSession(ctx context.Context, session *models.WorkflowSession) error
	SessionByID(ctx context.Context, id string) (*models.WorkflowSession, error)
	DeleteSession(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
