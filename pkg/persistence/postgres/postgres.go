// Package postgres provides PostgreSQL persistence for workflow sessions.
// Sessions are stored as JSONB documents with indexed state and mode columns
// so the retention sweeper and external indexers can filter without
// unmarshalling every row.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/persistence"
	"github.com/camforge/camforge/pkg/persistence/sqlbase"

	_ "github.com/lib/pq"
)

// Persistence implements persistence.Persistence using PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_sessions (
				id TEXT PRIMARY KEY,
				mode TEXT NOT NULL,
				state TEXT NOT NULL,
				payload JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_workflow_sessions_state ON workflow_sessions (state);
			CREATE INDEX IF NOT EXISTS idx_workflow_sessions_mode ON workflow_sessions (mode);
		`,
	}
}

// NewPersistence connects, pings, and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run session migrations: %w", err)
	}

	logger.InfoContext(ctx, "Session PostgreSQL persistence initialized")

	return &Persistence{
		db:     database,
		logger: logger.With("component", "session_postgres_persistence"),
	}, nil
}

// SaveSession upserts the full session document.
func (p *Persistence) SaveSession(ctx context.Context, session *models.WorkflowSession) error {
	if session == nil || session.ID == "" {
		return persistence.NewSessionError("SaveSession", "", errors.New("session must carry an id"))
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	query := `
		INSERT INTO workflow_sessions (id, mode, state, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			state = EXCLUDED.state,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		session.ID, string(session.Mode), string(session.State),
		payload, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	return nil
}

// SessionByID loads one session by primary key.
func (p *Persistence) SessionByID(ctx context.Context, id string) (*models.WorkflowSession, error) {
	var payload []byte

	err := p.db.QueryRowContext(ctx,
		"SELECT payload FROM workflow_sessions WHERE id = $1", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewSessionError("SessionByID", id, persistence.ErrSessionNotFound)
	}

	if err != nil {
		return nil, persistence.NewSessionError("SessionByID", id, err)
	}

	var session models.WorkflowSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, persistence.NewSessionError("SessionByID", id, err)
	}

	return &session, nil
}

// Sessions loads every stored session ordered by creation time.
func (p *Persistence) Sessions(ctx context.Context) ([]*models.WorkflowSession, error) {
	return p.query(ctx, "SELECT payload FROM workflow_sessions ORDER BY created_at")
}

// SessionsByState loads sessions in the given state ordered by creation time.
func (p *Persistence) SessionsByState(ctx context.Context, state models.WorkflowState) ([]*models.WorkflowSession, error) {
	return p.query(ctx,
		"SELECT payload FROM workflow_sessions WHERE state = $1 ORDER BY created_at", string(state))
}

func (p *Persistence) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowSession, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.WorkflowSession

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		var session models.WorkflowSession
		if err := json.Unmarshal(payload, &session); err != nil {
			return nil, fmt.Errorf("failed to decode session payload: %w", err)
		}

		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}

// DeleteSession removes one session.
func (p *Persistence) DeleteSession(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM workflow_sessions WHERE id = $1", id)
	if err != nil {
		return persistence.NewSessionError("DeleteSession", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewSessionError("DeleteSession", id, err)
	}

	if affected == 0 {
		return persistence.NewSessionError("DeleteSession", id, persistence.ErrSessionNotFound)
	}

	return nil
}

// HealthCheck pings the database.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the connection pool.
func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
