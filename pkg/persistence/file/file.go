// Package file provides file-based persistence for workflow sessions. Each
// session is one JSON document, which doubles as the durable encoding the
// external diffing and indexing tools read.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
}

// NewPersistence creates a file-backed store rooted at the given directory.
// Accepts plain paths and file:// URLs.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

func (p *Persistence) sessionsDir() string {
	return filepath.Join(p.root, "sessions")
}

func (p *Persistence) sessionPath(id string) string {
	return filepath.Join(p.sessionsDir(), id+".json")
}

// SaveSession writes the session atomically: temp file plus rename, so a
// crashed write never leaves a truncated session behind.
func (p *Persistence) SaveSession(_ context.Context, session *models.WorkflowSession) error {
	if session == nil || session.ID == "" {
		return persistence.NewSessionError("SaveSession", "", errors.New("session must carry an id"))
	}

	if err := os.MkdirAll(p.sessionsDir(), 0o755); err != nil {
		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	payload, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	tmp, err := os.CreateTemp(p.sessionsDir(), "session-*.tmp")
	if err != nil {
		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	if err := os.Rename(tmp.Name(), p.sessionPath(session.ID)); err != nil {
		_ = os.Remove(tmp.Name())

		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	return nil
}

// SessionByID loads one session.
func (p *Persistence) SessionByID(_ context.Context, id string) (*models.WorkflowSession, error) {
	payload, err := os.ReadFile(p.sessionPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewSessionError("SessionByID", id, persistence.ErrSessionNotFound)
		}

		return nil, persistence.NewSessionError("SessionByID", id, err)
	}

	var session models.WorkflowSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, persistence.NewSessionError("SessionByID", id, err)
	}

	return &session, nil
}

// Sessions loads every stored session.
func (p *Persistence) Sessions(ctx context.Context) ([]*models.WorkflowSession, error) {
	entries, err := os.ReadDir(p.sessionsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.WorkflowSession{}, nil
		}

		return nil, fmt.Errorf("failed to list session files: %w", err)
	}

	sessions := make([]*models.WorkflowSession, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		session, err := p.SessionByID(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

// SessionsByState filters the stored sessions by workflow state.
func (p *Persistence) SessionsByState(ctx context.Context, state models.WorkflowState) ([]*models.WorkflowSession, error) {
	all, err := p.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.WorkflowSession, 0, len(all))

	for _, session := range all {
		if session.State == state {
			filtered = append(filtered, session)
		}
	}

	return filtered, nil
}

// DeleteSession removes a stored session. Deleting a missing session is an
// error so callers notice audit-trail gaps.
func (p *Persistence) DeleteSession(_ context.Context, id string) error {
	err := os.Remove(p.sessionPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewSessionError("DeleteSession", id, persistence.ErrSessionNotFound)
		}

		return persistence.NewSessionError("DeleteSession", id, err)
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
