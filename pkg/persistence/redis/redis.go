// Package redis provides Redis persistence for workflow sessions, useful as
// a shared low-latency store when the API runs in multiple replicas. Sessions
// are stored as JSON values with secondary index sets per workflow state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "camforge:session:"
	sessionIndexKey  = "camforge:sessions"
	stateIndexPrefix = "camforge:sessions:state:"
)

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewPersistence parses the URL (redis://...), connects, and pings.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{
		client: client,
		logger: logger.With("component", "session_redis_persistence"),
	}, nil
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func stateKey(state models.WorkflowState) string { return stateIndexPrefix + string(state) }

// SaveSession stores the session and maintains the state index sets in one
// pipeline.
func (p *Persistence) SaveSession(ctx context.Context, session *models.WorkflowSession) error {
	if session == nil || session.ID == "" {
		return persistence.NewSessionError("SaveSession", "", errors.New("session must carry an id"))
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), payload, 0)
	pipe.SAdd(ctx, sessionIndexKey, session.ID)

	// The session may have moved state; remove it from every other state set.
	for _, state := range allStates() {
		if state == session.State {
			pipe.SAdd(ctx, stateKey(state), session.ID)
		} else {
			pipe.SRem(ctx, stateKey(state), session.ID)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewSessionError("SaveSession", session.ID, err)
	}

	return nil
}

// SessionByID loads one session.
func (p *Persistence) SessionByID(ctx context.Context, id string) (*models.WorkflowSession, error) {
	payload, err := p.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
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

// Sessions loads every indexed session.
func (p *Persistence) Sessions(ctx context.Context) ([]*models.WorkflowSession, error) {
	ids, err := p.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}

	return p.load(ctx, ids)
}

// SessionsByState loads the sessions in one state via its index set.
func (p *Persistence) SessionsByState(ctx context.Context, state models.WorkflowState) ([]*models.WorkflowSession, error) {
	ids, err := p.client.SMembers(ctx, stateKey(state)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids for state %s: %w", state, err)
	}

	return p.load(ctx, ids)
}

func (p *Persistence) load(ctx context.Context, ids []string) ([]*models.WorkflowSession, error) {
	sessions := make([]*models.WorkflowSession, 0, len(ids))

	for _, id := range ids {
		session, err := p.SessionByID(ctx, id)
		if err != nil {
			if persistence.IsSessionNotFound(err) {
				// Index entry outlived the value; skip rather than fail the listing.
				continue
			}

			return nil, err
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

// DeleteSession removes the session and all its index entries.
func (p *Persistence) DeleteSession(ctx context.Context, id string) error {
	removed, err := p.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return persistence.NewSessionError("DeleteSession", id, err)
	}

	if removed == 0 {
		return persistence.NewSessionError("DeleteSession", id, persistence.ErrSessionNotFound)
	}

	pipe := p.client.TxPipeline()
	pipe.SRem(ctx, sessionIndexKey, id)

	for _, state := range allStates() {
		pipe.SRem(ctx, stateKey(state), id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewSessionError("DeleteSession", id, err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the client.
func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func allStates() []models.WorkflowState {
	return []models.WorkflowState{
		models.StateDraft,
		models.StateContextReady,
		models.StateFeasibilityRequested,
		models.StateFeasibilityReady,
		models.StateDesignRevisionRequired,
		models.StateApproved,
		models.StateToolpathsRequested,
		models.StateToolpathsReady,
		models.StateRejected,
		models.StateArchived,
	}
}
