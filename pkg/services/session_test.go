package services

import (
	"log/slog"
	"testing"

	"github.com/camforge/camforge/pkg/events"
	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/persistence"
	"github.com/camforge/camforge/pkg/persistence/file"
	"github.com/camforge/camforge/pkg/schema"
	"github.com/camforge/camforge/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, schemas *schema.Registry) (*Session, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	service := NewSession(
		store,
		workflow.New(),
		workflow.NewArtifactHookRegistry(slog.Default()),
		nil,
		schemas,
		slog.Default(),
	)

	return service, store
}

func serverGreen(score float64) *models.FeasibilityResult {
	return &models.FeasibilityResult{
		Score:      score,
		RiskBucket: models.RiskGreen,
		Meta:       map[string]any{models.MetaSource: models.SourceServerRecompute},
	}
}

func TestCreateSession_PersistsDraft(t *testing.T) {
	service, store := newTestService(t, nil)

	session, err := service.CreateSession(t.Context(), CreateSessionRequest{
		Mode:  models.ModeDesignFirst,
		Actor: models.ActorEngineer,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateDraft, session.State)

	stored, err := store.SessionByID(t.Context(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)
	require.Len(t, stored.Events, 1)
}

func TestCreateSession_InvalidMode(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.CreateSession(t.Context(), CreateSessionRequest{Mode: "freeform"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestCreateSession_DeploymentDefaultGovernance(t *testing.T) {
	service, _ := newTestService(t, nil)

	policy := models.DefaultGovernancePolicy()
	policy.MinScoreToApprove = 85
	service.SetDefaultGovernance(&policy)

	session, err := service.CreateSession(t.Context(), CreateSessionRequest{Mode: models.ModeDesignFirst})
	require.NoError(t, err)
	assert.InDelta(t, 85, session.Governance.MinScoreToApprove, 0.001)

	// An explicit policy on the request still wins.
	custom := models.DefaultGovernancePolicy()
	custom.MinScoreToApprove = 40

	session, err = service.CreateSession(t.Context(), CreateSessionRequest{
		Mode:       models.ModeDesignFirst,
		Governance: &custom,
	})
	require.NoError(t, err)
	assert.InDelta(t, 40, session.Governance.MinScoreToApprove, 0.001)
}

func TestCommand_SessionNotFound(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.SetDesign(t.Context(), "missing", models.Document{"x": 1}, models.ActorEngineer)
	require.Error(t, err)
	assert.True(t, persistence.IsSessionNotFound(err))
}

func TestCommand_FullApprovalPathPersists(t *testing.T) {
	service, store := newTestService(t, nil)

	session, err := service.CreateSession(t.Context(), CreateSessionRequest{Mode: models.ModeDesignFirst})
	require.NoError(t, err)

	_, err = service.SetDesign(t.Context(), session.ID, models.Document{"wall_thickness_mm": 3.0}, models.ActorEngineer)
	require.NoError(t, err)
	_, err = service.SetContext(t.Context(), session.ID, models.Document{"min_wall_thickness_mm": 2.0}, models.ActorEngineer)
	require.NoError(t, err)
	_, err = service.RequestFeasibility(t.Context(), session.ID, models.ActorEngineer)
	require.NoError(t, err)
	_, err = service.StoreFeasibility(t.Context(), session.ID, serverGreen(92), models.ActorSystem)
	require.NoError(t, err)

	updated, err := service.Approve(t.Context(), session.ID, models.ActorReviewer, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, updated.State)

	stored, err := store.SessionByID(t.Context(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, stored.State)
	assert.Len(t, stored.Events, 6)
}

func TestCommand_FailedGuardDoesNotPersist(t *testing.T) {
	service, store := newTestService(t, nil)

	session, err := service.CreateSession(t.Context(), CreateSessionRequest{Mode: models.ModeDesignFirst})
	require.NoError(t, err)

	// request_feasibility without documents fails the guard.
	_, err = service.RequestFeasibility(t.Context(), session.ID, models.ActorEngineer)
	require.Error(t, err)
	assert.True(t, IsTransitionError(err))

	stored, err := store.SessionByID(t.Context(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDraft, stored.State)
	assert.Len(t, stored.Events, 1)
}

func TestCommand_GovernanceErrorSurfaces(t *testing.T) {
	service, _ := newTestService(t, nil)

	session, err := service.CreateSession(t.Context(), CreateSessionRequest{Mode: models.ModeDesignFirst})
	require.NoError(t, err)

	_, err = service.SetDesign(t.Context(), session.ID, models.Document{"wall_thickness_mm": 2.1}, models.ActorEngineer)
	require.NoError(t, err)
	_, err = service.SetContext(t.Context(), session.ID, models.Document{"min_wall_thickness_mm": 2.0}, models.ActorEngineer)
	require.NoError(t, err)
	_, err = service.RequestFeasibility(t.Context(), session.ID, models.ActorEngineer)
	require.NoError(t, err)
	_, err = service.StoreFeasibility(t.Context(), session.ID, &models.FeasibilityResult{
		Score:      60,
		RiskBucket: models.RiskYellow,
		Meta:       map[string]any{models.MetaSource: models.SourceServerRecompute},
	}, models.ActorSystem)
	require.NoError(t, err)

	_, err = service.Approve(t.Context(), session.ID, models.ActorReviewer, "")
	require.Error(t, err)
	assert.True(t, IsGovernanceError(err))
}

func TestSchemaValidation_RejectsBeforeEngine(t *testing.T) {
	schemas := schema.NewRegistry()
	schemas.Register(models.ModeDesignFirst, schema.RoleDesign, map[string]any{
		"type":     "object",
		"required": []any{"wall_thickness_mm"},
		"properties": map[string]any{
			"wall_thickness_mm": map[string]any{"type": "number"},
		},
	})

	service, store := newTestService(t, schemas)

	session, err := service.CreateSession(t.Context(), CreateSessionRequest{Mode: models.ModeDesignFirst})
	require.NoError(t, err)

	_, err = service.SetDesign(t.Context(), session.ID, models.Document{"material": "al-6061"}, models.ActorEngineer)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	stored, err := store.SessionByID(t.Context(), session.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasDesign())

	_, err = service.SetDesign(t.Context(), session.ID, models.Document{"wall_thickness_mm": 3.0}, models.ActorEngineer)
	require.NoError(t, err)
}

func TestAttachArtifact_PersistsWithoutEvent(t *testing.T) {
	service, store := newTestService(t, nil)

	session, err := service.CreateSession(t.Context(), CreateSessionRequest{Mode: models.ModeDesignFirst})
	require.NoError(t, err)

	updated, err := service.AttachArtifact(t.Context(), session.ID, &models.RunArtifactRef{
		ID:     "art-1",
		Kind:   models.ArtifactFeasibilityReport,
		Status: models.ArtifactComplete,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.LastFeasibilityArtifact)

	stored, err := store.SessionByID(t.Context(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastFeasibilityArtifact)
	assert.Equal(t, "art-1", stored.LastFeasibilityArtifact.ID)
	// Attachments are not commands: no event appended.
	assert.Len(t, stored.Events, 1)
}

func TestPublishCommand_EventType(t *testing.T) {
	event := events.SessionCommandApplied{}
	assert.Equal(t, events.SessionCommandAppliedEvent, event.GetType())
}
