package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/persistence"
	"github.com/camforge/camforge/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadSession(t *testing.T) {
	store := NewPersistence(t.TempDir())

	session := testutil.CreateTestSession(
		testutil.WithDesign(models.Document{"wall_thickness_mm": 3.0}),
		testutil.WithContext(models.Document{"min_wall_thickness_mm": 2.0}),
		testutil.WithFeasibility(testutil.CreateTestFeasibility(models.RiskGreen, 92)),
	)
	session.Events = append(session.Events, models.WorkflowEvent{
		ID:        "evt-1",
		Action:    "new_session",
		FromState: models.StateDraft,
		ToState:   models.StateDraft,
	})

	require.NoError(t, store.SaveSession(t.Context(), session))

	loaded, err := store.SessionByID(t.Context(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, session.Mode, loaded.Mode)
	assert.Equal(t, session.State, loaded.State)
	assert.Equal(t, session.Governance, loaded.Governance)
	require.Len(t, loaded.Events, 1)
	assert.Equal(t, "new_session", loaded.Events[0].Action)
	require.NotNil(t, loaded.Feasibility)
	assert.Equal(t, models.RiskGreen, loaded.Feasibility.RiskBucket)
	assert.InDelta(t, 3.0, loaded.Design["wall_thickness_mm"].(float64), 0.001)
}

func TestSessionByID_NotFound(t *testing.T) {
	store := NewPersistence(t.TempDir())

	_, err := store.SessionByID(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsSessionNotFound(err))
}

func TestSaveSession_RequiresID(t *testing.T) {
	store := NewPersistence(t.TempDir())

	require.Error(t, store.SaveSession(t.Context(), &models.WorkflowSession{}))
	require.Error(t, store.SaveSession(t.Context(), nil))
}

func TestSaveSession_OverwriteKeepsSingleFile(t *testing.T) {
	dir := t.TempDir()
	store := NewPersistence(dir)

	session := testutil.CreateTestSession()
	require.NoError(t, store.SaveSession(t.Context(), session))

	session.State = models.StateContextReady
	require.NoError(t, store.SaveSession(t.Context(), session))

	loaded, err := store.SessionByID(t.Context(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateContextReady, loaded.State)

	entries, err := os.ReadDir(filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSessions_EmptyStore(t *testing.T) {
	store := NewPersistence(t.TempDir())

	sessions, err := store.Sessions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSessionsByState(t *testing.T) {
	store := NewPersistence(t.TempDir())

	for _, state := range []models.WorkflowState{
		models.StateDraft, models.StateRejected, models.StateRejected,
	} {
		require.NoError(t, store.SaveSession(t.Context(), testutil.CreateTestSession(testutil.WithState(state))))
	}

	rejected, err := store.SessionsByState(t.Context(), models.StateRejected)
	require.NoError(t, err)
	assert.Len(t, rejected, 2)

	approved, err := store.SessionsByState(t.Context(), models.StateApproved)
	require.NoError(t, err)
	assert.Empty(t, approved)
}

func TestDeleteSession(t *testing.T) {
	store := NewPersistence(t.TempDir())
	session := testutil.CreateTestSession()

	require.NoError(t, store.SaveSession(t.Context(), session))
	require.NoError(t, store.DeleteSession(t.Context(), session.ID))

	_, err := store.SessionByID(t.Context(), session.ID)
	assert.True(t, persistence.IsSessionNotFound(err))

	err = store.DeleteSession(t.Context(), session.ID)
	assert.True(t, persistence.IsSessionNotFound(err))
}

func TestFileURLRoot(t *testing.T) {
	dir := t.TempDir()
	store := NewPersistence("file://" + dir)

	session := testutil.CreateTestSession()
	require.NoError(t, store.SaveSession(t.Context(), session))
	require.NoError(t, store.HealthCheck(t.Context()))

	_, err := os.Stat(filepath.Join(dir, "sessions", session.ID+".json"))
	require.NoError(t, err)
}
