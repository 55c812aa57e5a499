package workflow

import (
	"log/slog"
	"testing"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactHooks_BuiltinKinds(t *testing.T) {
	registry := NewArtifactHookRegistry(slog.Default())
	session := testutil.CreateTestSession()

	feasibilityRef := &models.RunArtifactRef{
		ID:     "art-1",
		Kind:   models.ArtifactFeasibilityReport,
		Status: models.ArtifactComplete,
	}
	require.NoError(t, registry.Attach(session, feasibilityRef))
	assert.Equal(t, feasibilityRef, session.LastFeasibilityArtifact)
	assert.Nil(t, session.LastToolpathsArtifact)

	toolpathRef := &models.RunArtifactRef{
		ID:     "art-2",
		Kind:   models.ArtifactToolpathBundle,
		Status: models.ArtifactPending,
	}
	require.NoError(t, registry.Attach(session, toolpathRef))
	assert.Equal(t, toolpathRef, session.LastToolpathsArtifact)
}

func TestArtifactHooks_ReattachOverwrites(t *testing.T) {
	registry := NewArtifactHookRegistry(nil)
	session := testutil.CreateTestSession()

	first := &models.RunArtifactRef{ID: "art-1", Kind: models.ArtifactFeasibilityReport}
	second := &models.RunArtifactRef{ID: "art-2", Kind: models.ArtifactFeasibilityReport}

	require.NoError(t, registry.Attach(session, first))
	require.NoError(t, registry.Attach(session, second))

	assert.Equal(t, second, session.LastFeasibilityArtifact)
}

func TestArtifactHooks_Rejections(t *testing.T) {
	registry := NewArtifactHookRegistry(nil)
	session := testutil.CreateTestSession()

	require.Error(t, registry.Attach(session, nil))
	require.Error(t, registry.Attach(session, &models.RunArtifactRef{Kind: models.ArtifactFeasibilityReport}))
	require.Error(t, registry.Attach(session, &models.RunArtifactRef{ID: "art-1", Kind: "simulation_mesh"}))
}

func TestArtifactHooks_CustomKind(t *testing.T) {
	registry := NewArtifactHookRegistry(nil)
	session := testutil.CreateTestSession()

	var captured *models.RunArtifactRef

	registry.Register("simulation_mesh", func(_ *models.WorkflowSession, ref *models.RunArtifactRef) {
		captured = ref
	})

	ref := &models.RunArtifactRef{ID: "mesh-1", Kind: "simulation_mesh"}
	require.NoError(t, registry.Attach(session, ref))
	assert.Equal(t, ref, captured)
}
