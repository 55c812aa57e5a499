package workflow

import (
	"fmt"
	"log/slog"

	"github.com/camforge/camforge/pkg/models"
)

// AttachFunc binds an artifact reference to its slot on the session.
// Attachment is idempotent: re-attaching overwrites the pointer, no error.
type AttachFunc func(s *models.WorkflowSession, ref *models.RunArtifactRef)

// ArtifactHookRegistry maps artifact kinds to their attachment points.
// Attachments are not commands: they do not transition state and do not
// append audit events, they only update the traceability pointers.
type ArtifactHookRegistry struct {
	logger *slog.Logger
	hooks  map[models.ArtifactKind]AttachFunc
}

// NewArtifactHookRegistry returns a registry with the built-in feasibility
// and toolpath hooks registered.
func NewArtifactHookRegistry(logger *slog.Logger) *ArtifactHookRegistry {
	r := &ArtifactHookRegistry{
		logger: logger,
		hooks:  make(map[models.ArtifactKind]AttachFunc),
	}

	r.Register(models.ArtifactFeasibilityReport, func(s *models.WorkflowSession, ref *models.RunArtifactRef) {
		s.LastFeasibilityArtifact = ref
	})
	r.Register(models.ArtifactToolpathBundle, func(s *models.WorkflowSession, ref *models.RunArtifactRef) {
		s.LastToolpathsArtifact = ref
	})

	return r
}

// Register adds or replaces the hook for a kind.
func (r *ArtifactHookRegistry) Register(kind models.ArtifactKind, hook AttachFunc) {
	r.hooks[kind] = hook
}

// Attach routes the ref to the hook registered for its kind.
func (r *ArtifactHookRegistry) Attach(s *models.WorkflowSession, ref *models.RunArtifactRef) error {
	if ref == nil || ref.ID == "" {
		return fmt.Errorf("artifact ref must carry an id")
	}

	hook, ok := r.hooks[ref.Kind]
	if !ok {
		return fmt.Errorf("no artifact hook registered for kind %q", ref.Kind)
	}

	hook(s, ref)

	if r.logger != nil {
		r.logger.Debug("artifact attached",
			"session_id", s.ID, "artifact_id", ref.ID, "kind", string(ref.Kind))
	}

	return nil
}
