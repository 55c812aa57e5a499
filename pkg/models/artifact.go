package models

// ArtifactKind distinguishes the externally persisted results a session can
// point at.
type ArtifactKind string

const (
	ArtifactFeasibilityReport ArtifactKind = "feasibility_report"
	ArtifactToolpathBundle    ArtifactKind = "toolpath_bundle"
)

// ArtifactStatus mirrors the owning store's view of the artifact.
type ArtifactStatus string

const (
	ArtifactPending  ArtifactStatus = "pending"
	ArtifactComplete ArtifactStatus = "complete"
	ArtifactFailed   ArtifactStatus = "failed"
)

// RunArtifactRef is an opaque pointer to an externally persisted result. The
// engine never dereferences it; it exists for traceability.
type RunArtifactRef struct {
	ID     string         `json:"id"     validate:"required"`
	Kind   ArtifactKind   `json:"kind"   validate:"required"`
	Status ArtifactStatus `json:"status"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// ToolpathPlanRef points at a generated toolpath plan owned by the toolpath
// service. Same shape as RunArtifactRef, kept as its own type because the
// session stores it in a dedicated slot with different lifecycle rules.
type ToolpathPlanRef struct {
	ID     string         `json:"id"     validate:"required"`
	Kind   string         `json:"kind"`
	Status ArtifactStatus `json:"status"`
	Meta   map[string]any `json:"meta,omitempty"`
}
