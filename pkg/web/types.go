// Package web provides HTTP request and response types for the session API.
package web

import "github.com/camforge/camforge/pkg/models"

// CreateSessionRequest is the request body for creating a new session.
type CreateSessionRequest struct {
	Mode                 models.WorkflowMode      `json:"mode"                             validate:"required,oneof=design_first constraint_first ai_assisted"`
	Governance           *models.GovernancePolicy `json:"governance,omitempty"`
	MaxCandidateAttempts int                      `json:"max_candidate_attempts,omitempty" validate:"min=0"`
	IndexMeta            map[string]string        `json:"index_meta,omitempty"`
	Actor                models.ActorRole         `json:"actor,omitempty"`
}

// DocumentRequest carries a replacement design or context document.
type DocumentRequest struct {
	Document models.Document  `json:"document" validate:"required"`
	Actor    models.ActorRole `json:"actor,omitempty"`
}

// FeasibilityRequest carries an externally computed feasibility result.
type FeasibilityRequest struct {
	Result *models.FeasibilityResult `json:"result" validate:"required"`
	Actor  models.ActorRole          `json:"actor,omitempty"`
}

// ReasonRequest carries commands that only need a reason (reject,
// require_revision) or a note (approve).
type ReasonRequest struct {
	Reason string           `json:"reason,omitempty"`
	Actor  models.ActorRole `json:"actor,omitempty"`
}

// ToolpathsRequest carries the generated toolpath plan reference.
type ToolpathsRequest struct {
	Ref   *models.ToolpathPlanRef `json:"ref" validate:"required"`
	Actor models.ActorRole        `json:"actor,omitempty"`
}

// ArtifactRequest carries an artifact attachment.
type ArtifactRequest struct {
	Ref *models.RunArtifactRef `json:"ref" validate:"required"`
}

// SearchRequestBody is the request body for launching a constraint-first
// search against a session.
type SearchRequestBody struct {
	Seed   models.Document     `json:"seed,omitempty"`
	Budget models.SearchBudget `json:"budget"`
}
