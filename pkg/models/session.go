// Package models defines the core domain models for governed manufacturing-design workflows.
package models

import "time"

// WorkflowMode selects how a design session is driven. Immutable after creation.
type WorkflowMode string

const (
	ModeDesignFirst     WorkflowMode = "design_first"     // Caller supplies a design, then a manufacturing context
	ModeConstraintFirst WorkflowMode = "constraint_first" // Context first, design found by candidate search
	ModeAIAssisted      WorkflowMode = "ai_assisted"      // External assistant proposes designs
)

// ValidModes lists every accepted workflow mode.
func ValidModes() []WorkflowMode {
	return []WorkflowMode{ModeDesignFirst, ModeConstraintFirst, ModeAIAssisted}
}

// WorkflowState is the lifecycle state of a design session.
type WorkflowState string

const (
	StateDraft                  WorkflowState = "draft"
	StateContextReady           WorkflowState = "context_ready"
	StateFeasibilityRequested   WorkflowState = "feasibility_requested"
	StateFeasibilityReady       WorkflowState = "feasibility_ready"
	StateDesignRevisionRequired WorkflowState = "design_revision_required"
	StateApproved               WorkflowState = "approved"
	StateToolpathsRequested     WorkflowState = "toolpaths_requested"
	StateToolpathsReady         WorkflowState = "toolpaths_ready"
	StateRejected               WorkflowState = "rejected" // Only legal exit is archive
	StateArchived               WorkflowState = "archived" // Terminal
)

// Terminal reports whether no further commands are accepted in this state.
func (s WorkflowState) Terminal() bool {
	return s == StateArchived
}

// Document is an opaque, JSON-serializable design or context payload. The
// engine never inspects its keys; it is replaced wholesale, never patched.
type Document map[string]any

// GovernancePolicy carries the per-session governance knobs. Set at session
// creation and immutable afterwards.
type GovernancePolicy struct {
	AllowRedOverride                     bool    `json:"allow_red_override"`
	TreatUnknownAsRed                    bool    `json:"treat_unknown_as_red"`
	RequireExplicitApproval              bool    `json:"require_explicit_approval"`
	MinScoreToApprove                    float64 `json:"min_score_to_approve"                       validate:"min=0,max=100"`
	RequireServerSideFeasibilityForPaths bool    `json:"require_server_side_feasibility_for_toolpaths"`
}

// DefaultGovernancePolicy returns the conservative defaults applied when a
// session is created without explicit knobs.
func DefaultGovernancePolicy() GovernancePolicy {
	return GovernancePolicy{
		AllowRedOverride:                     false,
		TreatUnknownAsRed:                    true,
		RequireExplicitApproval:              true,
		MinScoreToApprove:                    70,
		RequireServerSideFeasibilityForPaths: true,
	}
}

// Approval records an explicit human sign-off on a feasibility result.
type Approval struct {
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

// WorkflowSession is the mutable record driven by the state machine. State is
// mutated only by engine commands; direct field writes bypass the audit trail
// and are forbidden.
type WorkflowSession struct {
	ID    string        `json:"id"    validate:"required"`
	Mode  WorkflowMode  `json:"mode"  validate:"required"`
	State WorkflowState `json:"state" validate:"required"`

	Design  Document `json:"design,omitempty"`
	Context Document `json:"context,omitempty"`

	Feasibility *FeasibilityResult `json:"feasibility,omitempty"`
	Toolpaths   *ToolpathPlanRef   `json:"toolpaths,omitempty"`
	Approval    *Approval          `json:"approval,omitempty"`

	LastFeasibilityArtifact *RunArtifactRef `json:"last_feasibility_artifact,omitempty"`
	LastToolpathsArtifact   *RunArtifactRef `json:"last_toolpaths_artifact,omitempty"`

	Governance GovernancePolicy `json:"governance"`

	CandidateAttemptCount int `json:"candidate_attempt_count"`
	MaxCandidateAttempts  int `json:"max_candidate_attempts" validate:"min=0"`

	Events []WorkflowEvent `json:"events"`

	IndexMeta map[string]string `json:"index_meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasDesign reports whether a design document has been set.
func (s *WorkflowSession) HasDesign() bool { return len(s.Design) > 0 }

// HasContext reports whether a context document has been set.
func (s *WorkflowSession) HasContext() bool { return len(s.Context) > 0 }

// ClearDerived drops feasibility, toolpaths, approval, and both artifact refs.
// Invoked whenever design or context changes: derived results are only valid
// for the exact inputs they were computed from.
func (s *WorkflowSession) ClearDerived() {
	s.Feasibility = nil
	s.Toolpaths = nil
	s.Approval = nil
	s.LastFeasibilityArtifact = nil
	s.LastToolpathsArtifact = nil
}
