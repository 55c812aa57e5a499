package models

import "time"

// ActorRole identifies who issued a command, for the audit trail.
type ActorRole string

const (
	ActorEngineer ActorRole = "engineer"
	ActorReviewer ActorRole = "reviewer"
	ActorSystem   ActorRole = "system"
)

// WorkflowEvent is one entry of the append-only audit trail. Immutable once
// appended; slice insertion order is the authoritative history.
type WorkflowEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     ActorRole      `json:"actor"`
	Action    string         `json:"action"`
	FromState WorkflowState  `json:"from_state"`
	ToState   WorkflowState  `json:"to_state"`
	Summary   string         `json:"summary,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
