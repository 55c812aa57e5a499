// Package events defines the audit event types published on the event bus.
// Session commands and search attempts share the bus structurally but are
// logically separate streams, keyed by session id and run id respectively.
package events

import (
	"time"

	"github.com/camforge/camforge/pkg/models"
)

type EventType string

// Kafka topics.
const SessionTopic = "camforge.session.events" // Topic for session command audit events
const SearchTopic = "camforge.search.events"   // Topic for candidate search audit events

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Session command stream.
	SessionCommandAppliedEvent EventType = "session.command.applied"

	// Candidate search stream.
	SearchAttemptScoredEvent EventType = "search.attempt.scored"
	SearchRunCompletedEvent  EventType = "search.run.completed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SessionCommandApplied mirrors one accepted engine command: the appended
// audit entry plus the resulting state.
type SessionCommandApplied struct {
	BaseEvent

	SessionID string               `json:"session_id"`
	Action    string               `json:"action"`
	FromState models.WorkflowState `json:"from_state"`
	ToState   models.WorkflowState `json:"to_state"`
	Event     models.WorkflowEvent `json:"event"`
}

func (e SessionCommandApplied) GetType() EventType {
	return SessionCommandAppliedEvent
}

// SearchAttemptScored is emitted for every scored candidate of a search run.
type SearchAttemptScored struct {
	BaseEvent

	RunID     string                  `json:"run_id"`
	SessionID string                  `json:"session_id,omitempty"`
	Attempt   models.CandidateAttempt `json:"attempt"`
}

func (e SearchAttemptScored) GetType() EventType {
	return SearchAttemptScoredEvent
}

// SearchRunCompleted carries the run summary after the loop terminates.
type SearchRunCompleted struct {
	BaseEvent

	RunID     string               `json:"run_id"`
	SessionID string               `json:"session_id,omitempty"`
	Report    *models.SearchReport `json:"report"`
}

func (e SearchRunCompleted) GetType() EventType {
	return SearchRunCompletedEvent
}
