// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/camforge/camforge/pkg/models"
	"github.com/google/uuid"
)

// CreateTestSession creates a test WorkflowSession with default values that
// can be overridden.
func CreateTestSession(overrides ...func(*models.WorkflowSession)) *models.WorkflowSession {
	now := time.Now().UTC()
	session := &models.WorkflowSession{
		ID:                   uuid.New().String(),
		Mode:                 models.ModeDesignFirst,
		State:                models.StateDraft,
		Governance:           models.DefaultGovernancePolicy(),
		MaxCandidateAttempts: 25,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	for _, override := range overrides {
		override(session)
	}

	return session
}

// WithState sets the session state.
func WithState(state models.WorkflowState) func(*models.WorkflowSession) {
	return func(s *models.WorkflowSession) {
		s.State = state
	}
}

// WithMode sets the workflow mode.
func WithMode(mode models.WorkflowMode) func(*models.WorkflowSession) {
	return func(s *models.WorkflowSession) {
		s.Mode = mode
	}
}

// WithDesign sets the design document.
func WithDesign(design models.Document) func(*models.WorkflowSession) {
	return func(s *models.WorkflowSession) {
		s.Design = design
	}
}

// WithContext sets the manufacturing context document.
func WithContext(context models.Document) func(*models.WorkflowSession) {
	return func(s *models.WorkflowSession) {
		s.Context = context
	}
}

// WithGovernance sets the governance policy.
func WithGovernance(policy models.GovernancePolicy) func(*models.WorkflowSession) {
	return func(s *models.WorkflowSession) {
		s.Governance = policy
	}
}

// WithFeasibility sets the stored feasibility result.
func WithFeasibility(result *models.FeasibilityResult) func(*models.WorkflowSession) {
	return func(s *models.WorkflowSession) {
		s.Feasibility = result
	}
}

// WithUpdatedAt sets the last-update timestamp.
func WithUpdatedAt(t time.Time) func(*models.WorkflowSession) {
	return func(s *models.WorkflowSession) {
		s.UpdatedAt = t
	}
}

// CreateTestFeasibility creates a server-side feasibility result with the
// given bucket and score.
func CreateTestFeasibility(bucket models.RiskBucket, score float64) *models.FeasibilityResult {
	return &models.FeasibilityResult{
		RiskBucket: bucket,
		Score:      score,
		Meta: map[string]any{
			models.MetaSource:        models.SourceServerDirect,
			models.MetaPolicyVersion: "test/1",
		},
	}
}
