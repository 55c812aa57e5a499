package workflow

import (
	"fmt"

	"github.com/camforge/camforge/pkg/models"
)

// Guard rule names, recorded on GovernanceError and in audit details so a
// blocked command names the exact rule that stopped it.
const (
	RuleRedHardStop       = "red_hard_stop"
	RuleScoreFloor        = "score_floor"
	RuleExplicitApproval  = "explicit_approval"
	RuleServerFeasibility = "server_side_feasibility"
)

// The governance guard set: semantic preconditions evaluated before the
// structural table lookup. Guard failures never mutate the session and never
// append an event.

func guardRequestFeasibility(s *models.WorkflowSession) error {
	if !s.HasDesign() {
		return newTransitionError(ActionRequestFeasibility, s.State, ErrDesignRequired)
	}

	if !s.HasContext() {
		return newTransitionError(ActionRequestFeasibility, s.State, ErrContextRequired)
	}

	return nil
}

// normalizeFeasibility applies the UNKNOWN→RED policy to an incoming result.
// The caller's result is never mutated; a clone is returned. When the bucket
// is rewritten, a synthetic warning naming the original UNKNOWN bucket is
// appended so the audit trail explains the rewrite.
func normalizeFeasibility(s *models.WorkflowSession, result *models.FeasibilityResult) *models.FeasibilityResult {
	normalized := result.Clone()

	if normalized.RiskBucket == models.RiskUnknown && s.Governance.TreatUnknownAsRed {
		normalized.RiskBucket = models.RiskRed
		normalized.Warnings = append(normalized.Warnings,
			fmt.Sprintf("risk bucket UNKNOWN normalized to %s by policy", models.RiskRed))
	}

	return normalized
}

func guardApprove(s *models.WorkflowSession) error {
	if s.Feasibility == nil {
		return newTransitionError(ActionApprove, s.State, ErrFeasibilityRequired)
	}

	if s.Feasibility.RiskBucket == models.RiskRed && !s.Governance.AllowRedOverride {
		return newGovernanceError(ActionApprove, RuleRedHardStop, ErrRedWithoutOverride)
	}

	// GREEN is authoritative: it passes regardless of score. Anything else
	// must clear the configured floor.
	if s.Feasibility.RiskBucket != models.RiskGreen &&
		s.Feasibility.Score < s.Governance.MinScoreToApprove {
		return newGovernanceError(ActionApprove, RuleScoreFloor,
			fmt.Errorf("%w: score %.1f < %.1f with risk %s",
				ErrScoreBelowFloor, s.Feasibility.Score,
				s.Governance.MinScoreToApprove, s.Feasibility.RiskBucket))
	}

	return nil
}

func guardRequireRevision(s *models.WorkflowSession) error {
	if s.Feasibility == nil {
		return newTransitionError(ActionRequireRevision, s.State, ErrFeasibilityRequired)
	}

	return nil
}

func guardRequestToolpaths(s *models.WorkflowSession) error {
	if s.Feasibility == nil {
		return newTransitionError(ActionRequestToolpaths, s.State, ErrFeasibilityRequired)
	}

	if s.Governance.RequireExplicitApproval && s.State != models.StateApproved {
		return newGovernanceError(ActionRequestToolpaths, RuleExplicitApproval, ErrApprovalRequired)
	}

	if s.Feasibility.RiskBucket == models.RiskRed && !s.Governance.AllowRedOverride {
		return newGovernanceError(ActionRequestToolpaths, RuleRedHardStop, ErrRedWithoutOverride)
	}

	if s.Governance.RequireServerSideFeasibilityForPaths && !s.Feasibility.ServerSide() {
		return newGovernanceError(ActionRequestToolpaths, RuleServerFeasibility,
			fmt.Errorf("%w: source %q", ErrServerFeasibilityRequired, s.Feasibility.Source()))
	}

	return nil
}
