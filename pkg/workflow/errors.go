// Package workflow implements the governed state machine that moves a
// manufacturing-design session from draft through feasibility, approval, and
// toolpath generation.
package workflow

import (
	"errors"
	"fmt"

	"github.com/camforge/camforge/pkg/models"
)

// Transition errors: the command is structurally illegal, either because the
// table has no entry for (state, action) or because a required input is
// missing. These indicate an invalid operation, not a policy decision.
var (
	ErrNoTransition        = errors.New("no transition for action in current state")
	ErrDesignRequired      = errors.New("design document is required")
	ErrContextRequired     = errors.New("context document is required")
	ErrFeasibilityRequired = errors.New("feasibility result is required")
	ErrToolpathRefRequired = errors.New("toolpath plan reference is required")
	ErrSessionTerminal     = errors.New("session is archived")
)

// Governance errors: the transition is structurally legal but forbidden by
// policy. Callers present these as "blocked by policy", distinct from the
// transition errors above.
var (
	ErrRedWithoutOverride        = errors.New("red risk requires an explicit override")
	ErrScoreBelowFloor           = errors.New("feasibility score is below the approval floor")
	ErrApprovalRequired          = errors.New("explicit approval is required before toolpaths")
	ErrServerFeasibilityRequired = errors.New("server-side feasibility is required before toolpaths")
)

// TransitionError wraps a structurally illegal command with its context.
type TransitionError struct {
	Action Action
	From   models.WorkflowState
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %s: %v", e.Action, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func (e *TransitionError) Is(target error) bool { return errors.Is(e.Err, target) }

// GovernanceError wraps a policy-forbidden command with the rule that blocked
// it.
type GovernanceError struct {
	Action Action
	Rule   string // Name of the guard rule that blocked the command
	Err    error
}

func (e *GovernanceError) Error() string {
	return fmt.Sprintf("%s blocked by governance rule %s: %v", e.Action, e.Rule, e.Err)
}

func (e *GovernanceError) Unwrap() error { return e.Err }

func (e *GovernanceError) Is(target error) bool { return errors.Is(e.Err, target) }

// IsTransitionError reports whether err is (or wraps) a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError

	return errors.As(err, &te)
}

// IsGovernanceError reports whether err is (or wraps) a GovernanceError.
func IsGovernanceError(err error) bool {
	var ge *GovernanceError

	return errors.As(err, &ge)
}

func newTransitionError(action Action, from models.WorkflowState, err error) *TransitionError {
	return &TransitionError{Action: action, From: from, Err: err}
}

func newGovernanceError(action Action, rule string, err error) *GovernanceError {
	return &GovernanceError{Action: action, Rule: rule, Err: err}
}
