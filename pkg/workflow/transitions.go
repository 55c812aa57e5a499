package workflow

import "github.com/camforge/camforge/pkg/models"

// Action names every engine command. Action strings appear verbatim in the
// audit trail and in the durable session encoding.
type Action string

const (
	ActionNewSession         Action = "new_session"
	ActionSetDesign          Action = "set_design"
	ActionSetContext         Action = "set_context"
	ActionRequestFeasibility Action = "request_feasibility"
	ActionStoreFeasibility   Action = "store_feasibility"
	ActionRequireRevision    Action = "require_revision"
	ActionApprove            Action = "approve"
	ActionReject             Action = "reject"
	ActionRequestToolpaths   Action = "request_toolpaths"
	ActionStoreToolpaths     Action = "store_toolpaths"
	ActionArchive            Action = "archive"
	ActionBumpAttempt        Action = "bump_candidate_attempt"

	// ActionBudgetExceeded is the audit action recorded when bumping the
	// candidate counter pushes it past the session cap. It is never issued
	// directly by callers.
	ActionBudgetExceeded Action = "candidate_budget_exceeded"
)

// transitionTable is the pure structural lookup: (state, action) → nominal
// next state. Absent entries are illegal. Semantic governance lives in the
// guard set; target rewrites live in the override rules below.
var transitionTable = map[models.WorkflowState]map[Action]models.WorkflowState{
	models.StateDraft: {
		ActionSetDesign:   models.StateDraft,
		ActionSetContext:  models.StateContextReady,
		ActionBumpAttempt: models.StateDraft,
		ActionReject:      models.StateRejected,
		ActionArchive:     models.StateArchived,
	},
	models.StateContextReady: {
		ActionSetDesign:          models.StateDraft,
		ActionSetContext:         models.StateContextReady,
		ActionRequestFeasibility: models.StateFeasibilityRequested,
		ActionBumpAttempt:        models.StateContextReady,
		ActionReject:             models.StateRejected,
		ActionArchive:            models.StateArchived,
	},
	models.StateFeasibilityRequested: {
		ActionStoreFeasibility: models.StateFeasibilityReady,
		ActionReject:           models.StateRejected,
		ActionArchive:          models.StateArchived,
	},
	models.StateFeasibilityReady: {
		ActionSetDesign:          models.StateDraft,
		ActionSetContext:         models.StateContextReady,
		ActionRequestFeasibility: models.StateFeasibilityRequested,
		ActionApprove:            models.StateApproved,
		ActionRequireRevision:    models.StateDesignRevisionRequired,
		ActionRequestToolpaths:   models.StateToolpathsRequested,
		ActionBumpAttempt:        models.StateFeasibilityReady,
		ActionReject:             models.StateRejected,
		ActionArchive:            models.StateArchived,
	},
	models.StateDesignRevisionRequired: {
		ActionSetDesign:   models.StateDraft, // Overridden to CONTEXT_READY, see overrideRules
		ActionSetContext:  models.StateContextReady,
		ActionBumpAttempt: models.StateDesignRevisionRequired,
		ActionReject:      models.StateRejected,
		ActionArchive:     models.StateArchived,
	},
	models.StateApproved: {
		ActionSetDesign:        models.StateDraft,
		ActionSetContext:       models.StateContextReady,
		ActionRequireRevision:  models.StateDesignRevisionRequired,
		ActionRequestToolpaths: models.StateToolpathsRequested,
		ActionReject:           models.StateRejected,
		ActionArchive:          models.StateArchived,
	},
	models.StateToolpathsRequested: {
		ActionStoreToolpaths: models.StateToolpathsReady,
		ActionReject:         models.StateRejected,
		ActionArchive:        models.StateArchived,
	},
	models.StateToolpathsReady: {
		ActionSetDesign:  models.StateDraft,
		ActionSetContext: models.StateContextReady,
		ActionReject:     models.StateRejected,
		ActionArchive:    models.StateArchived,
	},
	models.StateRejected: {
		ActionArchive: models.StateArchived,
	},
	// StateArchived is terminal: no entries.
}

// NominalTarget looks up the table. ok is false for illegal pairs.
func NominalTarget(state models.WorkflowState, action Action) (models.WorkflowState, bool) {
	row, ok := transitionTable[state]
	if !ok {
		return "", false
	}

	next, ok := row[action]

	return next, ok
}

// overrideContext is what an override rule may inspect: the session as it was
// before the command, plus the normalized command input.
type overrideContext struct {
	session *models.WorkflowSession
	// result is the normalized feasibility result for store_feasibility
	// commands, nil otherwise.
	result *models.FeasibilityResult
}

// OverrideRule rewrites a nominal transition target. The rules carry the
// governance guarantees, so they are enumerated as first-class data and
// tested individually.
type OverrideRule struct {
	Name    string
	Action  Action
	Target  models.WorkflowState
	Reason  string
	applies func(overrideContext) bool
}

// overrideRules is the exhaustive set. Rules are checked in order; the first
// match wins.
var overrideRules = []OverrideRule{
	{
		// A new design submitted during revision is re-validated against the
		// existing context instead of restarting from draft.
		Name:   "revision_keeps_context",
		Action: ActionSetDesign,
		Target: models.StateContextReady,
		Reason: "design revised against existing context",
		applies: func(oc overrideContext) bool {
			return oc.session.State == models.StateDesignRevisionRequired
		},
	},
	{
		// Hard-stop: a RED result without an explicit override never reaches
		// FEASIBILITY_READY, irrespective of the table's nominal target.
		Name:   "red_hard_stop",
		Action: ActionStoreFeasibility,
		Target: models.StateRejected,
		Reason: "red risk without override",
		applies: func(oc overrideContext) bool {
			return oc.result != nil &&
				oc.result.RiskBucket == models.RiskRed &&
				!oc.session.Governance.AllowRedOverride
		},
	},
}

// Overrides returns a copy of the override rule set, for inspection in tests
// and tooling.
func Overrides() []OverrideRule {
	return append([]OverrideRule(nil), overrideRules...)
}

// resolveTarget applies the two-phase lookup: nominal table target, then the
// first matching override rule.
func resolveTarget(action Action, nominal models.WorkflowState, oc overrideContext) (models.WorkflowState, *OverrideRule) {
	for i := range overrideRules {
		rule := &overrideRules[i]
		if rule.Action == action && rule.applies(oc) {
			return rule.Target, rule
		}
	}

	return nominal, nil
}

// LegalActions returns the actions accepted in the given state, for
// discoverability surfaces. Governance guards may still block any of them.
func LegalActions(state models.WorkflowState) []Action {
	row := transitionTable[state]

	actions := make([]Action, 0, len(row))
	for action := range row {
		actions = append(actions, action)
	}

	return actions
}
