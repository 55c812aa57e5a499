package workflow

import (
	"fmt"
	"time"

	"github.com/camforge/camforge/pkg/models"
	"github.com/google/uuid"
)

// DefaultMaxCandidateAttempts caps per-session candidate bumping when the
// caller does not set a budget of its own.
const DefaultMaxCandidateAttempts = 25

// Engine applies commands to workflow sessions. It is pure with respect to
// I/O: it mutates the in-memory session and appends audit events, nothing
// else. Persistence, locking, and event publication are the service layer's
// job.
//
// Every command either fully applies (state write plus exactly one appended
// event) or leaves the session untouched and returns an error.
type Engine struct {
	now   func() time.Time
	newID func() string
}

// New returns an engine using the wall clock and random UUIDs.
func New() *Engine {
	return &Engine{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// NewSessionInput parameterizes session creation.
type NewSessionInput struct {
	Mode                 models.WorkflowMode `validate:"required,oneof=design_first constraint_first ai_assisted"`
	Governance           *models.GovernancePolicy
	MaxCandidateAttempts int `validate:"min=0"`
	IndexMeta            map[string]string
	Actor                models.ActorRole
}

// NewSession creates a session in DRAFT and appends the creation event.
func (e *Engine) NewSession(in NewSessionInput) (*models.WorkflowSession, error) {
	valid := false

	for _, m := range models.ValidModes() {
		if in.Mode == m {
			valid = true

			break
		}
	}

	if !valid {
		return nil, fmt.Errorf("unknown workflow mode %q", in.Mode)
	}

	governance := models.DefaultGovernancePolicy()
	if in.Governance != nil {
		governance = *in.Governance
	}

	maxAttempts := in.MaxCandidateAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCandidateAttempts
	}

	now := e.now()
	session := &models.WorkflowSession{
		ID:                   e.newID(),
		Mode:                 in.Mode,
		State:                models.StateDraft,
		Governance:           governance,
		MaxCandidateAttempts: maxAttempts,
		IndexMeta:            in.IndexMeta,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	e.append(session, ActionNewSession, actorOrDefault(in.Actor),
		models.StateDraft, models.StateDraft,
		"session created",
		map[string]any{"mode": string(in.Mode)})

	return session, nil
}

// SetDesign replaces the design document wholesale and clears every derived
// result.
func (e *Engine) SetDesign(s *models.WorkflowSession, design models.Document, actor models.ActorRole) (*models.WorkflowEvent, error) {
	if len(design) == 0 {
		return nil, newTransitionError(ActionSetDesign, s.State, ErrDesignRequired)
	}

	return e.apply(s, ActionSetDesign, actor, overrideContext{session: s},
		"design replaced", nil,
		func(s *models.WorkflowSession) {
			s.Design = design
			s.ClearDerived()
		})
}

// SetContext replaces the context document wholesale and clears every derived
// result.
func (e *Engine) SetContext(s *models.WorkflowSession, context models.Document, actor models.ActorRole) (*models.WorkflowEvent, error) {
	if len(context) == 0 {
		return nil, newTransitionError(ActionSetContext, s.State, ErrContextRequired)
	}

	return e.apply(s, ActionSetContext, actor, overrideContext{session: s},
		"context replaced", nil,
		func(s *models.WorkflowSession) {
			s.Context = context
			s.ClearDerived()
		})
}

// RequestFeasibility marks the session as waiting on an external feasibility
// computation.
func (e *Engine) RequestFeasibility(s *models.WorkflowSession, actor models.ActorRole) (*models.WorkflowEvent, error) {
	if err := guardRequestFeasibility(s); err != nil {
		return nil, err
	}

	return e.apply(s, ActionRequestFeasibility, actor, overrideContext{session: s},
		"feasibility requested", nil, nil)
}

// StoreFeasibility records a feasibility result. UNKNOWN risk is normalized
// to RED under the session policy; a normalized RED without override is
// hard-stopped to REJECTED regardless of the table's nominal target.
func (e *Engine) StoreFeasibility(s *models.WorkflowSession, result *models.FeasibilityResult, actor models.ActorRole) (*models.WorkflowEvent, error) {
	if result == nil {
		return nil, newTransitionError(ActionStoreFeasibility, s.State, ErrFeasibilityRequired)
	}

	normalized := normalizeFeasibility(s, result)

	details := map[string]any{
		"score":       normalized.Score,
		"risk_bucket": string(normalized.RiskBucket),
		"source":      normalized.Source(),
	}
	if normalized.RiskBucket != result.RiskBucket {
		details["normalized_from"] = string(result.RiskBucket)
	}

	return e.apply(s, ActionStoreFeasibility, actor,
		overrideContext{session: s, result: normalized},
		fmt.Sprintf("feasibility stored: score %.1f, risk %s", normalized.Score, normalized.RiskBucket),
		details,
		func(s *models.WorkflowSession) {
			s.Feasibility = normalized
		})
}

// RequireRevision sends the session back for design rework, keeping the
// context.
func (e *Engine) RequireRevision(s *models.WorkflowSession, reason string, actor models.ActorRole) (*models.WorkflowEvent, error) {
	if err := guardRequireRevision(s); err != nil {
		return nil, err
	}

	return e.apply(s, ActionRequireRevision, actor, overrideContext{session: s},
		"design revision required",
		map[string]any{"reason": reason}, nil)
}

// Approve records an explicit sign-off on the stored feasibility result.
func (e *Engine) Approve(s *models.WorkflowSession, actor models.ActorRole, note string) (*models.WorkflowEvent, error) {
	if err := guardApprove(s); err != nil {
		return nil, err
	}

	approvedAt := e.now()

	return e.apply(s, ActionApprove, actor, overrideContext{session: s},
		"feasibility approved",
		map[string]any{"note": note},
		func(s *models.WorkflowSession) {
			s.Approval = &models.Approval{
				Actor:      string(actor),
				Note:       note,
				ApprovedAt: approvedAt,
			}
		})
}

// Reject moves the session to REJECTED. Table-only, no extra guard.
func (e *Engine) Reject(s *models.WorkflowSession, reason string, actor models.ActorRole) (*models.WorkflowEvent, error) {
	return e.apply(s, ActionReject, actor, overrideContext{session: s},
		"session rejected",
		map[string]any{"reason": reason}, nil)
}

// RequestToolpaths marks the session as waiting on toolpath generation.
func (e *Engine) RequestToolpaths(s *models.WorkflowSession, actor models.ActorRole) (*models.WorkflowEvent, error) {
	if err := guardRequestToolpaths(s); err != nil {
		return nil, err
	}

	return e.apply(s, ActionRequestToolpaths, actor, overrideContext{session: s},
		"toolpaths requested", nil, nil)
}

// StoreToolpaths records the externally generated toolpath plan reference.
func (e *Engine) StoreToolpaths(s *models.WorkflowSession, ref *models.ToolpathPlanRef, actor models.ActorRole) (*models.WorkflowEvent, error) {
	if ref == nil || ref.ID == "" {
		return nil, newTransitionError(ActionStoreToolpaths, s.State, ErrToolpathRefRequired)
	}

	return e.apply(s, ActionStoreToolpaths, actor, overrideContext{session: s},
		"toolpath plan stored",
		map[string]any{"plan_id": ref.ID},
		func(s *models.WorkflowSession) {
			s.Toolpaths = ref
		})
}

// Archive closes the session permanently. The only legal exit from REJECTED.
func (e *Engine) Archive(s *models.WorkflowSession, actor models.ActorRole) (*models.WorkflowEvent, error) {
	return e.apply(s, ActionArchive, actor, overrideContext{session: s},
		"session archived", nil, nil)
}

// BumpCandidateAttempt increments the monotonic candidate counter. Crossing
// the session cap is a governed hard-stop to REJECTED recorded under the
// candidate_budget_exceeded action.
func (e *Engine) BumpCandidateAttempt(s *models.WorkflowSession, actor models.ActorRole) (*models.WorkflowEvent, error) {
	nominal, ok := NominalTarget(s.State, ActionBumpAttempt)
	if !ok {
		return nil, newTransitionError(ActionBumpAttempt, s.State, ErrNoTransition)
	}

	next := s.CandidateAttemptCount + 1

	action := ActionBumpAttempt
	target := nominal
	summary := "candidate attempt recorded"
	details := map[string]any{
		"candidate_attempt_count": next,
		"max_candidate_attempts":  s.MaxCandidateAttempts,
	}

	if next > s.MaxCandidateAttempts {
		action = ActionBudgetExceeded
		target = models.StateRejected
		summary = "candidate attempt budget exceeded"
	}

	from := s.State
	s.CandidateAttemptCount = next
	s.State = target
	e.append(s, action, actorOrDefault(actor), from, target, summary, details)

	return &s.Events[len(s.Events)-1], nil
}

// apply runs the shared structural path: table lookup, override resolution,
// then the atomic mutate + state write + event append. mutate runs only after
// every check has passed.
func (e *Engine) apply(
	s *models.WorkflowSession,
	action Action,
	actor models.ActorRole,
	oc overrideContext,
	summary string,
	details map[string]any,
	mutate func(*models.WorkflowSession),
) (*models.WorkflowEvent, error) {
	if s.State.Terminal() {
		return nil, newTransitionError(action, s.State, ErrSessionTerminal)
	}

	nominal, ok := NominalTarget(s.State, action)
	if !ok {
		return nil, newTransitionError(action, s.State, ErrNoTransition)
	}

	target, rule := resolveTarget(action, nominal, oc)
	if rule != nil {
		if details == nil {
			details = make(map[string]any, 2)
		}

		details["override_rule"] = rule.Name
		details["override_reason"] = rule.Reason
	}

	from := s.State

	if mutate != nil {
		mutate(s)
	}

	s.State = target
	e.append(s, action, actorOrDefault(actor), from, target, summary, details)

	return &s.Events[len(s.Events)-1], nil
}

func (e *Engine) append(
	s *models.WorkflowSession,
	action Action,
	actor models.ActorRole,
	from, to models.WorkflowState,
	summary string,
	details map[string]any,
) {
	now := e.now()
	s.Events = append(s.Events, models.WorkflowEvent{
		ID:        e.newID(),
		Timestamp: now,
		Actor:     actor,
		Action:    string(action),
		FromState: from,
		ToState:   to,
		Summary:   summary,
		Details:   details,
	})
	s.UpdatedAt = now
}

func actorOrDefault(actor models.ActorRole) models.ActorRole {
	if actor == "" {
		return models.ActorSystem
	}

	return actor
}
