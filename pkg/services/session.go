package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/camforge/camforge/pkg/eventbus"
	"github.com/camforge/camforge/pkg/events"
	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/otelhelper"
	"github.com/camforge/camforge/pkg/persistence"
	"github.com/camforge/camforge/pkg/schema"
	"github.com/camforge/camforge/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Session coordinates engine commands with persistence and the event bus.
//
// Commands are applied under a per-session mutex: guard evaluation, table
// lookup, event append, and the state write form one indivisible unit, and
// at most one mutating command per session id is in flight at a time. No
// cross-session locking exists.
type Session struct {
	persistence persistence.Persistence
	engine      *workflow.Engine
	hooks       *workflow.ArtifactHookRegistry
	publisher   eventbus.EventPublisher
	schemas     *schema.Registry
	validate    *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer

	defaultGovernance *models.GovernancePolicy

	locks sync.Map // session id → *sync.Mutex
}

// NewSession creates the session service. publisher and schemas may be nil;
// commands then skip event publication and schema validation respectively.
func NewSession(
	store persistence.Persistence,
	engine *workflow.Engine,
	hooks *workflow.ArtifactHookRegistry,
	publisher eventbus.EventPublisher,
	schemas *schema.Registry,
	logger *slog.Logger,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		persistence: store,
		engine:      engine,
		hooks:       hooks,
		publisher:   publisher,
		schemas:     schemas,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// SetTracer enables span emission around engine commands.
func (s *Session) SetTracer(tracer trace.Tracer) {
	s.tracer = tracer
}

// SetDefaultGovernance installs the deployment-level governance policy used
// when a create request carries no explicit knobs.
func (s *Session) SetDefaultGovernance(policy *models.GovernancePolicy) {
	s.defaultGovernance = policy
}

// HealthCheck checks the health of the persistence layer.
func (s *Session) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (s *Session) lock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})

	return mu.(*sync.Mutex)
}

// CreateSessionRequest parameterizes session creation.
type CreateSessionRequest struct {
	Mode                 models.WorkflowMode `json:"mode" validate:"required,oneof=design_first constraint_first ai_assisted"`
	Governance           *models.GovernancePolicy
	MaxCandidateAttempts int `json:"max_candidate_attempts" validate:"min=0"`
	IndexMeta            map[string]string
	Actor                models.ActorRole
}

// CreateSession creates and persists a new session in DRAFT.
func (s *Session) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.WorkflowSession, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("CreateSession", err.Error(), ErrInvalidRequest)
	}

	governance := req.Governance
	if governance == nil {
		governance = s.defaultGovernance
	}

	session, err := s.engine.NewSession(workflow.NewSessionInput{
		Mode:                 req.Mode,
		Governance:           governance,
		MaxCandidateAttempts: req.MaxCandidateAttempts,
		IndexMeta:            req.IndexMeta,
		Actor:                req.Actor,
	})
	if err != nil {
		return nil, NewValidationError("CreateSession", err.Error(), ErrInvalidMode)
	}

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist new session: %w", err)
	}

	s.publishCommand(ctx, session, &session.Events[0])

	return session, nil
}

// GetSession loads one session.
func (s *Session) GetSession(ctx context.Context, id string) (*models.WorkflowSession, error) {
	return s.persistence.SessionByID(ctx, id)
}

// ListSessions loads every session.
func (s *Session) ListSessions(ctx context.Context) ([]*models.WorkflowSession, error) {
	return s.persistence.Sessions(ctx)
}

// command runs one engine command under the session's single-writer lock:
// load, apply, save, publish. The stored session is only replaced when the
// command fully applied and the save succeeded.
func (s *Session) command(
	ctx context.Context,
	id string,
	apply func(*models.WorkflowSession) (*models.WorkflowEvent, error),
) (*models.WorkflowSession, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.persistence.SessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, session)
	defer span.End()

	event, err := apply(session)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.SessionIDKey, id))

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.ActionKey, event.Action),
		attribute.String(otelhelper.ActorKey, string(event.Actor)),
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.SessionStateKey, string(session.State)),
	)

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.SessionIDKey, id))

		return nil, fmt.Errorf("failed to persist session %s: %w", id, err)
	}

	s.publishCommand(ctx, session, event)

	return session, nil
}

// startSpan opens a command span when a tracer is configured. Without one it
// returns a no-op span so command() has a single shape.
func (s *Session) startSpan(ctx context.Context, session *models.WorkflowSession) (context.Context, trace.Span) {
	if s.tracer == nil {
		return noop.NewTracerProvider().Tracer("camforge").Start(ctx, "session.command")
	}

	return otelhelper.StartSpan(ctx, s.tracer, "session.command",
		attribute.String(otelhelper.SessionIDKey, session.ID),
		attribute.String(otelhelper.SessionModeKey, string(session.Mode)),
	)
}

func (s *Session) publishCommand(ctx context.Context, session *models.WorkflowSession, event *models.WorkflowEvent) {
	if s.publisher == nil || event == nil {
		return
	}

	busEvent := events.SessionCommandApplied{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.SessionCommandAppliedEvent,
			Timestamp: time.Now(),
		},
		SessionID: session.ID,
		Action:    event.Action,
		FromState: event.FromState,
		ToState:   event.ToState,
		Event:     *event,
	}

	if err := s.publisher.Publish(ctx, session.ID, busEvent); err != nil {
		// Publication is best-effort distribution of the audit trail; the
		// authoritative copy is already persisted on the session.
		s.logger.Warn("failed to publish session event",
			"session_id", session.ID, "action", event.Action, "error", err)
	}
}

func (s *Session) validateDocument(session *models.WorkflowSession, role schema.DocumentRole, doc models.Document) error {
	if s.schemas == nil {
		return nil
	}

	if err := s.schemas.Validate(session.Mode, role, doc); err != nil {
		return NewValidationError("validateDocument", err.Error(), ErrInvalidRequest)
	}

	return nil
}

// SetDesign replaces the design document.
func (s *Session) SetDesign(ctx context.Context, id string, design models.Document, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		if err := s.validateDocument(session, schema.RoleDesign, design); err != nil {
			return nil, err
		}

		return s.engine.SetDesign(session, design, actor)
	})
}

// SetContext replaces the context document.
func (s *Session) SetContext(ctx context.Context, id string, docCtx models.Document, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		if err := s.validateDocument(session, schema.RoleContext, docCtx); err != nil {
			return nil, err
		}

		return s.engine.SetContext(session, docCtx, actor)
	})
}

// RequestFeasibility marks the session as waiting for feasibility scoring.
func (s *Session) RequestFeasibility(ctx context.Context, id string, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.RequestFeasibility(session, actor)
	})
}

// StoreFeasibility records a feasibility result under the governance rules.
func (s *Session) StoreFeasibility(ctx context.Context, id string, result *models.FeasibilityResult, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.StoreFeasibility(session, result, actor)
	})
}

// RequireRevision sends the session back for design rework.
func (s *Session) RequireRevision(ctx context.Context, id, reason string, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.RequireRevision(session, reason, actor)
	})
}

// Approve records an explicit sign-off.
func (s *Session) Approve(ctx context.Context, id string, actor models.ActorRole, note string) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.Approve(session, actor, note)
	})
}

// Reject moves the session to REJECTED.
func (s *Session) Reject(ctx context.Context, id, reason string, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.Reject(session, reason, actor)
	})
}

// RequestToolpaths marks the session as waiting for toolpath generation.
func (s *Session) RequestToolpaths(ctx context.Context, id string, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.RequestToolpaths(session, actor)
	})
}

// StoreToolpaths records the generated toolpath plan reference.
func (s *Session) StoreToolpaths(ctx context.Context, id string, ref *models.ToolpathPlanRef, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.StoreToolpaths(session, ref, actor)
	})
}

// Archive closes the session permanently.
func (s *Session) Archive(ctx context.Context, id string, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.Archive(session, actor)
	})
}

// BumpCandidateAttempt increments the candidate counter under governance.
func (s *Session) BumpCandidateAttempt(ctx context.Context, id string, actor models.ActorRole) (*models.WorkflowSession, error) {
	return s.command(ctx, id, func(session *models.WorkflowSession) (*models.WorkflowEvent, error) {
		return s.engine.BumpCandidateAttempt(session, actor)
	})
}

// AttachArtifact routes an artifact ref through the hook registry and
// persists the updated pointers. Attachment is idempotent and appends no
// audit event.
func (s *Session) AttachArtifact(ctx context.Context, id string, ref *models.RunArtifactRef) (*models.WorkflowSession, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.persistence.SessionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Attach(session, ref); err != nil {
		return nil, NewValidationError("AttachArtifact", err.Error(), ErrInvalidRequest)
	}

	if err := s.persistence.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session %s: %w", id, err)
	}

	return session, nil
}
