package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/camforge/camforge/pkg/eventbus"
	"github.com/camforge/camforge/pkg/events"
	"github.com/camforge/camforge/pkg/feasibility"
	"github.com/camforge/camforge/pkg/generator"
	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/otelhelper"
	"github.com/camforge/camforge/pkg/search"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Search runs constraint-first candidate searches against stored sessions.
// A run never mutates the session it reads from: callers feed the winning
// design back through SetDesign explicitly.
type Search struct {
	sessions  *Session
	scorer    feasibility.Engine
	policy    search.Policy
	publisher eventbus.EventPublisher
	validate  *validator.Validate
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewSearch creates the search service. publisher may be nil.
func NewSearch(sessions *Session, scorer feasibility.Engine, policy search.Policy, publisher eventbus.EventPublisher, logger *slog.Logger) *Search {
	if logger == nil {
		logger = slog.Default()
	}

	return &Search{
		sessions:  sessions,
		scorer:    scorer,
		policy:    policy,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// SetTracer enables span emission around search runs.
func (s *Search) SetTracer(tracer trace.Tracer) {
	s.tracer = tracer
}

// SearchRequest parameterizes one constraint-first run.
type SearchRequest struct {
	SessionID string              `json:"session_id" validate:"required"`
	Seed      models.Document     `json:"seed,omitempty"`
	Budget    models.SearchBudget `json:"budget"`

	// Factory overrides the default jitter generator, e.g. to plug in an
	// AI-assisted proposer. Optional.
	Factory generator.Factory `json:"-"`
}

// RunConstraintFirst executes the loop for a stored session's context and
// mode. The winning candidate, if any, is returned in the report.
func (s *Search) RunConstraintFirst(ctx context.Context, req SearchRequest) (*models.SearchReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("RunConstraintFirst", err.Error(), ErrInvalidRequest)
	}

	if err := s.validate.Struct(req.Budget); err != nil {
		return nil, NewValidationError("RunConstraintFirst", err.Error(), ErrInvalidBudget)
	}

	session, err := s.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if !session.HasContext() {
		return nil, NewValidationError("RunConstraintFirst",
			"constraint-first search needs a context document on the session", ErrMissingContext)
	}

	seed := req.Seed
	if len(seed) == 0 {
		seed = session.Design
	}

	if len(seed) == 0 {
		seed = generator.SeedFromLimits(session.Context)
	}

	factory := req.Factory
	if factory == nil {
		factory = generator.JitterFactory(seed, 0)
	}

	runID := uuid.New().String()

	ctx, span := s.startSpan(ctx, session, runID)
	defer span.End()

	loop := search.NewLoop(s.scorer, factory, s.policy, s.logger,
		&busAttemptLogger{publisher: s.publisher, sessionID: session.ID, logger: s.logger})

	report := loop.Run(ctx, search.Params{
		RunID:   runID,
		Seed:    seed,
		Context: session.Context,
		Mode:    session.Mode,
		Budget:  req.Budget,
	})

	if report.Best != nil {
		span.SetAttributes(
			attribute.Int(otelhelper.AttemptIndexKey, report.Best.Index),
			attribute.String(otelhelper.RiskBucketKey, string(report.Best.Result.RiskBucket)),
		)
	}

	return report, nil
}

// startSpan opens a run span when a tracer is configured. Without one it
// returns a no-op span so RunConstraintFirst has a single shape.
func (s *Search) startSpan(ctx context.Context, session *models.WorkflowSession, runID string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return noop.NewTracerProvider().Tracer("camforge").Start(ctx, "search.run")
	}

	return otelhelper.StartSpan(ctx, s.tracer, "search.run",
		attribute.String(otelhelper.SessionIDKey, session.ID),
		attribute.String(otelhelper.SessionModeKey, string(session.Mode)),
		attribute.String(otelhelper.RunIDKey, runID),
	)
}

// busAttemptLogger mirrors the loop's audit stream onto the event bus.
type busAttemptLogger struct {
	publisher eventbus.EventPublisher
	sessionID string
	logger    *slog.Logger
}

func (l *busAttemptLogger) LogAttempt(ctx context.Context, runID string, attempt models.CandidateAttempt) {
	if l.publisher == nil {
		return
	}

	event := events.SearchAttemptScored{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.SearchAttemptScoredEvent,
			Timestamp: time.Now(),
		},
		RunID:     runID,
		SessionID: l.sessionID,
		Attempt:   attempt,
	}

	if err := l.publisher.Publish(ctx, runID, event); err != nil {
		l.logger.Warn("failed to publish search attempt", "run_id", runID, "error", err)
	}
}

func (l *busAttemptLogger) LogSummary(ctx context.Context, report *models.SearchReport) {
	if l.publisher == nil {
		return
	}

	event := events.SearchRunCompleted{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.SearchRunCompletedEvent,
			Timestamp: time.Now(),
		},
		RunID:     report.RunID,
		SessionID: l.sessionID,
		Report:    report,
	}

	if err := l.publisher.Publish(ctx, report.RunID, event); err != nil {
		l.logger.Warn("failed to publish search summary", "run_id", report.RunID, "error", err)
	}
}
