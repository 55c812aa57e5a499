package web

import (
	"context"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// APIHandlers exposes the engine's command surface over HTTP. Each command
// endpoint is a thin shell: parse, validate, call the service, map errors.
type APIHandlers struct {
	sessionService *services.Session
	searchService  *services.Search
	validator      *validator.Validate
}

func NewAPIHandlers(
	sessionService *services.Session,
	searchService *services.Search,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		sessionService: sessionService,
		searchService:  searchService,
		validator:      validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.sessionService.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": message})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *APIHandlers) CreateSession(c fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.sessionService.CreateSession(c.Context(), services.CreateSessionRequest{
		Mode:                 req.Mode,
		Governance:           req.Governance,
		MaxCandidateAttempts: req.MaxCandidateAttempts,
		IndexMeta:            req.IndexMeta,
		Actor:                req.Actor,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *APIHandlers) GetSessions(c fiber.Ctx) error {
	sessions, err := h.sessionService.ListSessions(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions":    sessions,
		"total_count": len(sessions),
	})
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	session, err := h.sessionService.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

// GetSessionEvents returns the ordered audit trail of one session.
func (h *APIHandlers) GetSessionEvents(c fiber.Ctx) error {
	session, err := h.sessionService.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"events":     session.Events,
	})
}

func (h *APIHandlers) SetDesign(c fiber.Ctx) error {
	return h.documentCommand(c, h.sessionService.SetDesign)
}

func (h *APIHandlers) SetContext(c fiber.Ctx) error {
	return h.documentCommand(c, h.sessionService.SetContext)
}

func (h *APIHandlers) documentCommand(
	c fiber.Ctx,
	command func(ctx context.Context, id string, doc models.Document, actor models.ActorRole) (*models.WorkflowSession, error),
) error {
	var req DocumentRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if len(req.Document) == 0 {
		return badRequest(c, "document must not be empty")
	}

	session, err := command(c.Context(), c.Params("id"), req.Document, req.Actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) RequestFeasibility(c fiber.Ctx) error {
	req := actorOnly(c)

	session, err := h.sessionService.RequestFeasibility(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) StoreFeasibility(c fiber.Ctx) error {
	var req FeasibilityRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.sessionService.StoreFeasibility(c.Context(), c.Params("id"), req.Result, req.Actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) RequireRevision(c fiber.Ctx) error {
	var req ReasonRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	session, err := h.sessionService.RequireRevision(c.Context(), c.Params("id"), req.Reason, req.Actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) Approve(c fiber.Ctx) error {
	var req ReasonRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	session, err := h.sessionService.Approve(c.Context(), c.Params("id"), req.Actor, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) Reject(c fiber.Ctx) error {
	var req ReasonRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	session, err := h.sessionService.Reject(c.Context(), c.Params("id"), req.Reason, req.Actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) RequestToolpaths(c fiber.Ctx) error {
	req := actorOnly(c)

	session, err := h.sessionService.RequestToolpaths(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) StoreToolpaths(c fiber.Ctx) error {
	var req ToolpathsRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.sessionService.StoreToolpaths(c.Context(), c.Params("id"), req.Ref, req.Actor)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) Archive(c fiber.Ctx) error {
	session, err := h.sessionService.Archive(c.Context(), c.Params("id"), actorOnly(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) BumpCandidateAttempt(c fiber.Ctx) error {
	session, err := h.sessionService.BumpCandidateAttempt(c.Context(), c.Params("id"), actorOnly(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

func (h *APIHandlers) AttachArtifact(c fiber.Ctx) error {
	var req ArtifactRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.sessionService.AttachArtifact(c.Context(), c.Params("id"), req.Ref)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(session)
}

// RunSearch launches a constraint-first candidate search for the session.
// The session itself is not mutated; the report carries the winner.
func (h *APIHandlers) RunSearch(c fiber.Ctx) error {
	var req SearchRequestBody
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	report, err := h.searchService.RunConstraintFirst(c.Context(), services.SearchRequest{
		SessionID: c.Params("id"),
		Seed:      req.Seed,
		Budget:    req.Budget,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

// actorOnly reads the optional actor field from commands without a body
// schema of their own.
func actorOnly(c fiber.Ctx) models.ActorRole {
	var req ReasonRequest
	if err := c.Bind().Body(&req); err != nil {
		return ""
	}

	return req.Actor
}
