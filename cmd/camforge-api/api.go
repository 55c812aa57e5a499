// Package main provides the CamForge API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/camforge/camforge/pkg/eventbus"
	"github.com/camforge/camforge/pkg/feasibility"
	"github.com/camforge/camforge/pkg/persistence"
	"github.com/camforge/camforge/pkg/schema"
	"github.com/camforge/camforge/pkg/search"
	"github.com/camforge/camforge/pkg/services"
	"github.com/camforge/camforge/pkg/web"
	"github.com/camforge/camforge/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	schemas     *schema.Registry
	validate    *validator.Validate
	tracer      trace.Tracer

	sessionService *services.Session
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	schemas *schema.Registry,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		schemas:     schemas,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SetTracer enables span emission on the session and search services.
func (a *API) SetTracer(tracer trace.Tracer) {
	a.tracer = tracer
	a.SessionService().SetTracer(tracer)
}

// SessionService exposes the session service for components that live
// outside the HTTP surface, such as the archiver.
func (a *API) SessionService() *services.Session {
	if a.sessionService == nil {
		engine := workflow.New()
		a.sessionService = services.NewSession(
			a.persistence,
			engine,
			workflow.NewArtifactHookRegistry(a.logger),
			a.eventBus,
			a.schemas,
			a.logger,
		)
	}

	return a.sessionService
}

func (a *API) App() *fiber.App {
	sessionService := a.SessionService()
	searchService := services.NewSearch(
		sessionService,
		feasibility.NewHeuristic(),
		search.DefaultPolicy(),
		a.eventBus,
		a.logger,
	)
	if a.tracer != nil {
		searchService.SetTracer(a.tracer)
	}

	handlers := web.NewAPIHandlers(sessionService, searchService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("CamForge API")
	})

	s := app.Group("/sessions")
	s.Get("/", handlers.GetSessions)
	s.Post("/", handlers.CreateSession)
	s.Get("/:id", handlers.GetSession)
	s.Get("/:id/events", handlers.GetSessionEvents)

	// Command endpoints:
	s.Put("/:id/design", handlers.SetDesign)
	s.Put("/:id/context", handlers.SetContext)
	s.Post("/:id/feasibility/request", handlers.RequestFeasibility)
	s.Post("/:id/feasibility", handlers.StoreFeasibility)
	s.Post("/:id/revision", handlers.RequireRevision)
	s.Post("/:id/approve", handlers.Approve)
	s.Post("/:id/reject", handlers.Reject)
	s.Post("/:id/toolpaths/request", handlers.RequestToolpaths)
	s.Post("/:id/toolpaths", handlers.StoreToolpaths)
	s.Post("/:id/archive", handlers.Archive)
	s.Post("/:id/candidate-attempts", handlers.BumpCandidateAttempt)
	s.Post("/:id/artifacts", handlers.AttachArtifact)
	s.Post("/:id/search", handlers.RunSearch)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
