package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/api/handlers"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/api/middleware"
)

// RouteDeps are the services behind the HTTP API
type RouteDeps struct {
	Research  handlers.ResearchService
	Usage     handlers.UsageService
	Validator middleware.TokenValidator
	Logger    *logrus.Logger

	// WatchInterval is the websocket polling period; zero uses the default.
	WatchInterval time.Duration
	// RateLimit is the per-user request budget per minute; zero uses 120.
	RateLimit int
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps RouteDeps) {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.RateLimit <= 0 {
		deps.RateLimit = 120
	}

	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "deep-research",
		})
	})

	protected := api.Group("",
		middleware.AuthRequired(deps.Validator, deps.Logger),
		middleware.APIRateLimit(deps.RateLimit, time.Minute),
		middleware.AuditMiddleware(middleware.AuditConfig{Logger: deps.Logger}),
	)

	// Research sessions
	protected.Post("/sessions", middleware.SessionCreateRateLimit(), handlers.CreateSession(deps.Research))
	protected.Get("/sessions", handlers.GetSessions(deps.Research))
	protected.Get("/sessions/:id", handlers.GetSession(deps.Research))
	protected.Post("/sessions/:id/refinements/:index", handlers.SubmitRefinement(deps.Research))
	protected.Get("/sessions/:id/report", handlers.GetReport(deps.Research))
	protected.Get("/sessions/:id/events", handlers.GetSessionEvents(deps.Research))

	// Usage
	protected.Get("/usage", handlers.GetUsage(deps.Usage))

	// Session progress over websocket
	app.Get("/ws/sessions/:id",
		middleware.AuthRequired(deps.Validator, deps.Logger),
		middleware.WebSocketUpgrade(),
		websocket.New(handlers.WatchSession(deps.Research, deps.WatchInterval, deps.Logger)),
	)
}
