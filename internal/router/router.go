package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/markwise-app/markwise-api/internal/config"
	"github.com/markwise-app/markwise-api/internal/handler"
	"github.com/markwise-app/markwise-api/internal/middleware"
	"github.com/markwise-app/markwise-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	EventsHandler     *handler.EventsHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware)
		// Grading runs hold an upstream model call; keep the burst window small.
		evaluations.Use(middleware.RateLimit("evaluations", 30, time.Minute))

		if deps.EventsHandler != nil {
			deps.EventsHandler.Register(evaluations)
		}
		deps.EvaluationHandler.Register(evaluations)
	}
}
