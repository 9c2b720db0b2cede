package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/metrics", cfg.AuthMiddleware.Handle, cfg.Stats.Metrics)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Get("/whoami", handlers.Whoami)
	api.Get("/stats", cfg.Stats.Overall)
	api.Get("/stats/period", cfg.Stats.Period)
	api.Get("/tickets/:channelID", cfg.Stats.Ticket)
	api.Get("/tickets/:channelID/history", cfg.Stats.History)
	api.Get("/users/:userID/tickets", cfg.Stats.UserTickets)
	api.Get("/staff/:staffID/tickets", cfg.Stats.ClaimedTickets)
}
