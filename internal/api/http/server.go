package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

// ServerDeps carries what the ops API needs.
type ServerDeps struct {
	ServiceName string
	Version     string
	Tickets     repository.TicketRepository
	History     repository.TicketHistoryRepository
	Tokens      *auth.TokenManager
	Metrics     *observability.Metrics
	Checks      []handlers.Check
	Logger      *zap.Logger
	Timeout     time.Duration
}

// NewApp builds the fiber app serving health probes and read-only ticket data.
func NewApp(deps ServerDeps) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true, AppName: deps.ServiceName})
	RegisterMiddlewares(app, logger, deps.Metrics, deps.Timeout)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(deps.ServiceName, deps.Version, deps.Checks...),
		Stats:          handlers.NewStatsHandler(deps.Tickets, deps.History, deps.Metrics),
		AuthMiddleware: auth.NewAuthMiddleware(deps.Tokens),
	})
	return app
}
