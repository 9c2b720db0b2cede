package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const defaultPeriodDays = 7

// StatsHandler exposes read-only ticket data to operators.
type StatsHandler struct {
	tickets  repository.TicketRepository
	history  repository.TicketHistoryRepository
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewStatsHandler constructs handler.
func NewStatsHandler(tickets repository.TicketRepository, history repository.TicketHistoryRepository, metrics *observability.Metrics) *StatsHandler {
	return &StatsHandler{tickets: tickets, history: history, metrics: metrics, validate: validator.New()}
}

// Overall GET /api/stats.
func (h *StatsHandler) Overall(c *fiber.Ctx) error {
	stats, err := h.tickets.Statistics(c.UserContext())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Period GET /api/stats/period?days=N.
func (h *StatsHandler) Period(c *fiber.Ctx) error {
	q := dto.PeriodQuery{Days: defaultPeriodDays}
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("days must be an integer", nil)
	}
	if err := h.validate.Struct(q); err != nil {
		return apperrors.NewValidationError("days must be between 1 and 365", map[string]any{"days": q.Days})
	}
	stats, err := h.tickets.PeriodStatistics(c.UserContext(), q.Days)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Ticket GET /api/tickets/:channelID.
func (h *StatsHandler) Ticket(c *fiber.Ctx) error {
	channelID := c.Params("channelID")
	ticket, err := h.tickets.GetByChannel(c.UserContext(), channelID)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return apperrors.NewNotFound("ticket not found", map[string]any{"channel_id": channelID})
		}
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History GET /api/tickets/:channelID/history.
func (h *StatsHandler) History(c *fiber.Ctx) error {
	if h.history == nil {
		return apperrors.NewNotFound("ticket history is not recorded", nil)
	}
	channelID := c.Params("channelID")
	if _, err := h.tickets.GetByChannel(c.UserContext(), channelID); err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return apperrors.NewNotFound("ticket not found", map[string]any{"channel_id": channelID})
		}
		return apperrors.NewInternalError(err)
	}
	entries, err := h.history.ListByChannel(c.UserContext(), channelID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryList(entries)})
}

// UserTickets GET /api/users/:userID/tickets?status=open|closed.
func (h *StatsHandler) UserTickets(c *fiber.Ctx) error {
	var q dto.TicketListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := h.validate.Struct(q); err != nil {
		return apperrors.NewValidationError("status must be open or closed", map[string]any{"status": q.Status})
	}
	var status *domain.TicketStatus
	if q.Status != "" {
		s := domain.TicketStatus(q.Status)
		status = &s
	}
	tickets, err := h.tickets.ListByUser(c.UserContext(), c.Params("userID"), status)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

// ClaimedTickets GET /api/staff/:staffID/tickets.
func (h *StatsHandler) ClaimedTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListClaimedBy(c.UserContext(), c.Params("staffID"))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

// Metrics GET /metrics.
func (h *StatsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
