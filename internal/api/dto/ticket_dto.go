package dto

import (
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketResponse is the JSON view of a ticket row.
type TicketResponse struct {
	ID          int64               `json:"ticket_id"`
	ChannelID   string              `json:"channel_id"`
	UserID      string              `json:"user_id"`
	Status      domain.TicketStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
	CloseReason *string             `json:"close_reason,omitempty"`
	ClaimedBy   *string             `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time          `json:"claimed_at,omitempty"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID          int64                   `json:"id"`
	TicketID    int64                   `json:"ticket_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID string                  `json:"changed_by_id,omitempty"`
	Detail      map[string]any          `json:"detail,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TicketListQuery captures filters for the per-user listing.
type TicketListQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=open closed"`
}

// PeriodQuery captures the rolling window for period statistics.
type PeriodQuery struct {
	Days int `query:"days" validate:"gte=1,lte=365"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		ChannelID:   t.ChannelID,
		UserID:      t.UserID,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		ClosedAt:    t.ClosedAt,
		CloseReason: t.CloseReason,
		ClaimedBy:   t.ClaimedBy,
		ClaimedAt:   t.ClaimedAt,
	}
}

// NewHistoryList maps audit entries, never returning nil.
func NewHistoryList(entries []domain.TicketHistory) []TicketHistoryResponse {
	items := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, TicketHistoryResponse{
			ID:          e.ID,
			TicketID:    e.TicketID,
			ChangeType:  e.ChangeType,
			ChangedByID: e.ChangedByID,
			Detail:      e.Detail,
			CreatedAt:   e.CreatedAt,
		})
	}
	return items
}

// NewTicketList maps a slice of tickets, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}
