package domain

import (
	"errors"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

var (
	// ErrTicketNotFound is returned when no ticket is bound to a channel.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrOpenTicketExists is returned by the store when the requester already holds an open ticket.
	ErrOpenTicketExists = errors.New("user already has an open ticket")
)

// Ticket is a support request backed by one private channel.
type Ticket struct {
	ID          int64
	ChannelID   string
	UserID      string
	Status      TicketStatus
	CreatedAt   time.Time
	ClosedAt    *time.Time
	CloseReason *string
	ClaimedBy   *string
	ClaimedAt   *time.Time
}

// IsOpen reports whether the ticket still accepts transitions.
func (t *Ticket) IsOpen() bool {
	return t != nil && t.Status == TicketStatusOpen
}

// IsClaimed reports whether a staff member currently holds the ticket.
func (t *Ticket) IsClaimed() bool {
	return t != nil && t.ClaimedBy != nil && *t.ClaimedBy != ""
}

// TicketStatistics aggregates counts over the whole table.
// Claimed and Unclaimed only count open tickets.
type TicketStatistics struct {
	Total     int64 `json:"total"`
	Open      int64 `json:"open"`
	Closed    int64 `json:"closed"`
	Claimed   int64 `json:"claimed"`
	Unclaimed int64 `json:"unclaimed"`
}

// PeriodStatistics aggregates tickets created in the last Days days.
type PeriodStatistics struct {
	Days   int   `json:"days"`
	Total  int64 `json:"total"`
	Open   int64 `json:"open"`
	Closed int64 `json:"closed"`
}
