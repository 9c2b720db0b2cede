package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated   TicketChangeType = "created"
	ChangeTypeClosed    TicketChangeType = "closed"
	ChangeTypeClaimed   TicketChangeType = "claimed"
	ChangeTypeUnclaimed TicketChangeType = "unclaimed"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          int64
	TicketID    int64
	ChannelID   string
	ChangeType  TicketChangeType
	ChangedByID string
	Detail      map[string]any
	CreatedAt   time.Time
}
