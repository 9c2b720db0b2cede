package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketClosed     EventType = "ticket_closed"
	EventTicketClaimed    EventType = "ticket_claimed"
	EventTicketUnclaimed  EventType = "ticket_unclaimed"
	EventGuildConfigSaved EventType = "guild_config_saved"
	EventGuildConfigReset EventType = "guild_config_reset"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string `json:"user_id"`
	Admin  bool   `json:"admin,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	ChannelID string      `json:"channel_id,omitempty"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ChannelName string  `json:"channel_name"`
	CategoryID  *string `json:"category_id,omitempty"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	OwnerID string  `json:"owner_id"`
	Reason  *string `json:"reason,omitempty"`
}

// TicketClaimPayload is used by claim and unclaim events.
type TicketClaimPayload struct {
	StaffID string `json:"staff_id"`
}

// GuildConfigPayload payload.
type GuildConfigPayload struct {
	PanelChannelID string `json:"panel_channel_id"`
	PanelMessageID string `json:"panel_message_id,omitempty"`
}
