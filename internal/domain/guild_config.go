package domain

import (
	"errors"
	"time"
)

// ErrGuildConfigNotFound is returned when a community has not been set up.
var ErrGuildConfigNotFound = errors.New("guild config not found")

// GuildConfig is the per-community configuration written by the setup wizard.
// Writes always replace the whole record.
type GuildConfig struct {
	GuildID          string
	PanelChannelID   string
	SupportRoleID    *string
	TicketCategoryID *string
	PingRoleID       *string
	PanelTitle       *string
	PanelDescription *string
	UpdatedAt        time.Time
}

// StringOrEmpty dereferences optional identifiers.
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OptionalString turns an empty string into nil.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
