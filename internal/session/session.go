package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no live session exists for the key.
var ErrNotFound = errors.New("setup session not found")

// Wizard steps, in order.
const (
	StepPanelChannel = iota + 1
	StepPingRole
	StepCategory
	StepTitle
	StepDescription
)

// Session is the state of one admin's setup wizard in one guild.
type Session struct {
	GuildID          string    `json:"guild_id"`
	UserID           string    `json:"user_id"`
	Step             int       `json:"step"`
	PanelChannelID   string    `json:"panel_channel_id,omitempty"`
	PingRoleID       *string   `json:"ping_role_id,omitempty"`
	CategoryID       *string   `json:"category_id,omitempty"`
	PanelTitle       *string   `json:"panel_title,omitempty"`
	PanelDescription *string   `json:"panel_description,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store keeps wizard sessions keyed by (guild, user). Sessions expire after a
// period without updates; Put refreshes the expiry.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, guildID, userID string) (*Session, error)
	Delete(ctx context.Context, guildID, userID string) error
}

func key(guildID, userID string) string {
	return guildID + ":" + userID
}
