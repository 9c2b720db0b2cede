package platform

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrForbidden is returned when the bot lacks the rights for an operation.
	ErrForbidden = errors.New("platform: missing permissions")
	// ErrNotFound is returned when a channel, role, user or message does not exist.
	ErrNotFound = errors.New("platform: not found")
)

// Permission is a bit set of channel permission flags.
type Permission uint8

const (
	PermView Permission = 1 << iota
	PermSend
	PermReadHistory
	PermManage
)

// Has reports whether every flag in other is set.
func (p Permission) Has(other Permission) bool {
	return p&other == other
}

// TargetKind identifies what an overwrite applies to.
type TargetKind int

const (
	TargetEveryone TargetKind = iota
	TargetRole
	TargetMember
)

// Overwrite grants or denies permissions on a channel for one target.
// For TargetEveryone the ID is the guild ID.
type Overwrite struct {
	Kind  TargetKind
	ID    string
	Allow Permission
	Deny  Permission
}

// ChannelSpec describes a text channel to create.
type ChannelSpec struct {
	GuildID    string
	Name       string
	ParentID   string
	Reason     string
	Overwrites []Overwrite
}

// ChannelKind classifies channels.
type ChannelKind int

const (
	ChannelOther ChannelKind = iota
	ChannelText
	ChannelCategory
)

// Channel is the subset of channel state the bot relies on.
type Channel struct {
	ID       string
	GuildID  string
	Name     string
	ParentID string
	Kind     ChannelKind
}

// Role is a guild role.
type Role struct {
	ID      string
	GuildID string
	Name    string
}

// Embed limits enforced by the platform, in characters.
const (
	MaxTitleLength       = 256
	MaxDescriptionLength = 4096
	MaxFieldNameLength   = 256
	MaxFieldValueLength  = 1024
	MaxFooterLength      = 2048
)

// Field is a named block inside a notice.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Button is an interactive control attached to a notice. ActionID is routed
// back to the bot when the button is pressed.
type Button struct {
	Label    string
	ActionID string
}

// Notice is a formatted message: optional plain content plus an embed.
type Notice struct {
	Content     string
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Timestamp   time.Time
	Button      *Button
}

// HasEmbed reports whether the notice renders an embed.
func (n Notice) HasEmbed() bool {
	return n.Title != "" || n.Description != "" || len(n.Fields) > 0
}

// Message is a posted message.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	HasEmbeds bool
}

// Client is the chat platform surface used by the ticket services.
type Client interface {
	SelfID() string
	CreateChannel(ctx context.Context, spec ChannelSpec) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	Channel(ctx context.Context, channelID string) (*Channel, error)
	Categories(ctx context.Context, guildID string) ([]Channel, error)
	Role(ctx context.Context, guildID, roleID string) (*Role, error)
	// CanSend reports whether the bot may post in the channel.
	CanSend(ctx context.Context, channelID string) (bool, error)
	SendNotice(ctx context.Context, channelID string, notice Notice) (*Message, error)
	EditNotice(ctx context.Context, channelID, messageID string, notice Notice) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	SendDirect(ctx context.Context, userID string, notice Notice) error
}
