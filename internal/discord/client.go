package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Client implements platform.Client over a discordgo session.
type Client struct {
	session *discordgo.Session
}

// NewClient wraps an opened session.
func NewClient(session *discordgo.Session) *Client {
	return &Client{session: session}
}

// mapError translates REST failures into platform errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", op, platform.ErrForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %v", op, platform.ErrNotFound, err)
		}
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return fmt.Errorf("%s: %w", op, platform.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) SelfID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

func toPermissionBits(p platform.Permission) int64 {
	var bits int64
	if p.Has(platform.PermView) {
		bits |= discordgo.PermissionViewChannel
	}
	if p.Has(platform.PermSend) {
		bits |= discordgo.PermissionSendMessages
	}
	if p.Has(platform.PermReadHistory) {
		bits |= discordgo.PermissionReadMessageHistory
	}
	if p.Has(platform.PermManage) {
		bits |= discordgo.PermissionManageChannels
	}
	return bits
}

func toOverwrite(o platform.Overwrite) *discordgo.PermissionOverwrite {
	kind := discordgo.PermissionOverwriteTypeRole
	if o.Kind == platform.TargetMember {
		kind = discordgo.PermissionOverwriteTypeMember
	}
	// @everyone is the role whose id equals the guild id.
	return &discordgo.PermissionOverwrite{
		ID:    o.ID,
		Type:  kind,
		Allow: toPermissionBits(o.Allow),
		Deny:  toPermissionBits(o.Deny),
	}
}

func fromChannel(ch *discordgo.Channel) *platform.Channel {
	kind := platform.ChannelOther
	switch ch.Type {
	case discordgo.ChannelTypeGuildText:
		kind = platform.ChannelText
	case discordgo.ChannelTypeGuildCategory:
		kind = platform.ChannelCategory
	}
	return &platform.Channel{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		Name:     ch.Name,
		ParentID: ch.ParentID,
		Kind:     kind,
	}
}

func (c *Client) CreateChannel(ctx context.Context, spec platform.ChannelSpec) (*platform.Channel, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(spec.Overwrites))
	for _, o := range spec.Overwrites {
		overwrites = append(overwrites, toOverwrite(o))
	}
	ch, err := c.session.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             spec.ParentID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(spec.Reason))
	if err != nil {
		return nil, mapError("create channel", err)
	}
	return fromChannel(ch), nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return mapError("delete channel", err)
}

func (c *Client) Channel(ctx context.Context, channelID string) (*platform.Channel, error) {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return fromChannel(ch), nil
	}
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("get channel", err)
	}
	return fromChannel(ch), nil
}

func (c *Client) Categories(ctx context.Context, guildID string) ([]platform.Channel, error) {
	channels, err := c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("list channels", err)
	}
	out := make([]platform.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			out = append(out, *fromChannel(ch))
		}
	}
	return out, nil
}

func (c *Client) Role(ctx context.Context, guildID, roleID string) (*platform.Role, error) {
	if r, err := c.session.State.Role(guildID, roleID); err == nil {
		return &platform.Role{ID: r.ID, GuildID: guildID, Name: r.Name}, nil
	}
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("list roles", err)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return &platform.Role{ID: r.ID, GuildID: guildID, Name: r.Name}, nil
		}
	}
	return nil, fmt.Errorf("role %s: %w", roleID, platform.ErrNotFound)
}

func (c *Client) CanSend(ctx context.Context, channelID string) (bool, error) {
	perms, err := c.session.State.UserChannelPermissions(c.SelfID(), channelID)
	if err != nil {
		perms, err = c.session.UserChannelPermissions(c.SelfID(), channelID, discordgo.WithContext(ctx))
		if err != nil {
			return false, mapError("channel permissions", err)
		}
	}
	const need = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
	return perms&discordgo.PermissionAdministrator != 0 || perms&need == need, nil
}

func (c *Client) SendNotice(ctx context.Context, channelID string, notice platform.Notice) (*platform.Message, error) {
	msg, err := c.session.ChannelMessageSendComplex(channelID, toMessageSend(notice), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("send message", err)
	}
	return fromMessage(msg), nil
}

func (c *Client) EditNotice(ctx context.Context, channelID, messageID string, notice platform.Notice) error {
	edit := discordgo.NewMessageEdit(channelID, messageID).
		SetContent(notice.Content).
		SetEmbeds(toEmbeds(notice))
	_, err := c.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return mapError("edit message", err)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapError("delete message", c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (c *Client) RecentMessages(ctx context.Context, channelID string, limit int) ([]platform.Message, error) {
	msgs, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError("read history", err)
	}
	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *fromMessage(m))
	}
	return out, nil
}

func (c *Client) SendDirect(ctx context.Context, userID string, notice platform.Notice) error {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError("open direct channel", err)
	}
	_, err = c.session.ChannelMessageSendComplex(dm.ID, toMessageSend(notice), discordgo.WithContext(ctx))
	return mapError("send direct message", err)
}

func fromMessage(m *discordgo.Message) *platform.Message {
	out := &platform.Message{ID: m.ID, ChannelID: m.ChannelID, HasEmbeds: len(m.Embeds) > 0}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	return out
}

var _ platform.Client = (*Client)(nil)
