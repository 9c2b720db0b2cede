package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
)

const handlerTimeout = 30 * time.Second

// MessageHandler consumes plain guild messages, e.g. setup wizard answers.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg service.IncomingMessage) (bool, error)
}

// Bot owns the gateway session and feeds its events to the router.
type Bot struct {
	session  *discordgo.Session
	router   *Router
	messages MessageHandler
	guildID  string
	logger   *zap.Logger
	onReady  func(ctx context.Context)
}

// BotOptions configures a Bot.
type BotOptions struct {
	Session  *discordgo.Session
	Router   *Router
	Messages MessageHandler
	// GuildID scopes command registration to one guild when set.
	GuildID string
	Logger  *zap.Logger
	// OnReady runs once the gateway session is ready.
	OnReady func(ctx context.Context)
}

// NewSession creates a discordgo session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent
	return s, nil
}

// NewBot wires handlers onto the session. Call Start to connect.
func NewBot(opts BotOptions) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		session:  opts.Session,
		router:   opts.Router,
		messages: opts.Messages,
		guildID:  opts.GuildID,
		logger:   logger,
		onReady:  opts.OnReady,
	}
	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleMessage)
	return b
}

// Start opens the gateway connection and syncs slash commands.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	appID := b.session.State.User.ID
	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, Commands(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sync commands: %w", err)
	}
	scope := "global"
	if b.guildID != "" {
		scope = "guild:" + b.guildID
	}
	b.logger.Info("commands synced", zap.Int("count", len(registered)), zap.String("scope", scope))
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("logged in", zap.String("user", r.User.Username), zap.String("user_id", r.User.ID), zap.Int("guilds", len(r.Guilds)))
	if b.onReady != nil {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		b.onReady(ctx)
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	var (
		key     string
		options map[string]string
	)
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		key, options = commandKey(ic.ApplicationCommandData())
	case discordgo.InteractionMessageComponent:
		key = ButtonKey(ic.MessageComponentData().CustomID)
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	trigger := Trigger{Actor: b.actor(ic.Interaction), ChannelID: ic.ChannelID, Options: options}

	route, _ := b.router.Lookup(key)
	if route.Defer {
		ack := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
		if route.Ephemeral {
			ack.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
		}
		if err := s.InteractionRespond(ic.Interaction, ack); err != nil {
			b.logger.Warn("deferred ack failed", zap.String("action", key), zap.Error(err))
			return
		}
		reply := b.router.Resolve(ctx, key, trigger)
		if _, err := s.FollowupMessageCreate(ic.Interaction, true, followupParams(reply.Notice, reply.Ephemeral)); err != nil {
			b.logger.Warn("followup failed", zap.String("action", key), zap.Error(err))
		}
		return
	}

	reply := b.router.Resolve(ctx, key, trigger)
	if err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(reply.Notice, reply.Ephemeral),
	}); err != nil {
		b.logger.Warn("interaction response failed", zap.String("action", key), zap.Error(err))
	}
}

func (b *Bot) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if b.messages == nil || m.Author == nil || m.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("message handler panicked", zap.Any("panic", rec), zap.Stack("stack"))
		}
	}()
	if _, err := b.messages.HandleMessage(ctx, service.IncomingMessage{
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorIsBot: m.Author.Bot,
		Content:     m.Content,
	}); err != nil {
		b.logger.Error("setup message failed", zap.String("user_id", m.Author.ID), zap.Error(err))
	}
}

// actor extracts the caller's identity and privileges from an interaction.
func (b *Bot) actor(i *discordgo.Interaction) domain.Actor {
	a := domain.Actor{GuildID: i.GuildID}
	if i.Member != nil && i.Member.User != nil {
		a.UserID = i.Member.User.ID
		a.Username = i.Member.User.Username
		a.RoleIDs = i.Member.Roles
		a.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
	} else if i.User != nil {
		a.UserID = i.User.ID
		a.Username = i.User.Username
	}
	if i.GuildID != "" && a.UserID != "" {
		a.IsOwner = b.guildOwner(i.GuildID) == a.UserID
	}
	return a
}

func (b *Bot) guildOwner(guildID string) string {
	if g, err := b.session.State.Guild(guildID); err == nil {
		return g.OwnerID
	}
	g, err := b.session.Guild(guildID)
	if err != nil {
		b.logger.Warn("guild lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return ""
	}
	return g.OwnerID
}
