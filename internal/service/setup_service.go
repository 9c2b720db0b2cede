package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/session"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	panelScanDepth      = 10
	maxPanelTitle       = 256
	maxPanelDescription = 2000

	msgNoConfig = "No configuration found. Use `/setup start` to configure the ticket system."
)

var (
	channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)
	roleMentionPattern    = regexp.MustCompile(`<@&(\d+)>`)
	snowflakePattern      = regexp.MustCompile(`(\d+)`)
)

// IncomingMessage is a plain chat message that may answer a wizard step.
type IncomingMessage struct {
	GuildID     string
	ChannelID   string
	AuthorID    string
	AuthorIsBot bool
	Content     string
}

// SetupService runs the per-guild configuration wizard and manages the ticket panel.
type SetupService struct {
	guildConfigs repository.GuildConfigRepository
	sessions     session.Store
	platform     platform.Client
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
}

// SetupDependencies bundles collaborators for the setup service.
type SetupDependencies struct {
	GuildConfigRepo repository.GuildConfigRepository
	Sessions        session.Store
	Platform        platform.Client
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Clock           func() time.Time
}

// NewSetupService constructs the service.
func NewSetupService(deps SetupDependencies) *SetupService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &SetupService{
		guildConfigs: deps.GuildConfigRepo,
		sessions:     deps.Sessions,
		platform:     deps.Platform,
		dispatcher:   deps.Dispatcher,
		logger:       logger,
		now:          now,
	}
}

func requireSetupAdmin(actor domain.Actor) error {
	if !actor.InGuild() {
		return apperrors.NewValidationError(msgGuildOnly, nil)
	}
	if !actor.IsAdmin && !actor.IsOwner {
		return apperrors.NewForbidden(msgNoPermission)
	}
	return nil
}

func (s *SetupService) loadConfig(ctx context.Context, guildID, missing string) (*domain.GuildConfig, error) {
	cfg, err := s.guildConfigs.Get(ctx, guildID)
	if err != nil {
		if errors.Is(err, domain.ErrGuildConfigNotFound) {
			return nil, apperrors.NewNotFound(missing, map[string]any{"guild_id": guildID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return cfg, nil
}

// Start opens a wizard session for the actor, replacing any earlier one.
func (s *SetupService) Start(ctx context.Context, actor domain.Actor) (*Result, error) {
	if err := requireSetupAdmin(actor); err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.sessions.Put(ctx, &session.Session{
		GuildID:   actor.GuildID,
		UserID:    actor.UserID,
		Step:      session.StepPanelChannel,
		StartedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Result{Reply: setupStepNotice(now, session.StepPanelChannel,
		"Which channel should the ticket panel appear in?\n\n"+
			"**How to provide:**\n"+
			"• Mention the channel: `#support-tickets`\n"+
			"• Or provide the channel ID (a long number)\n\n"+
			"**Note:** Make sure the bot has permission to send messages in that channel.\n"+
			"Type `cancel` at any time to stop.")}, nil
}

// View shows the stored configuration.
func (s *SetupService) View(ctx context.Context, actor domain.Actor) (*Result, error) {
	if err := requireSetupAdmin(actor); err != nil {
		return nil, err
	}
	cfg, err := s.loadConfig(ctx, actor.GuildID, msgNoConfig)
	if err != nil {
		return nil, err
	}
	return &Result{Reply: configViewNotice(s.now(), cfg), Ephemeral: true}, nil
}

// Reset deletes the configuration and removes the posted panel.
func (s *SetupService) Reset(ctx context.Context, actor domain.Actor) (*Result, error) {
	if err := requireSetupAdmin(actor); err != nil {
		return nil, err
	}
	cfg, err := s.loadConfig(ctx, actor.GuildID, "No configuration found to reset.")
	if err != nil {
		return nil, err
	}
	if _, err := s.guildConfigs.Delete(ctx, actor.GuildID); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	panel, err := s.findPanel(ctx, cfg.PanelChannelID)
	if err != nil {
		s.logger.Warn("panel lookup failed", zap.String("channel_id", cfg.PanelChannelID), zap.Error(err))
	} else if panel != nil {
		if err := s.platform.DeleteMessage(ctx, panel.ChannelID, panel.ID); err != nil {
			s.logger.Warn("panel not removed", zap.String("message_id", panel.ID), zap.Error(err))
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventGuildConfigReset,
		GuildID: actor.GuildID,
		Actor:   eventActor(actor),
		Payload: events.GuildConfigPayload{PanelChannelID: cfg.PanelChannelID},
	})
	return &Result{
		Reply:     textNotice("✅ Configuration reset! Use `/setup start` to configure again."),
		Ephemeral: true,
	}, nil
}

// Refresh re-renders the panel from the stored configuration, editing the
// existing panel message when there is one.
func (s *SetupService) Refresh(ctx context.Context, actor domain.Actor) (*Result, error) {
	if err := requireSetupAdmin(actor); err != nil {
		return nil, err
	}
	cfg, err := s.loadConfig(ctx, actor.GuildID, msgNoConfig)
	if err != nil {
		return nil, err
	}
	if _, err := s.platform.Channel(ctx, cfg.PanelChannelID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil, apperrors.NewNotFound("Panel channel not found.", map[string]any{"channel_id": cfg.PanelChannelID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if _, _, err := s.publishPanel(ctx, cfg); err != nil {
		return nil, err
	}
	return &Result{Reply: textNotice("✅ Panel refreshed!"), Ephemeral: true}, nil
}

// EnsureDefaultPanel posts the default panel in channelID unless a panel is
// already there.
func (s *SetupService) EnsureDefaultPanel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return nil
	}
	existing, err := s.findPanel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("look up panel in %s: %w", channelID, err)
	}
	if existing != nil {
		s.logger.Debug("default panel already posted", zap.String("channel_id", channelID))
		return nil
	}
	if _, err := s.platform.SendNotice(ctx, channelID, PanelNotice(s.now(), nil, nil, nil)); err != nil {
		return fmt.Errorf("post default panel in %s: %w", channelID, err)
	}
	s.logger.Info("default panel posted", zap.String("channel_id", channelID))
	return nil
}

// findPanel returns the most recent bot message with an embed among the last
// few messages of the channel.
func (s *SetupService) findPanel(ctx context.Context, channelID string) (*platform.Message, error) {
	if channelID == "" {
		return nil, nil
	}
	messages, err := s.platform.RecentMessages(ctx, channelID, panelScanDepth)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	self := s.platform.SelfID()
	for i := range messages {
		if messages[i].AuthorID == self && messages[i].HasEmbeds {
			return &messages[i], nil
		}
	}
	return nil, nil
}

// publishPanel edits the existing panel or posts a new one. It reports the
// panel message id and whether an existing message was edited.
func (s *SetupService) publishPanel(ctx context.Context, cfg *domain.GuildConfig) (string, bool, error) {
	notice := PanelNotice(s.now(), cfg.PanelTitle, cfg.PanelDescription, cfg.PingRoleID)
	existing, err := s.findPanel(ctx, cfg.PanelChannelID)
	if err != nil {
		return "", false, s.platformError(err, "I can't read the panel channel.")
	}
	if existing != nil {
		if err := s.platform.EditNotice(ctx, cfg.PanelChannelID, existing.ID, notice); err != nil {
			return "", false, s.platformError(err, "I can't edit the ticket panel.")
		}
		return existing.ID, true, nil
	}
	msg, err := s.platform.SendNotice(ctx, cfg.PanelChannelID, notice)
	if err != nil {
		return "", false, s.platformError(err, "I don't have permission to send messages in the panel channel.")
	}
	return msg.ID, false, nil
}

func (s *SetupService) platformError(err error, message string) error {
	if errors.Is(err, platform.ErrForbidden) {
		return apperrors.NewPlatformPermission(message, err)
	}
	return apperrors.NewInternalError(err)
}

// HandleMessage advances the author's wizard session, if any. It reports
// whether the message belonged to a session.
func (s *SetupService) HandleMessage(ctx context.Context, msg IncomingMessage) (bool, error) {
	if msg.AuthorIsBot || msg.GuildID == "" {
		return false, nil
	}
	sess, err := s.sessions.Get(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	content := strings.TrimSpace(msg.Content)
	if strings.EqualFold(content, "cancel") {
		if err := s.sessions.Delete(ctx, msg.GuildID, msg.AuthorID); err != nil {
			return true, err
		}
		s.safeSend(ctx, msg, textNotice("Setup cancelled."))
		return true, nil
	}

	reply, err := s.advance(ctx, sess, content)
	if err != nil {
		s.safeSend(ctx, msg, ErrorNotice(s.now(), "An error occurred while saving the setup. Please try again."))
		return true, err
	}
	s.safeSend(ctx, msg, reply)
	return true, nil
}

// advance applies one answer to the session. Invalid answers leave the
// session untouched and return guidance for the same step.
func (s *SetupService) advance(ctx context.Context, sess *session.Session, content string) (platform.Notice, error) {
	now := s.now()
	invalid := func(message string) (platform.Notice, error) {
		return ErrorNotice(now, message), nil
	}

	switch sess.Step {
	case session.StepPanelChannel:
		channelID := extractID(content, channelMentionPattern)
		if channelID == "" {
			return invalid("Invalid channel. Please mention a channel (e.g., #support-tickets) or provide the channel ID.")
		}
		ch, err := s.platform.Channel(ctx, channelID)
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			return platform.Notice{}, err
		}
		if err != nil || ch.Kind != platform.ChannelText || ch.GuildID != sess.GuildID {
			return invalid("Channel not found. Please make sure it's a valid text channel.")
		}
		canSend, err := s.platform.CanSend(ctx, channelID)
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			return platform.Notice{}, err
		}
		if !canSend {
			return invalid("I don't have permission to send messages in that channel.")
		}
		sess.PanelChannelID = channelID
		sess.Step = session.StepPingRole
		if err := s.saveSession(ctx, sess, now); err != nil {
			return platform.Notice{}, err
		}
		return setupStepNotice(now, session.StepPingRole, fmt.Sprintf("Great! Panel channel set to %s.\n\n", channelMention(channelID))+
			"Which role should be pinged when tickets are created?\n\n"+
			"**How to provide:**\n"+
			"• Mention the role: `@Support Team`\n"+
			"• Or provide the role ID (a long number)\n"+
			"• Or type `none` to skip (no role will be pinged)"), nil

	case session.StepPingRole:
		sess.PingRoleID = nil
		if !isSkip(content) {
			roleID := extractID(content, roleMentionPattern)
			if roleID == "" {
				return invalid("Invalid role. Please mention a role (e.g., @Support Team) or type 'none' to skip.")
			}
			if _, err := s.platform.Role(ctx, sess.GuildID, roleID); err != nil {
				if errors.Is(err, platform.ErrNotFound) {
					return invalid("Role not found. Please try again or type 'none' to skip.")
				}
				return platform.Notice{}, err
			}
			sess.PingRoleID = domain.OptionalString(roleID)
		}
		sess.Step = session.StepCategory
		if err := s.saveSession(ctx, sess, now); err != nil {
			return platform.Notice{}, err
		}
		return setupStepNotice(now, session.StepCategory, "Perfect! Ping role set.\n\n"+
			"Which category should tickets be created in?\n\n"+
			"**Important:** The category must already exist in your server.\n"+
			"• Type the **category name** (e.g., `Tickets` or `Support`)\n"+
			"• Or type the **category ID** (if you know it)\n"+
			"• Or type `none` to skip (tickets will be created at root level)"), nil

	case session.StepCategory:
		sess.CategoryID = nil
		if !isSkip(content) {
			categoryID, err := s.resolveCategory(ctx, sess.GuildID, content)
			if err != nil {
				return platform.Notice{}, err
			}
			if categoryID == "" {
				return invalid("Category not found!\n\n" +
					"**Make sure:**\n" +
					"• The category already exists in your server\n" +
					"• You typed the exact category name (case-sensitive)\n" +
					"• Or provide the category ID\n\n" +
					"Type `none` to skip this step.")
			}
			sess.CategoryID = domain.OptionalString(categoryID)
		}
		sess.Step = session.StepTitle
		if err := s.saveSession(ctx, sess, now); err != nil {
			return platform.Notice{}, err
		}
		return setupStepNotice(now, session.StepTitle, "Category set!\n\n"+
			"Would you like to customize the panel title?\n"+
			"Type a custom title or `none` to use the default."), nil

	case session.StepTitle:
		sess.PanelTitle = nil
		if !isSkip(content) {
			if utf8.RuneCountInString(content) > maxPanelTitle {
				return invalid(fmt.Sprintf("Title is too long (max %d characters). Please try again.", maxPanelTitle))
			}
			sess.PanelTitle = domain.OptionalString(content)
		}
		sess.Step = session.StepDescription
		if err := s.saveSession(ctx, sess, now); err != nil {
			return platform.Notice{}, err
		}
		return setupStepNotice(now, session.StepDescription, "Title set!\n\n"+
			"Would you like to customize the panel description?\n"+
			"Type a custom description or `none` to use the default."), nil

	case session.StepDescription:
		sess.PanelDescription = nil
		if !isSkip(content) {
			if utf8.RuneCountInString(content) > maxPanelDescription {
				return invalid(fmt.Sprintf("Description is too long (max %d characters). Please try again.", maxPanelDescription))
			}
			sess.PanelDescription = domain.OptionalString(content)
		}
		return s.finish(ctx, sess)

	default:
		if err := s.sessions.Delete(ctx, sess.GuildID, sess.UserID); err != nil {
			return platform.Notice{}, err
		}
		return invalid("Your setup session was invalid and has been reset. Use `/setup start` to begin again.")
	}
}

func (s *SetupService) saveSession(ctx context.Context, sess *session.Session, now time.Time) error {
	sess.UpdatedAt = now
	return s.sessions.Put(ctx, sess)
}

// finish persists the collected configuration and publishes the panel.
func (s *SetupService) finish(ctx context.Context, sess *session.Session) (platform.Notice, error) {
	cfg := &domain.GuildConfig{
		GuildID:          sess.GuildID,
		PanelChannelID:   sess.PanelChannelID,
		TicketCategoryID: sess.CategoryID,
		PingRoleID:       sess.PingRoleID,
		PanelTitle:       sess.PanelTitle,
		PanelDescription: sess.PanelDescription,
	}
	if err := s.guildConfigs.Save(ctx, cfg); err != nil {
		return platform.Notice{}, err
	}
	if err := s.sessions.Delete(ctx, sess.GuildID, sess.UserID); err != nil {
		s.logger.Warn("setup session not removed", zap.String("guild_id", sess.GuildID), zap.Error(err))
	}

	messageID, edited, err := s.publishPanel(ctx, cfg)
	if err != nil {
		if domainErr := apperrors.ToDomainError(err); domainErr.Code == apperrors.CodePlatformPermission {
			return ErrorNotice(s.now(), "Configuration saved, but the panel could not be published: "+domainErr.Message), nil
		}
		return platform.Notice{}, err
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventGuildConfigSaved,
		GuildID: sess.GuildID,
		Actor:   events.Actor{UserID: sess.UserID, Admin: true},
		Payload: events.GuildConfigPayload{PanelChannelID: cfg.PanelChannelID, PanelMessageID: messageID},
	})
	if edited {
		return textNotice("✅ Configuration saved! Ticket panel updated."), nil
	}
	return textNotice("✅ Setup complete! Ticket panel created."), nil
}

func (s *SetupService) resolveCategory(ctx context.Context, guildID, content string) (string, error) {
	categories, err := s.platform.Categories(ctx, guildID)
	if err != nil {
		return "", err
	}
	if id := extractID(content, nil); id != "" {
		for _, c := range categories {
			if c.ID == id {
				return id, nil
			}
		}
	}
	for _, c := range categories {
		if c.Name == content {
			return c.ID, nil
		}
	}
	return "", nil
}

// safeSend replies in the message's channel when the bot may post there and
// falls back to a direct message otherwise.
func (s *SetupService) safeSend(ctx context.Context, msg IncomingMessage, notice platform.Notice) {
	if ok, err := s.platform.CanSend(ctx, msg.ChannelID); err == nil && ok {
		if _, err := s.platform.SendNotice(ctx, msg.ChannelID, notice); err == nil {
			return
		}
	}
	if err := s.platform.SendDirect(ctx, msg.AuthorID, notice); err != nil {
		s.logger.Warn("setup reply undeliverable",
			zap.String("user_id", msg.AuthorID),
			zap.String("channel_id", msg.ChannelID),
			zap.Error(err))
	}
}

func (s *SetupService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// extractID pulls an id out of a mention matching pattern, or the first run
// of digits.
func extractID(text string, mention *regexp.Regexp) string {
	if mention != nil {
		if m := mention.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	if m := snowflakePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func isSkip(content string) bool {
	switch strings.ToLower(strings.TrimSpace(content)) {
	case "", "none", "skip":
		return true
	}
	return false
}
