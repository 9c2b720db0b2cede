package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/worker"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	msgGuildOnly        = "This command can only be used in a server."
	msgNotTicketChannel = "This command can only be used in ticket channels."
	msgNoPermission     = "You don't have permission to perform this action."
	msgAlreadyClosed    = "This ticket is already closed."
)

// MaxCloseReasonLength keeps the reason within one embed field of the closing notice.
const MaxCloseReasonLength = 1000

// statsPeriods are the windows reported by Stats, in days.
var statsPeriods = []int{1, 7, 30}

// Result is what a handled trigger replies with.
type Result struct {
	Ticket    *domain.Ticket
	Reply     platform.Notice
	Ephemeral bool
}

// TicketService drives the ticket lifecycle: create, close, claim and unclaim.
type TicketService struct {
	tickets      repository.TicketRepository
	guildConfigs repository.GuildConfigRepository
	platform     platform.Client
	scheduler    worker.Scheduler
	dispatcher   events.Dispatcher
	defaults     config.TicketConfig
	logger       *zap.Logger
	now          func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	GuildConfigRepo repository.GuildConfigRepository
	Platform        platform.Client
	Scheduler       worker.Scheduler
	Dispatcher      events.Dispatcher
	Defaults        config.TicketConfig
	Logger          *zap.Logger
	Clock           func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:      deps.TicketRepo,
		guildConfigs: deps.GuildConfigRepo,
		platform:     deps.Platform,
		scheduler:    deps.Scheduler,
		dispatcher:   deps.Dispatcher,
		defaults:     deps.Defaults,
		logger:       logger,
		now:          now,
	}
}

// ticketSettings is the effective per-guild configuration for provisioning.
type ticketSettings struct {
	supportRoleID string
	categoryID    string
	pingRoleID    string
}

func (s *TicketService) settings(ctx context.Context, guildID string) (ticketSettings, error) {
	out := ticketSettings{
		supportRoleID: s.defaults.SupportRoleID,
		categoryID:    s.defaults.CategoryID,
	}
	if s.guildConfigs == nil || guildID == "" {
		return out, nil
	}
	cfg, err := s.guildConfigs.Get(ctx, guildID)
	if err != nil {
		if errors.Is(err, domain.ErrGuildConfigNotFound) {
			return out, nil
		}
		return out, err
	}
	if v := domain.StringOrEmpty(cfg.SupportRoleID); v != "" {
		out.supportRoleID = v
	}
	if v := domain.StringOrEmpty(cfg.TicketCategoryID); v != "" {
		out.categoryID = v
	}
	out.pingRoleID = domain.StringOrEmpty(cfg.PingRoleID)
	return out, nil
}

func (s *TicketService) isStaff(actor domain.Actor, set ticketSettings) bool {
	return actor.IsAdmin || actor.HasRole(set.supportRoleID)
}

// Create provisions a private channel for the actor and records a ticket for it.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor) (*Result, error) {
	if !actor.InGuild() {
		return nil, apperrors.NewValidationError(msgGuildOnly, nil)
	}

	open := domain.TicketStatusOpen
	existing, err := s.tickets.ListByUser(ctx, actor.UserID, &open)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if len(existing) > 0 {
		return nil, apperrors.NewConflict("You already have an open ticket. Please close it before creating a new one.",
			map[string]any{"channel_id": existing[0].ChannelID})
	}

	set, err := s.settings(ctx, actor.GuildID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	spec := platform.ChannelSpec{
		GuildID: actor.GuildID,
		Name:    ticketChannelName(actor.Username),
		Reason:  fmt.Sprintf("Ticket created by %s", actor.Username),
		Overwrites: []platform.Overwrite{
			{Kind: platform.TargetEveryone, ID: actor.GuildID, Deny: platform.PermView},
			{Kind: platform.TargetMember, ID: actor.UserID, Allow: platform.PermView | platform.PermSend | platform.PermReadHistory},
			{Kind: platform.TargetMember, ID: s.platform.SelfID(), Allow: platform.PermView | platform.PermSend | platform.PermReadHistory | platform.PermManage},
		},
	}
	if set.categoryID != "" && s.categoryExists(ctx, actor.GuildID, set.categoryID) {
		spec.ParentID = set.categoryID
	}
	for _, roleID := range uniqueNonEmpty(set.supportRoleID, set.pingRoleID) {
		if !s.roleExists(ctx, actor.GuildID, roleID) {
			continue
		}
		spec.Overwrites = append(spec.Overwrites, platform.Overwrite{
			Kind:  platform.TargetRole,
			ID:    roleID,
			Allow: platform.PermView | platform.PermSend | platform.PermReadHistory,
		})
	}

	channel, err := s.platform.CreateChannel(ctx, spec)
	if err != nil {
		if errors.Is(err, platform.ErrForbidden) {
			return nil, apperrors.NewPlatformPermission("I don't have permission to create channels. Please check my permissions.", err)
		}
		return nil, apperrors.NewInternalError(err)
	}

	ticketID, err := s.tickets.Create(ctx, channel.ID, actor.UserID)
	if err != nil {
		s.discardChannel(ctx, channel.ID)
		if errors.Is(err, domain.ErrOpenTicketExists) {
			return nil, apperrors.NewConflict("You already have an open ticket. Please close it before creating a new one.", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	if _, err := s.platform.SendNotice(ctx, channel.ID, ticketCreatedNotice(now, actor.UserID, ticketID, set.pingRoleID)); err != nil {
		s.logger.Warn("welcome notice not sent", zap.String("channel_id", channel.ID), zap.Error(err))
	}

	ticket := &domain.Ticket{
		ID:        ticketID,
		ChannelID: channel.ID,
		UserID:    actor.UserID,
		Status:    domain.TicketStatusOpen,
		CreatedAt: now,
	}
	payload := events.TicketCreatedPayload{ChannelName: spec.Name}
	if spec.ParentID != "" {
		payload.CategoryID = domain.OptionalString(spec.ParentID)
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketCreated,
		GuildID:   actor.GuildID,
		ChannelID: channel.ID,
		TicketID:  ticketID,
		Actor:     eventActor(actor),
		Payload:   payload,
	})

	return &Result{
		Ticket:    ticket,
		Reply:     textNotice(fmt.Sprintf("Ticket created! %s", channelMention(channel.ID))),
		Ephemeral: true,
	}, nil
}

// discardChannel removes a channel provisioned for a ticket that could not be recorded.
func (s *TicketService) discardChannel(ctx context.Context, channelID string) {
	if err := s.platform.DeleteChannel(ctx, channelID, "Ticket could not be recorded"); err != nil {
		s.logger.Error("orphan ticket channel left behind", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *TicketService) categoryExists(ctx context.Context, guildID, categoryID string) bool {
	ch, err := s.platform.Channel(ctx, categoryID)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("category lookup failed", zap.String("category_id", categoryID), zap.Error(err))
		}
		return false
	}
	return ch.Kind == platform.ChannelCategory && ch.GuildID == guildID
}

func (s *TicketService) roleExists(ctx context.Context, guildID, roleID string) bool {
	if _, err := s.platform.Role(ctx, guildID, roleID); err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			s.logger.Warn("role lookup failed", zap.String("role_id", roleID), zap.Error(err))
		}
		return false
	}
	return true
}

func (s *TicketService) requireTicket(ctx context.Context, channelID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return nil, apperrors.NewNotFound(msgNotTicketChannel, map[string]any{"channel_id": channelID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

// Close closes the ticket behind channelID and schedules the channel's removal.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, channelID string, reason *string) (*Result, error) {
	ticket, err := s.requireTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actor.UserID && !actor.IsAdmin {
		return nil, apperrors.NewForbidden(msgNoPermission)
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewConflict(msgAlreadyClosed, nil)
	}
	if reason != nil {
		if n := utf8.RuneCountInString(*reason); n > MaxCloseReasonLength {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("The close reason must be at most %d characters.", MaxCloseReasonLength),
				map[string]any{"length": n})
		}
	}

	closed, err := s.tickets.Close(ctx, channelID, reason)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !closed {
		return nil, apperrors.NewConflict(msgAlreadyClosed, nil)
	}

	now := s.now()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	ticket.CloseReason = reason

	delay := s.defaults.CloseDelay()
	if s.scheduler != nil {
		reasonText := fmt.Sprintf("Ticket closed by %s", actor.Username)
		s.scheduler.After(delay, "delete-ticket-channel", func(ctx context.Context) error {
			if err := s.platform.DeleteChannel(ctx, channelID, reasonText); err != nil && !errors.Is(err, platform.ErrNotFound) {
				return fmt.Errorf("delete ticket channel %s: %w", channelID, err)
			}
			return nil
		})
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketClosed,
		GuildID:   actor.GuildID,
		ChannelID: channelID,
		TicketID:  ticket.ID,
		Actor:     eventActor(actor),
		Payload:   events.TicketClosedPayload{OwnerID: ticket.UserID, Reason: reason},
	})

	return &Result{Ticket: ticket, Reply: ticketClosingNotice(now, actor.UserID, reason, delay)}, nil
}

// Claim assigns the ticket behind channelID to the calling staff member.
func (s *TicketService) Claim(ctx context.Context, actor domain.Actor, channelID string) (*Result, error) {
	ticket, err := s.requireTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	set, err := s.settings(ctx, actor.GuildID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !s.isStaff(actor, set) {
		return nil, apperrors.NewForbidden("Only staff members can claim tickets.")
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewConflict(msgAlreadyClosed, nil)
	}
	if ticket.IsClaimed() {
		return nil, apperrors.NewConflict(
			fmt.Sprintf("This ticket is already claimed by %s.", userMention(*ticket.ClaimedBy)), nil)
	}

	claimed, err := s.tickets.Claim(ctx, channelID, actor.UserID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !claimed {
		return nil, apperrors.NewConflict("This ticket was claimed by someone else just now.", nil)
	}

	now := s.now()
	ticket.ClaimedBy = domain.OptionalString(actor.UserID)
	ticket.ClaimedAt = &now
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketClaimed,
		GuildID:   actor.GuildID,
		ChannelID: channelID,
		TicketID:  ticket.ID,
		Actor:     eventActor(actor),
		Payload:   events.TicketClaimPayload{StaffID: actor.UserID},
	})
	return &Result{Ticket: ticket, Reply: ticketClaimedNotice(now, actor.UserID)}, nil
}

// Unclaim releases the ticket behind channelID. Only the claimer or an
// administrator may release it.
func (s *TicketService) Unclaim(ctx context.Context, actor domain.Actor, channelID string) (*Result, error) {
	ticket, err := s.requireTicket(ctx, channelID)
	if err != nil {
		return nil, err
	}
	set, err := s.settings(ctx, actor.GuildID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !s.isStaff(actor, set) {
		return nil, apperrors.NewForbidden("Only staff members can unclaim tickets.")
	}
	if !ticket.IsOpen() {
		return nil, apperrors.NewConflict(msgAlreadyClosed, nil)
	}
	if !ticket.IsClaimed() {
		return nil, apperrors.NewConflict("This ticket is not claimed.", nil)
	}
	previous := *ticket.ClaimedBy
	if previous != actor.UserID && !actor.IsAdmin {
		return nil, apperrors.NewForbidden("Only the staff member who claimed this ticket or an administrator can unclaim it.")
	}

	released, err := s.tickets.Unclaim(ctx, channelID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !released {
		return nil, apperrors.NewConflict("This ticket is not claimed.", nil)
	}

	ticket.ClaimedBy = nil
	ticket.ClaimedAt = nil
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketUnclaimed,
		GuildID:   actor.GuildID,
		ChannelID: channelID,
		TicketID:  ticket.ID,
		Actor:     eventActor(actor),
		Payload:   events.TicketClaimPayload{StaffID: previous},
	})
	return &Result{Ticket: ticket, Reply: ticketUnclaimedNotice(s.now(), actor.UserID)}, nil
}

// Stats reports overall and recent ticket counts plus the caller's claimed tickets.
func (s *TicketService) Stats(ctx context.Context, actor domain.Actor) (*Result, error) {
	set, err := s.settings(ctx, actor.GuildID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !s.isStaff(actor, set) {
		return nil, apperrors.NewForbidden(msgNoPermission)
	}

	overall, err := s.tickets.Statistics(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	periods := make([]domain.PeriodStatistics, 0, len(statsPeriods))
	for _, days := range statsPeriods {
		p, err := s.tickets.PeriodStatistics(ctx, days)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		periods = append(periods, p)
	}
	claimed, err := s.tickets.ListClaimedBy(ctx, actor.UserID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Result{Reply: statsNotice(s.now(), overall, periods, claimed), Ephemeral: true}, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{UserID: actor.UserID, Admin: actor.IsAdmin}
}

func uniqueNonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
