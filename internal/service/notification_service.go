package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

var changeTypes = map[events.EventType]domain.TicketChangeType{
	events.EventTicketCreated:   domain.ChangeTypeCreated,
	events.EventTicketClosed:    domain.ChangeTypeClosed,
	events.EventTicketClaimed:   domain.ChangeTypeClaimed,
	events.EventTicketUnclaimed: domain.ChangeTypeUnclaimed,
}

// NotificationService records lifecycle events in the log, the metrics and,
// when a history repository is attached, the ticket audit trail.
type NotificationService struct {
	dispatcher events.Dispatcher
	history    repository.TicketHistoryRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// WithHistory persists ticket events to repo.
func (n *NotificationService) WithHistory(repo repository.TicketHistoryRepository) *NotificationService {
	n.history = repo
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType := range changeTypes {
		n.dispatcher.Subscribe(eventType, n.handleTicketEvent)
	}
	n.dispatcher.Subscribe(events.EventGuildConfigSaved, n.handleConfigEvent)
	n.dispatcher.Subscribe(events.EventGuildConfigReset, n.handleConfigEvent)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	n.metrics.RecordEvent(string(event.Type))
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("guild_id", event.GuildID),
		zap.String("channel_id", event.ChannelID),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))

	if n.history == nil {
		return nil
	}
	detail, err := payloadDetail(event.Payload)
	if err != nil {
		return err
	}
	return n.history.Create(ctx, &domain.TicketHistory{
		TicketID:    event.TicketID,
		ChannelID:   event.ChannelID,
		ChangeType:  changeTypes[event.Type],
		ChangedByID: event.Actor.UserID,
		Detail:      detail,
		CreatedAt:   event.Timestamp,
	})
}

func (n *NotificationService) handleConfigEvent(_ context.Context, event events.Event) error {
	n.metrics.RecordEvent(string(event.Type))
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("guild_id", event.GuildID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

// payloadDetail flattens an event payload into the JSON object stored with history.
func payloadDetail(payload any) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	var detail map[string]any
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	if len(detail) == 0 {
		return nil, nil
	}
	return detail, nil
}
