package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

func TestNotificationServiceRecordsHistory(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.OpenSQLite(ctx, persistence.MemoryDSN, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, persistence.RunMigrations(ctx, db.Migrator(), zap.NewNop()))

	history := repository.NewSQLiteTicketHistoryRepository(db.DB)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewNotificationService(dispatcher, zap.NewNop(), metrics).WithHistory(history).RegisterHandlers()

	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	reason := "resolved"
	publish := func(e events.Event) {
		require.NoError(t, dispatcher.Publish(ctx, e))
	}
	publish(events.Event{ID: "e1", Type: events.EventTicketCreated, GuildID: "g1", ChannelID: "c1", TicketID: 1,
		Actor: events.Actor{UserID: "u1"}, Timestamp: at,
		Payload: events.TicketCreatedPayload{ChannelName: "ticket-u1"}})
	publish(events.Event{ID: "e2", Type: events.EventTicketClaimed, GuildID: "g1", ChannelID: "c1", TicketID: 1,
		Actor: events.Actor{UserID: "s1"}, Timestamp: at.Add(time.Minute),
		Payload: events.TicketClaimPayload{StaffID: "s1"}})
	publish(events.Event{ID: "e3", Type: events.EventTicketClosed, GuildID: "g1", ChannelID: "c1", TicketID: 1,
		Actor: events.Actor{UserID: "u1"}, Timestamp: at.Add(2 * time.Minute),
		Payload: events.TicketClosedPayload{OwnerID: "u1", Reason: &reason}})
	publish(events.Event{ID: "e4", Type: events.EventGuildConfigSaved, GuildID: "g1",
		Actor: events.Actor{UserID: "a1", Admin: true}, Timestamp: at})

	entries, err := history.ListByChannel(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ChangeTypeCreated, entries[0].ChangeType)
	assert.Equal(t, "ticket-u1", entries[0].Detail["channel_name"])
	assert.Equal(t, domain.ChangeTypeClaimed, entries[1].ChangeType)
	assert.Equal(t, "s1", entries[1].ChangedByID)
	assert.Equal(t, domain.ChangeTypeClosed, entries[2].ChangeType)
	assert.Equal(t, "resolved", entries[2].Detail["reason"])
	assert.Equal(t, at.Add(2*time.Minute), entries[2].CreatedAt)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Events[string(events.EventTicketCreated)])
	assert.Equal(t, int64(1), snap.Events[string(events.EventGuildConfigSaved)])
}

func TestNotificationServiceWithoutHistory(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	metrics := observability.NewMetrics()
	NewNotificationService(dispatcher, nil, metrics).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketUnclaimed, ChannelID: "c9"}))
	assert.Equal(t, int64(1), metrics.Snapshot().Events[string(events.EventTicketUnclaimed)])
}
