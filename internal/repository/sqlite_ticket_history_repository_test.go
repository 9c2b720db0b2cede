package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestTicketHistoryRecordsInOrder(t *testing.T) {
	db, clock := newTestStore(t)
	repo := NewSQLiteTicketHistoryRepository(db.DB, WithClock(clock.Now))
	ctx := context.Background()

	created := &domain.TicketHistory{TicketID: 1, ChannelID: "c1", ChangeType: domain.ChangeTypeCreated, ChangedByID: "u1"}
	require.NoError(t, repo.Create(ctx, created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, clock.Now(), created.CreatedAt)

	clock.Advance(time.Minute)
	require.NoError(t, repo.Create(ctx, &domain.TicketHistory{
		TicketID:    1,
		ChannelID:   "c1",
		ChangeType:  domain.ChangeTypeClosed,
		ChangedByID: "u1",
		Detail:      map[string]any{"reason": "fixed"},
	}))
	require.NoError(t, repo.Create(ctx, &domain.TicketHistory{TicketID: 2, ChannelID: "c2", ChangeType: domain.ChangeTypeCreated}))

	entries, err := repo.ListByChannel(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ChangeTypeCreated, entries[0].ChangeType)
	assert.Nil(t, entries[0].Detail)
	assert.Equal(t, domain.ChangeTypeClosed, entries[1].ChangeType)
	assert.Equal(t, "fixed", entries[1].Detail["reason"])
	assert.Equal(t, "u1", entries[1].ChangedByID)

	none, err := repo.ListByChannel(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
