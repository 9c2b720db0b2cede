package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "ticketbot:", ttl), mr
}

func TestRedisKeyLayout(t *testing.T) {
	store := NewRedisStore(nil, "ticketbot:", time.Minute)
	assert.Equal(t, "ticketbot:setup:123:456", store.redisKey("123", "456"))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 10*time.Minute)

	title := "Help desk"
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &Session{
		GuildID:        "g1",
		UserID:         "u1",
		Step:           StepTitle,
		PanelChannelID: "c1",
		PanelTitle:     &title,
		StartedAt:      started,
		UpdatedAt:      started,
	}))
	assert.True(t, mr.Exists("ticketbot:setup:g1:u1"))
	assert.Equal(t, 10*time.Minute, mr.TTL("ticketbot:setup:g1:u1"))

	got, err := store.Get(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, StepTitle, got.Step)
	assert.Equal(t, "c1", got.PanelChannelID)
	require.NotNil(t, got.PanelTitle)
	assert.Equal(t, title, *got.PanelTitle)
	assert.Nil(t, got.PingRoleID)
	assert.True(t, started.Equal(got.StartedAt))

	_, err = store.Get(ctx, "g1", "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "g1", "u1"))
	_, err = store.Get(ctx, "g1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, "g1", "u1"))
}

func TestRedisStorePutRefreshesIdleExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, 10*time.Minute)

	s := &Session{GuildID: "g1", UserID: "u1", Step: StepPanelChannel}
	require.NoError(t, store.Put(ctx, s))

	mr.FastForward(6 * time.Minute)
	s.Step = StepPingRole
	require.NoError(t, store.Put(ctx, s))
	assert.Equal(t, 10*time.Minute, mr.TTL("ticketbot:setup:g1:u1"))

	mr.FastForward(6 * time.Minute)
	got, err := store.Get(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, StepPingRole, got.Step)

	mr.FastForward(5 * time.Minute)
	_, err = store.Get(ctx, "g1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreReportsBackendErrors(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Minute)
	mr.Close()

	_, err := store.Get(ctx, "g1", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
