package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testAPI struct {
	app     *fiber.App
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	token   string
}

func newTestAPI(t *testing.T, checks ...handlers.Check) *testAPI {
	t.Helper()
	ctx := context.Background()
	store, err := persistence.OpenSQLite(ctx, persistence.MemoryDSN, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, persistence.RunMigrations(ctx, store.Migrator(), zap.NewNop()))

	tickets := repository.NewSQLiteTicketRepository(store.DB)
	history := repository.NewSQLiteTicketHistoryRepository(store.DB)
	tokens := auth.NewTokenManager("test-secret", "ticket-bot", 10)
	token, _, err := tokens.GenerateToken("ops")
	require.NoError(t, err)

	checks = append([]handlers.Check{{Name: "store", Pinger: store}}, checks...)
	app := NewApp(ServerDeps{
		ServiceName: "ticket-bot",
		Version:     "test",
		Tickets:     tickets,
		History:     history,
		Tokens:      tokens,
		Metrics:     observability.NewMetrics(),
		Checks:      checks,
		Timeout:     time.Second,
	})
	return &testAPI{app: app, tickets: tickets, history: history, token: token}
}

func (a *testAPI) get(t *testing.T, path string, authed bool) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.get(t, "/health/live", false)
	assert.Equal(t, 200, status)
	assert.Equal(t, "alive", body["status"])

	status, body = api.get(t, "/health/ready", false)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ready", body["status"])

	degraded := newTestAPI(t, handlers.Check{Name: "redis", Pinger: failingPinger{}})
	status, body = degraded.get(t, "/health/ready", false)
	assert.Equal(t, 503, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.get(t, "/api/stats", false)
	assert.Equal(t, 401, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestWhoamiReportsTokenSubject(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.get(t, "/api/whoami", true)
	require.Equal(t, 200, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ops", data["subject"])
	assert.Equal(t, auth.ScopeOps, data["scope"])

	status, _ = api.get(t, "/api/whoami", false)
	assert.Equal(t, 401, status)
}

func TestStatsAndTicketLookups(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	_, err := api.tickets.Create(ctx, "c1", "u1")
	require.NoError(t, err)
	_, err = api.tickets.Create(ctx, "c2", "u2")
	require.NoError(t, err)
	_, err = api.tickets.Claim(ctx, "c2", "s1")
	require.NoError(t, err)
	_, err = api.tickets.Close(ctx, "c1", nil)
	require.NoError(t, err)

	status, body := api.get(t, "/api/stats", true)
	require.Equal(t, 200, status)
	stats := body["data"].(map[string]any)
	assert.EqualValues(t, 2, stats["total"])
	assert.EqualValues(t, 1, stats["open"])
	assert.EqualValues(t, 1, stats["claimed"])

	status, body = api.get(t, "/api/stats/period", true)
	require.Equal(t, 200, status)
	assert.EqualValues(t, 7, body["data"].(map[string]any)["days"])

	status, body = api.get(t, "/api/stats/period?days=0", true)
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = api.get(t, "/api/tickets/c2", true)
	require.Equal(t, 200, status)
	ticket := body["data"].(map[string]any)
	assert.Equal(t, "s1", ticket["claimed_by"])
	assert.Equal(t, "open", ticket["status"])

	status, body = api.get(t, "/api/tickets/nope", true)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = api.get(t, "/api/users/u1/tickets?status=closed", true)
	require.Equal(t, 200, status)
	assert.Len(t, body["data"], 1)

	status, body = api.get(t, "/api/users/u1/tickets?status=open", true)
	require.Equal(t, 200, status)
	assert.Len(t, body["data"], 0)

	status, _ = api.get(t, "/api/users/u1/tickets?status=weird", true)
	assert.Equal(t, 400, status)

	status, body = api.get(t, "/api/staff/s1/tickets", true)
	require.Equal(t, 200, status)
	assert.Len(t, body["data"], 1)

	status, body = api.get(t, "/metrics", true)
	require.Equal(t, 200, status)
	assert.Contains(t, body, "triggers")
}

func TestTicketHistoryEndpoint(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	id, err := api.tickets.Create(ctx, "c1", "u1")
	require.NoError(t, err)
	require.NoError(t, api.history.Create(ctx, &domain.TicketHistory{
		TicketID: id, ChannelID: "c1", ChangeType: domain.ChangeTypeCreated, ChangedByID: "u1",
	}))
	require.NoError(t, api.history.Create(ctx, &domain.TicketHistory{
		TicketID: id, ChannelID: "c1", ChangeType: domain.ChangeTypeClaimed, ChangedByID: "s1",
		Detail: map[string]any{"staff_id": "s1"},
	}))

	status, body := api.get(t, "/api/tickets/c1/history", true)
	require.Equal(t, 200, status)
	entries := body["data"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "created", entries[0].(map[string]any)["change_type"])
	assert.Equal(t, "claimed", entries[1].(map[string]any)["change_type"])

	status, body = api.get(t, "/api/tickets/none/history", true)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.get(t, "/nowhere", false)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}
