package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/session"
	"github.com/spec-kit/ticket-bot/internal/worker"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const testGuild = "g1"

type scheduledTask struct {
	delay time.Duration
	name  string
	task  worker.Task
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []scheduledTask
}

func (f *fakeScheduler) After(delay time.Duration, name string, task worker.Task) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, scheduledTask{delay: delay, name: name, task: task})
	return name
}

func (f *fakeScheduler) runAll(t *testing.T) {
	f.mu.Lock()
	tasks := f.tasks
	f.tasks = nil
	f.mu.Unlock()
	for _, st := range tasks {
		require.NoError(t, st.task(context.Background()))
	}
}

type harness struct {
	tickets   repository.TicketRepository
	configs   repository.GuildConfigRepository
	platform  *platformtest.Fake
	scheduler *fakeScheduler
	sessions  *session.MemoryStore
	published []events.Event
	ticketSvc *TicketService
	setupSvc  *SetupService
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.OpenSQLite(ctx, persistence.MemoryDSN, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, persistence.RunMigrations(ctx, db.Migrator(), zap.NewNop()))

	h := &harness{
		platform:  platformtest.New(),
		scheduler: &fakeScheduler{},
		now:       time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return h.now }
	h.tickets = repository.NewSQLiteTicketRepository(db.DB, repository.WithClock(clock))
	h.configs = repository.NewSQLiteGuildConfigRepository(db.DB, repository.WithClock(clock))
	h.sessions = session.NewMemoryStore(10*time.Minute, clock)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	record := func(_ context.Context, e events.Event) error {
		h.published = append(h.published, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketClosed, events.EventTicketClaimed,
		events.EventTicketUnclaimed, events.EventGuildConfigSaved, events.EventGuildConfigReset,
	} {
		dispatcher.Subscribe(et, record)
	}

	h.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo:      h.tickets,
		GuildConfigRepo: h.configs,
		Platform:        h.platform,
		Scheduler:       h.scheduler,
		Dispatcher:      dispatcher,
		Defaults:        config.TicketConfig{SupportRoleID: "support", CloseDelaySeconds: 5},
		Clock:           clock,
	})
	h.setupSvc = NewSetupService(SetupDependencies{
		GuildConfigRepo: h.configs,
		Sessions:        h.sessions,
		Platform:        h.platform,
		Dispatcher:      dispatcher,
		Clock:           clock,
	})
	h.platform.AddRole(testGuild, "support", "Support")
	return h
}

func member(id string, roles ...string) domain.Actor {
	return domain.Actor{UserID: id, Username: "user " + id, GuildID: testGuild, RoleIDs: roles}
}

func admin(id string) domain.Actor {
	a := member(id)
	a.IsAdmin = true
	return a
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, apperrors.ToDomainError(err).Code, err.Error())
}
