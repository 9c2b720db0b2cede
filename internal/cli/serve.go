package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/discord"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/session"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

const (
	taskTimeout     = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and serve ticket commands",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openMigratedStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		sessions session.Store
		sweeper  worker.Sweeper
	)
	if redis != nil {
		sessions = session.NewRedisStore(redis.Client, redis.Key(), cfg.Setup.SessionTTL())
	} else {
		memory := session.NewMemoryStore(cfg.Setup.SessionTTL(), time.Now)
		sessions = memory
		sweeper = memory
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, logger.Named("events"), metrics).WithHistory(st.history).RegisterHandlers()
	scheduler := worker.NewTimerScheduler(logger, taskTimeout)

	dg, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	client := discord.NewClient(dg)

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:      st.tickets,
		GuildConfigRepo: st.guildConfigs,
		Platform:        client,
		Scheduler:       scheduler,
		Dispatcher:      dispatcher,
		Defaults:        cfg.Tickets,
		Logger:          logger.Named("tickets"),
	})
	setup := service.NewSetupService(service.SetupDependencies{
		GuildConfigRepo: st.guildConfigs,
		Sessions:        sessions,
		Platform:        client,
		Dispatcher:      dispatcher,
		Logger:          logger.Named("setup"),
	})

	router := discord.NewRouter(logger.Named("router"), metrics)
	discord.RegisterRoutes(router, tickets, setup)
	bot := discord.NewBot(discord.BotOptions{
		Session:  dg,
		Router:   router,
		Messages: setup,
		GuildID:  cfg.Discord.GuildID,
		Logger:   logger.Named("gateway"),
		OnReady: func(ctx context.Context) {
			if err := setup.EnsureDefaultPanel(ctx, cfg.Tickets.PanelChannelID); err != nil {
				logger.Warn("default panel not posted", zap.String("channel_id", cfg.Tickets.PanelChannelID), zap.Error(err))
			}
		},
	})

	jobs := worker.NewJobs(logger.Named("jobs"), taskTimeout)
	if err := worker.RegisterHousekeeping(jobs, worker.HousekeepingDeps{
		Sessions: sweeper,
		Stats:    st.tickets,
		Logger:   logger,
	}); err != nil {
		return err
	}
	jobs.Start()

	if err := bot.Start(ctx); err != nil {
		return err
	}
	logger.Info("bot running", zap.String("store", cfg.Store.Driver), zap.Bool("redis_sessions", redis != nil))

	var app *fiber.App
	if cfg.Ops.Enabled {
		app = newOpsApp(cfg, st, redis, metrics, logger)
		go func() {
			if err := app.Listen(cfg.Ops.Addr()); err != nil {
				logger.Error("ops api stopped", zap.Error(err))
			}
		}()
		logger.Info("ops api listening", zap.String("addr", cfg.Ops.Addr()))
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if app != nil {
		_ = app.ShutdownWithContext(shutdownCtx)
	}
	if err := bot.Close(); err != nil {
		logger.Warn("gateway close failed", zap.Error(err))
	}
	jobs.Stop(shutdownCtx)
	scheduler.Stop(shutdownCtx)
	return nil
}

func newOpsApp(cfg *config.Config, st *store, redis *persistence.Redis, metrics *observability.Metrics, logger *zap.Logger) *fiber.App {
	checks := []handlers.Check{{Name: cfg.Store.Driver, Pinger: st}}
	if redis != nil {
		checks = append(checks, handlers.Check{Name: "redis", Pinger: redis})
	}
	return httptransport.NewApp(httptransport.ServerDeps{
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Tickets:     st.tickets,
		History:     st.history,
		Tokens:      auth.NewTokenManager(cfg.Ops.JWTSecret, cfg.App.Name, cfg.Ops.TokenTTLMinutes),
		Metrics:     metrics,
		Checks:      checks,
		Logger:      logger.Named("ops"),
		Timeout:     5 * time.Second,
	})
}
