package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

// store bundles the repositories of whichever backend STORE_DRIVER selects.
type store struct {
	tickets      repository.TicketRepository
	guildConfigs repository.GuildConfigRepository
	history      repository.TicketHistoryRepository
	migrator     persistence.Migrator
	ping         func(ctx context.Context) error
	close        func()
}

func (s *store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pool := pg.PoolHandle()
		return &store{
			tickets:      repository.NewTicketRepository(pool),
			guildConfigs: repository.NewGuildConfigRepository(pool),
			history:      repository.NewTicketHistoryRepository(pool),
			migrator:     pg.Migrator(),
			ping:         pg.Ping,
			close:        pg.Close,
		}, nil
	case config.DriverSQLite, "":
		db, err := persistence.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &store{
			tickets:      repository.NewSQLiteTicketRepository(db.DB),
			guildConfigs: repository.NewSQLiteGuildConfigRepository(db.DB),
			history:      repository.NewSQLiteTicketHistoryRepository(db.DB),
			migrator:     db.Migrator(),
			ping:         db.Ping,
			close:        db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// openMigratedStore opens the store and applies migrations when enabled.
func openMigratedStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*store, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := persistence.RunMigrations(ctx, st.migrator, logger); err != nil {
			st.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return st, nil
}
