package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Migrator applies schema statements for one store dialect.
type Migrator interface {
	Dialect() string
	Exec(ctx context.Context, query string) (int64, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
}

// migration is either a dialect-specific statement or an additive column.
// Every migration is safe to apply on each start.
type migration struct {
	name       string
	statements map[string]string
	table      string
	column     string
	columnType map[string]string

	// warnAffected is logged with the row count when a statement changes data.
	warnAffected string
}

// duplicateCloseReason marks tickets closed while enforcing one open ticket per user.
const duplicateCloseReason = "Closed automatically: newer open ticket exists"

var migrations = []migration{
	{
		name: "001_create_tickets",
		statements: map[string]string{
			config.DriverPostgres: `
                CREATE TABLE IF NOT EXISTS tickets (
                    ticket_id  BIGSERIAL PRIMARY KEY,
                    channel_id TEXT UNIQUE NOT NULL,
                    user_id    TEXT NOT NULL,
                    created_at TIMESTAMPTZ NOT NULL,
                    closed_at  TIMESTAMPTZ,
                    status     TEXT NOT NULL DEFAULT 'open'
                )`,
			config.DriverSQLite: `
                CREATE TABLE IF NOT EXISTS tickets (
                    ticket_id  INTEGER PRIMARY KEY AUTOINCREMENT,
                    channel_id TEXT UNIQUE NOT NULL,
                    user_id    TEXT NOT NULL,
                    created_at TEXT NOT NULL,
                    closed_at  TEXT,
                    status     TEXT NOT NULL DEFAULT 'open'
                )`,
		},
	},
	{
		name:       "002_add_tickets_claimed_by",
		table:      "tickets",
		column:     "claimed_by",
		columnType: map[string]string{config.DriverPostgres: "TEXT", config.DriverSQLite: "TEXT"},
	},
	{
		name:       "003_add_tickets_claimed_at",
		table:      "tickets",
		column:     "claimed_at",
		columnType: map[string]string{config.DriverPostgres: "TIMESTAMPTZ", config.DriverSQLite: "TEXT"},
	},
	{
		name:       "004_add_tickets_close_reason",
		table:      "tickets",
		column:     "close_reason",
		columnType: map[string]string{config.DriverPostgres: "TEXT", config.DriverSQLite: "TEXT"},
	},
	{
		name: "005_index_tickets_user",
		statements: map[string]string{
			config.DriverPostgres: `CREATE INDEX IF NOT EXISTS idx_tickets_user_created ON tickets (user_id, created_at DESC)`,
			config.DriverSQLite:   `CREATE INDEX IF NOT EXISTS idx_tickets_user_created ON tickets (user_id, created_at DESC)`,
		},
	},
	{
		// Earlier releases could leave a requester with several open tickets.
		// Only the newest stays open so the unique index below can be built.
		name: "006_close_duplicate_open_tickets",
		statements: map[string]string{
			config.DriverPostgres: `
                UPDATE tickets SET status = 'closed', closed_at = NOW(), close_reason = '` + duplicateCloseReason + `'
                WHERE status = 'open' AND EXISTS (
                    SELECT 1 FROM tickets newer
                    WHERE newer.user_id = tickets.user_id AND newer.status = 'open'
                      AND newer.ticket_id > tickets.ticket_id)`,
			config.DriverSQLite: `
                UPDATE tickets SET status = 'closed',
                    closed_at = strftime('%Y-%m-%dT%H:%M:%f000Z', 'now'),
                    close_reason = '` + duplicateCloseReason + `'
                WHERE status = 'open' AND EXISTS (
                    SELECT 1 FROM tickets newer
                    WHERE newer.user_id = tickets.user_id AND newer.status = 'open'
                      AND newer.ticket_id > tickets.ticket_id)`,
		},
		warnAffected: "closed duplicate open tickets; their channels remain and can be deleted by staff",
	},
	{
		// At most one open ticket per requester, closing the create race.
		name: "007_unique_open_ticket_per_user",
		statements: map[string]string{
			config.DriverPostgres: `CREATE UNIQUE INDEX IF NOT EXISTS uq_tickets_open_user ON tickets (user_id) WHERE status = 'open'`,
			config.DriverSQLite:   `CREATE UNIQUE INDEX IF NOT EXISTS uq_tickets_open_user ON tickets (user_id) WHERE status = 'open'`,
		},
	},
	{
		name: "008_create_guild_config",
		statements: map[string]string{
			config.DriverPostgres: `
                CREATE TABLE IF NOT EXISTS guild_config (
                    guild_id           TEXT PRIMARY KEY,
                    panel_channel_id   TEXT NOT NULL,
                    support_role_id    TEXT,
                    ticket_category_id TEXT,
                    ping_role_id       TEXT,
                    panel_title        TEXT,
                    panel_description  TEXT,
                    updated_at         TIMESTAMPTZ NOT NULL
                )`,
			config.DriverSQLite: `
                CREATE TABLE IF NOT EXISTS guild_config (
                    guild_id           TEXT PRIMARY KEY,
                    panel_channel_id   TEXT NOT NULL,
                    support_role_id    TEXT,
                    ticket_category_id TEXT,
                    ping_role_id       TEXT,
                    panel_title        TEXT,
                    panel_description  TEXT,
                    updated_at         TEXT NOT NULL
                )`,
		},
	},
	{
		name: "009_create_ticket_history",
		statements: map[string]string{
			config.DriverPostgres: `
                CREATE TABLE IF NOT EXISTS ticket_history (
                    id            BIGSERIAL PRIMARY KEY,
                    ticket_id     BIGINT NOT NULL,
                    channel_id    TEXT NOT NULL,
                    change_type   TEXT NOT NULL,
                    changed_by_id TEXT,
                    detail        JSONB,
                    created_at    TIMESTAMPTZ NOT NULL
                )`,
			config.DriverSQLite: `
                CREATE TABLE IF NOT EXISTS ticket_history (
                    id            INTEGER PRIMARY KEY AUTOINCREMENT,
                    ticket_id     INTEGER NOT NULL,
                    channel_id    TEXT NOT NULL,
                    change_type   TEXT NOT NULL,
                    changed_by_id TEXT,
                    detail        TEXT,
                    created_at    TEXT NOT NULL
                )`,
		},
	},
	{
		name: "010_index_ticket_history_channel",
		statements: map[string]string{
			config.DriverPostgres: `CREATE INDEX IF NOT EXISTS idx_ticket_history_channel ON ticket_history (channel_id, created_at)`,
			config.DriverSQLite:   `CREATE INDEX IF NOT EXISTS idx_ticket_history_channel ON ticket_history (channel_id, created_at)`,
		},
	},
}

// RunMigrations brings the schema up to date. Re-running it is a no-op.
func RunMigrations(ctx context.Context, m Migrator, logger *zap.Logger) error {
	if m == nil {
		logger.Warn("no store available; skipping migrations")
		return nil
	}
	dialect := m.Dialect()

	applied := 0
	for _, mig := range migrations {
		if mig.column != "" {
			exists, err := m.ColumnExists(ctx, mig.table, mig.column)
			if err != nil {
				return fmt.Errorf("inspect migration %s: %w", mig.name, err)
			}
			if exists {
				continue
			}
			colType, ok := mig.columnType[dialect]
			if !ok {
				return fmt.Errorf("migration %s has no column type for %s", mig.name, dialect)
			}
			logger.Info("applying migration", zap.String("name", mig.name), zap.String("dialect", dialect))
			query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", mig.table, mig.column, colType)
			if _, err := m.Exec(ctx, query); err != nil {
				return fmt.Errorf("apply migration %s: %w", mig.name, err)
			}
			applied++
			continue
		}

		stmt, ok := mig.statements[dialect]
		if !ok {
			return fmt.Errorf("migration %s has no statement for %s", mig.name, dialect)
		}
		logger.Debug("applying migration", zap.String("name", mig.name), zap.String("dialect", dialect))
		affected, err := m.Exec(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.name, err)
		}
		if mig.warnAffected != "" && affected > 0 {
			logger.Warn(mig.warnAffected, zap.String("name", mig.name), zap.Int64("rows", affected))
		}
		applied++
	}

	logger.Info("migrations applied", zap.Int("count", applied), zap.String("dialect", dialect))
	return nil
}
