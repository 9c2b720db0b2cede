package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type sqliteGuildConfigRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteGuildConfigRepository instantiates the SQLite-backed repository.
func NewSQLiteGuildConfigRepository(db *sql.DB, opts ...Option) GuildConfigRepository {
	o := buildOptions(opts)
	return &sqliteGuildConfigRepository{db: db, now: o.now}
}

func (r *sqliteGuildConfigRepository) Save(ctx context.Context, cfg *domain.GuildConfig) error {
	const query = `
        INSERT OR REPLACE INTO guild_config (guild_id, panel_channel_id, support_role_id, ticket_category_id,
            ping_role_id, panel_title, panel_description, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	updatedAt := r.now().UTC()
	if _, err := r.db.ExecContext(ctx, query,
		cfg.GuildID,
		cfg.PanelChannelID,
		cfg.SupportRoleID,
		cfg.TicketCategoryID,
		cfg.PingRoleID,
		cfg.PanelTitle,
		cfg.PanelDescription,
		formatTime(updatedAt),
	); err != nil {
		return fmt.Errorf("save guild config: %w", err)
	}
	cfg.UpdatedAt = updatedAt
	return nil
}

func (r *sqliteGuildConfigRepository) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	const query = `
        SELECT guild_id, panel_channel_id, support_role_id, ticket_category_id, ping_role_id,
               panel_title, panel_description, updated_at
        FROM guild_config WHERE guild_id=?`
	var (
		cfg                                   domain.GuildConfig
		supportRole, category, pingRole       sql.NullString
		panelTitle, panelDescription, updated sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, query, guildID).Scan(
		&cfg.GuildID,
		&cfg.PanelChannelID,
		&supportRole,
		&category,
		&pingRole,
		&panelTitle,
		&panelDescription,
		&updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGuildConfigNotFound
		}
		return nil, fmt.Errorf("get guild config: %w", err)
	}
	cfg.SupportRoleID = nullString(supportRole)
	cfg.TicketCategoryID = nullString(category)
	cfg.PingRoleID = nullString(pingRole)
	cfg.PanelTitle = nullString(panelTitle)
	cfg.PanelDescription = nullString(panelDescription)
	if updatedAt, err := parseNullTime(updated); err != nil {
		return nil, fmt.Errorf("get guild config: %w", err)
	} else if updatedAt != nil {
		cfg.UpdatedAt = *updatedAt
	}
	return &cfg, nil
}

func (r *sqliteGuildConfigRepository) Delete(ctx context.Context, guildID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guild_config WHERE guild_id=?`, guildID)
	if err != nil {
		return false, fmt.Errorf("delete guild config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete guild config: %w", err)
	}
	return n > 0, nil
}
