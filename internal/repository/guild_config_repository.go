package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// GuildConfigRepository stores one configuration record per community.
type GuildConfigRepository interface {
	Save(ctx context.Context, cfg *domain.GuildConfig) error
	Get(ctx context.Context, guildID string) (*domain.GuildConfig, error)
	Delete(ctx context.Context, guildID string) (bool, error)
}

type guildConfigRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewGuildConfigRepository instantiates the Postgres-backed repository.
func NewGuildConfigRepository(pool *pgxpool.Pool, opts ...Option) GuildConfigRepository {
	o := buildOptions(opts)
	return &guildConfigRepository{pool: pool, now: o.now}
}

func (r *guildConfigRepository) Save(ctx context.Context, cfg *domain.GuildConfig) error {
	const query = `
        INSERT INTO guild_config (guild_id, panel_channel_id, support_role_id, ticket_category_id,
            ping_role_id, panel_title, panel_description, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (guild_id) DO UPDATE SET
            panel_channel_id=EXCLUDED.panel_channel_id,
            support_role_id=EXCLUDED.support_role_id,
            ticket_category_id=EXCLUDED.ticket_category_id,
            ping_role_id=EXCLUDED.ping_role_id,
            panel_title=EXCLUDED.panel_title,
            panel_description=EXCLUDED.panel_description,
            updated_at=EXCLUDED.updated_at`
	updatedAt := r.now().UTC()
	if _, err := r.pool.Exec(ctx, query,
		cfg.GuildID,
		cfg.PanelChannelID,
		cfg.SupportRoleID,
		cfg.TicketCategoryID,
		cfg.PingRoleID,
		cfg.PanelTitle,
		cfg.PanelDescription,
		updatedAt,
	); err != nil {
		return fmt.Errorf("save guild config: %w", err)
	}
	cfg.UpdatedAt = updatedAt
	return nil
}

func (r *guildConfigRepository) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	const query = `
        SELECT guild_id, panel_channel_id, support_role_id, ticket_category_id, ping_role_id,
               panel_title, panel_description, updated_at
        FROM guild_config WHERE guild_id=$1`
	var cfg domain.GuildConfig
	if err := r.pool.QueryRow(ctx, query, guildID).Scan(
		&cfg.GuildID,
		&cfg.PanelChannelID,
		&cfg.SupportRoleID,
		&cfg.TicketCategoryID,
		&cfg.PingRoleID,
		&cfg.PanelTitle,
		&cfg.PanelDescription,
		&cfg.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGuildConfigNotFound
		}
		return nil, fmt.Errorf("get guild config: %w", err)
	}
	return &cfg, nil
}

func (r *guildConfigRepository) Delete(ctx context.Context, guildID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM guild_config WHERE guild_id=$1`, guildID)
	if err != nil {
		return false, fmt.Errorf("delete guild config: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}
