package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// TicketHistoryRepository stores the audit trail of ticket transitions.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewTicketHistoryRepository builds the Postgres-backed repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool, opts ...Option) TicketHistoryRepository {
	o := buildOptions(opts)
	return &ticketHistoryRepository{pool: pool, now: o.now}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.CreatedAt.IsZero() {
		history.CreatedAt = r.now().UTC()
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, channel_id, change_type, changed_by_id, detail, created_at)
        VALUES ($1,$2,$3,NULLIF($4,''),$5,$6)
        RETURNING id`
	if err := r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.ChannelID,
		string(history.ChangeType),
		history.ChangedByID,
		history.Detail,
		history.CreatedAt,
	).Scan(&history.ID); err != nil {
		return fmt.Errorf("insert ticket history: %w", err)
	}
	return nil
}

func (r *ticketHistoryRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, channel_id, change_type, COALESCE(changed_by_id, ''), detail, created_at
        FROM ticket_history WHERE channel_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list ticket history: %w", err)
	}
	defer rows.Close()

	result := make([]domain.TicketHistory, 0, defaultListCapacity)
	for rows.Next() {
		var (
			history    domain.TicketHistory
			changeType string
		)
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.ChannelID,
			&changeType,
			&history.ChangedByID,
			&history.Detail,
			&history.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ticket history: %w", err)
		}
		history.ChangeType = domain.TicketChangeType(changeType)
		result = append(result, history)
	}
	return result, rows.Err()
}
