package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type sqliteTicketHistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteTicketHistoryRepository builds the SQLite-backed repository.
// Detail is stored as a JSON document.
func NewSQLiteTicketHistoryRepository(db *sql.DB, opts ...Option) TicketHistoryRepository {
	o := buildOptions(opts)
	return &sqliteTicketHistoryRepository{db: db, now: o.now}
}

func (r *sqliteTicketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	if history.CreatedAt.IsZero() {
		history.CreatedAt = r.now().UTC()
	}
	var detail sql.NullString
	if len(history.Detail) > 0 {
		raw, err := json.Marshal(history.Detail)
		if err != nil {
			return fmt.Errorf("encode ticket history detail: %w", err)
		}
		detail = sql.NullString{String: string(raw), Valid: true}
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, channel_id, change_type, changed_by_id, detail, created_at)
        VALUES (?,?,?,NULLIF(?,''),?,?)`
	res, err := r.db.ExecContext(ctx, query,
		history.TicketID,
		history.ChannelID,
		string(history.ChangeType),
		history.ChangedByID,
		detail,
		formatTime(history.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ticket history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert ticket history: %w", err)
	}
	history.ID = id
	return nil
}

func (r *sqliteTicketHistoryRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, channel_id, change_type, COALESCE(changed_by_id, ''), detail, created_at
        FROM ticket_history WHERE channel_id=? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list ticket history: %w", err)
	}
	defer rows.Close()

	result := make([]domain.TicketHistory, 0, defaultListCapacity)
	for rows.Next() {
		var (
			history    domain.TicketHistory
			changeType string
			detail     sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&history.ID, &history.TicketID, &history.ChannelID, &changeType,
			&history.ChangedByID, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ticket history: %w", err)
		}
		history.ChangeType = domain.TicketChangeType(changeType)
		if history.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &history.Detail); err != nil {
				return nil, fmt.Errorf("decode ticket history detail: %w", err)
			}
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
