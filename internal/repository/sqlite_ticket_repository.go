package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// Fixed width so that text comparison orders timestamps.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

var legacyTimeLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type sqliteTicketRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteTicketRepository instantiates the SQLite-backed repository.
func NewSQLiteTicketRepository(db *sql.DB, opts ...Option) TicketRepository {
	o := buildOptions(opts)
	return &sqliteTicketRepository{db: db, now: o.now}
}

func (r *sqliteTicketRepository) Create(ctx context.Context, channelID, userID string) (int64, error) {
	const query = `
        INSERT INTO tickets (channel_id, user_id, created_at, status)
        VALUES (?, ?, ?, 'open')`
	res, err := r.db.ExecContext(ctx, query, channelID, userID, formatTime(r.now()))
	if err != nil {
		var sqlErr *sqlite.Error
		if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE && r.hasOpenTicket(ctx, userID) {
			return 0, domain.ErrOpenTicketExists
		}
		return 0, fmt.Errorf("create ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create ticket: %w", err)
	}
	return id, nil
}

// hasOpenTicket tells a uq_tickets_open_user violation apart from a reused channel ID.
func (r *sqliteTicketRepository) hasOpenTicket(ctx context.Context, userID string) bool {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM tickets WHERE user_id = ? AND status = 'open' LIMIT 1`, userID).Scan(&one)
	return err == nil
}

func (r *sqliteTicketRepository) Close(ctx context.Context, channelID string, reason *string) (bool, error) {
	const query = `
        UPDATE tickets SET status='closed', closed_at=?, close_reason=?
        WHERE channel_id=? AND status='open'`
	return r.execAffected(ctx, "close ticket", query, formatTime(r.now()), reason, channelID)
}

func (r *sqliteTicketRepository) Claim(ctx context.Context, channelID, staffID string) (bool, error) {
	const query = `
        UPDATE tickets SET claimed_by=?, claimed_at=?
        WHERE channel_id=? AND status='open' AND claimed_by IS NULL`
	return r.execAffected(ctx, "claim ticket", query, staffID, formatTime(r.now()), channelID)
}

func (r *sqliteTicketRepository) Unclaim(ctx context.Context, channelID string) (bool, error) {
	const query = `
        UPDATE tickets SET claimed_by=NULL, claimed_at=NULL
        WHERE channel_id=? AND status='open' AND claimed_by IS NOT NULL`
	return r.execAffected(ctx, "unclaim ticket", query, channelID)
}

func (r *sqliteTicketRepository) execAffected(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func (r *sqliteTicketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=?`
	ticket, err := scanSQLiteTicket(r.db.QueryRowContext(ctx, query, channelID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *sqliteTicketRepository) ListByUser(ctx context.Context, userID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != nil {
		query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id=? AND status=? ORDER BY created_at DESC, ticket_id DESC`
		rows, err = r.db.QueryContext(ctx, query, userID, string(*status))
	} else {
		query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id=? ORDER BY created_at DESC, ticket_id DESC`
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list user tickets: %w", err)
	}
	defer rows.Close()
	return scanSQLiteTickets(rows)
}

func (r *sqliteTicketRepository) ListClaimedBy(ctx context.Context, staffID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE claimed_by=? AND status='open' ORDER BY claimed_at DESC`
	rows, err := r.db.QueryContext(ctx, query, staffID)
	if err != nil {
		return nil, fmt.Errorf("list claimed tickets: %w", err)
	}
	defer rows.Close()
	return scanSQLiteTickets(rows)
}

func (r *sqliteTicketRepository) Statistics(ctx context.Context) (domain.TicketStatistics, error) {
	const query = `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status='open' THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='closed' THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='open' AND claimed_by IS NOT NULL THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='open' AND claimed_by IS NULL THEN 1 ELSE 0 END), 0)
        FROM tickets`
	var stats domain.TicketStatistics
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Open, &stats.Closed, &stats.Claimed, &stats.Unclaimed); err != nil {
		return stats, fmt.Errorf("ticket statistics: %w", err)
	}
	return stats, nil
}

func (r *sqliteTicketRepository) PeriodStatistics(ctx context.Context, days int) (domain.PeriodStatistics, error) {
	const query = `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status='open' THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='closed' THEN 1 ELSE 0 END), 0)
        FROM tickets WHERE created_at >= ?`
	stats := domain.PeriodStatistics{Days: days}
	cutoff := formatTime(periodCutoff(r.now(), days))
	if err := r.db.QueryRowContext(ctx, query, cutoff).Scan(&stats.Total, &stats.Open, &stats.Closed); err != nil {
		return stats, fmt.Errorf("period statistics: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		status      string
		createdAt   string
		closedAt    sql.NullString
		closeReason sql.NullString
		claimedBy   sql.NullString
		claimedAt   sql.NullString
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ChannelID,
		&ticket.UserID,
		&status,
		&createdAt,
		&closedAt,
		&closeReason,
		&claimedBy,
		&claimedAt,
	); err != nil {
		return nil, err
	}

	var err error
	ticket.Status = domain.TicketStatus(status)
	if ticket.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ticket.ClosedAt, err = parseNullTime(closedAt); err != nil {
		return nil, err
	}
	if ticket.ClaimedAt, err = parseNullTime(claimedAt); err != nil {
		return nil, err
	}
	ticket.CloseReason = nullString(closeReason)
	ticket.ClaimedBy = nullString(claimedBy)
	return &ticket, nil
}

func scanSQLiteTickets(rows *sql.Rows) ([]domain.Ticket, error) {
	result := make([]domain.Ticket, 0, defaultListCapacity)
	for rows.Next() {
		ticket, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
