package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const (
	openTicketIndex     = "uq_tickets_open_user"
	pgUniqueViolation   = "23505"
	defaultListCapacity = 8
)

// TicketRepository is the sole authority over ticket state. Every transition
// is a single conditional row update, so concurrent callers racing on the same
// channel see at most one success.
type TicketRepository interface {
	Create(ctx context.Context, channelID, userID string) (int64, error)
	Close(ctx context.Context, channelID string, reason *string) (bool, error)
	Claim(ctx context.Context, channelID, staffID string) (bool, error)
	Unclaim(ctx context.Context, channelID string) (bool, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	ListByUser(ctx context.Context, userID string, status *domain.TicketStatus) ([]domain.Ticket, error)
	ListClaimedBy(ctx context.Context, staffID string) ([]domain.Ticket, error)
	Statistics(ctx context.Context) (domain.TicketStatistics, error)
	PeriodStatistics(ctx context.Context, days int) (domain.PeriodStatistics, error)
}

// Option customizes a repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for created/closed/claimed stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func periodCutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

type ticketRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool, opts ...Option) TicketRepository {
	o := buildOptions(opts)
	return &ticketRepository{pool: pool, now: o.now}
}

const ticketColumns = `ticket_id, channel_id, user_id, status, created_at, closed_at, close_reason, claimed_by, claimed_at`

func (r *ticketRepository) Create(ctx context.Context, channelID, userID string) (int64, error) {
	const query = `
        INSERT INTO tickets (channel_id, user_id, created_at, status)
        VALUES ($1,$2,$3,'open')
        RETURNING ticket_id`
	var id int64
	if err := r.pool.QueryRow(ctx, query, channelID, userID, r.now().UTC()).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == openTicketIndex {
			return 0, domain.ErrOpenTicketExists
		}
		return 0, fmt.Errorf("create ticket: %w", err)
	}
	return id, nil
}

func (r *ticketRepository) Close(ctx context.Context, channelID string, reason *string) (bool, error) {
	const query = `
        UPDATE tickets SET status='closed', closed_at=$1, close_reason=$2
        WHERE channel_id=$3 AND status='open'`
	cmd, err := r.pool.Exec(ctx, query, r.now().UTC(), reason, channelID)
	if err != nil {
		return false, fmt.Errorf("close ticket: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) Claim(ctx context.Context, channelID, staffID string) (bool, error) {
	const query = `
        UPDATE tickets SET claimed_by=$1, claimed_at=$2
        WHERE channel_id=$3 AND status='open' AND claimed_by IS NULL`
	cmd, err := r.pool.Exec(ctx, query, staffID, r.now().UTC(), channelID)
	if err != nil {
		return false, fmt.Errorf("claim ticket: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) Unclaim(ctx context.Context, channelID string) (bool, error) {
	const query = `
        UPDATE tickets SET claimed_by=NULL, claimed_at=NULL
        WHERE channel_id=$1 AND status='open' AND claimed_by IS NOT NULL`
	cmd, err := r.pool.Exec(ctx, query, channelID)
	if err != nil {
		return false, fmt.Errorf("unclaim ticket: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE channel_id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, channelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id=$1 AND status=$2 ORDER BY created_at DESC, ticket_id DESC`
		rows, err = r.pool.Query(ctx, query, userID, string(*status))
	} else {
		query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id=$1 ORDER BY created_at DESC, ticket_id DESC`
		rows, err = r.pool.Query(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list user tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListClaimedBy(ctx context.Context, staffID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE claimed_by=$1 AND status='open' ORDER BY claimed_at DESC`
	rows, err := r.pool.Query(ctx, query, staffID)
	if err != nil {
		return nil, fmt.Errorf("list claimed tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Statistics(ctx context.Context) (domain.TicketStatistics, error) {
	const query = `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status='open' THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='closed' THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='open' AND claimed_by IS NOT NULL THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='open' AND claimed_by IS NULL THEN 1 ELSE 0 END), 0)
        FROM tickets`
	var stats domain.TicketStatistics
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.Total, &stats.Open, &stats.Closed, &stats.Claimed, &stats.Unclaimed); err != nil {
		return stats, fmt.Errorf("ticket statistics: %w", err)
	}
	return stats, nil
}

func (r *ticketRepository) PeriodStatistics(ctx context.Context, days int) (domain.PeriodStatistics, error) {
	const query = `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status='open' THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status='closed' THEN 1 ELSE 0 END), 0)
        FROM tickets WHERE created_at >= $1`
	stats := domain.PeriodStatistics{Days: days}
	cutoff := periodCutoff(r.now().UTC(), days)
	if err := r.pool.QueryRow(ctx, query, cutoff).Scan(&stats.Total, &stats.Open, &stats.Closed); err != nil {
		return stats, fmt.Errorf("period statistics: %w", err)
	}
	return stats, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		status string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ChannelID,
		&ticket.UserID,
		&status,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
		&ticket.CloseReason,
		&ticket.ClaimedBy,
		&ticket.ClaimedAt,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := make([]domain.Ticket, 0, defaultListCapacity)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
