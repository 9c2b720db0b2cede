package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// SQLite wraps a database/sql handle backed by modernc.org/sqlite.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (and creates when missing) the database at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path not provided")
	}

	dsn := path
	if path != MemoryDSN {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// In-memory databases are per connection; a single connection keeps one
	// database and serializes writers the same way SQLite does anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if logger != nil {
		logger.Info("opened sqlite store", zap.String("path", path))
	}
	return &SQLite{DB: db}, nil
}

// Close releases the handle.
func (s *SQLite) Close() {
	if s != nil && s.DB != nil {
		_ = s.DB.Close()
	}
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("sqlite not configured")
	}
	return s.DB.PingContext(ctx)
}

// Migrator returns a schema migrator bound to the handle.
func (s *SQLite) Migrator() Migrator {
	return &sqliteMigrator{db: s.DB}
}

type sqliteMigrator struct {
	db *sql.DB
}

func (m *sqliteMigrator) Dialect() string { return config.DriverSQLite }

func (m *sqliteMigrator) Exec(ctx context.Context, query string) (int64, error) {
	res, err := m.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	// DDL reports no rows; treat an unsupported count as zero.
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (m *sqliteMigrator) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	found := false
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return false, err
		}
		for i, name := range cols {
			if name != "name" {
				continue
			}
			if strings.EqualFold(asString(values[i]), column) {
				found = true
			}
		}
	}
	return found, rows.Err()
}

func asString(v any) string {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
