package console

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"phoned/pkg/event"

	_ "modernc.org/sqlite"
)

// Store persists console rows across restarts.
type Store interface {
	Append(ctx context.Context, row Row) error
	List(ctx context.Context) ([]Row, error)
	Close() error
}

const sqliteDriverName = "sqlite"

const schemaConsoleRows = `
CREATE TABLE IF NOT EXISTS console_rows (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT UNIQUE NOT NULL,
    severity TEXT NOT NULL,
    icon TEXT NOT NULL,
    occurred_at INTEGER NOT NULL,
    display TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL
);
`

// OpenDB opens or creates the SQLite database at path and ensures the
// console table exists.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One writer: the console appends from a single goroutine at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaConsoleRows); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply console schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

// SQLiteStore is a Store backed by a SQL database using the console_rows
// schema.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append inserts a row.
func (s *SQLiteStore) Append(ctx context.Context, row Row) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO console_rows (id, severity, icon, occurred_at, display, title, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		row.ID,
		row.Severity.String(),
		row.Icon,
		row.Timestamp.UnixNano(),
		row.Display,
		row.Title,
		row.Message,
	)
	if err != nil {
		return fmt.Errorf("insert console row %s: %w", row.ID, err)
	}
	return nil
}

// List returns every stored row in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, severity, icon, occurred_at, display, title, message
		FROM console_rows ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query console rows: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0, 64)
	for rows.Next() {
		var (
			row      Row
			severity string
			nanos    int64
		)
		if err := rows.Scan(&row.ID, &severity, &row.Icon, &nanos, &row.Display, &row.Title, &row.Message); err != nil {
			return nil, fmt.Errorf("scan console row: %w", err)
		}
		row.Severity = event.ParseKind(severity)
		row.Timestamp = time.Unix(0, nanos)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate console rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
