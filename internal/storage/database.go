package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// ErrNotFound is returned when an update or delete matches no row.
var ErrNotFound = errors.New("not found")

const memoryDSN = ":memory:"

// Per-connection pragmas, applied by the driver on every new connection.
var pragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn   *sql.DB
	Path   string
	logger *slog.Logger
}

// Open creates a new database connection at path and migrates the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return open(ctx, path, append(pragmas, "journal_mode(WAL)"))
}

// OpenMemory opens an in-memory database, used by tests and dry runs.
func OpenMemory(ctx context.Context) (*DB, error) {
	return open(ctx, memoryDSN, pragmas)
}

func open(ctx context.Context, path string, pragmas []string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path, pragmas))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == memoryDSN {
		// Every connection would otherwise get its own empty database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{conn: conn, Path: path, logger: slog.Default().With("component", "storage")}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

func dsn(path string, pragmas []string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	// Writers take the lock at BEGIN so a read-modify-write transaction
	// waits on busy_timeout instead of failing when it upgrades.
	params = append(params, "_txlock=immediate")
	return path + "?" + strings.Join(params, "&")
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func toMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func nullTime(v sql.NullInt64) sql.NullTime {
	if !v.Valid {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: fromMillis(v), Valid: true}
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
