// Package db provides the embedded SQLite store for personal-dash.
//
// The store is the local mirror of the remote calendar account plus every
// piece of user-owned state layered on top of it:
//
//   - calendars: remote calendar list entries with primary/holiday/selected flags
//   - events: remote events keyed by "calendarId:remoteEventId", logically deleted
//   - event_annotations: category, importance, project link and notes link per
//     event, with a provenance column ('auto' or 'user') that decides whether
//     reconciliation may overwrite the category
//   - calendar_sync_state: per-calendar sync token and query window
//   - user_config: key/value settings (horizon, refresh interval, selection)
//   - oauth_tokens, projects, actions
//
// Architecture:
//   - Database file: ~/.local/share/personal-dash/pd.db by default
//   - WAL mode: concurrent readers while a sync pass writes
//   - Immediate transactions with a 5s busy timeout serialise writers, so a
//     CLI edit and a daemon sync pass never interleave inside one transaction
//
// All timestamps are stored as RFC3339 strings in UTC. Event start/end keep the
// provider's raw value so the date-only versus date-time distinction survives.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

// currentSchemaVersion is stored in PRAGMA user_version.
const currentSchemaVersion = 2

// DB wraps the SQLite connection pool.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
}

// Open opens (creating if needed) the database at path with the default
// driver and initialises the schema.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := db.Open(filepath.Join(dir, "pd.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	return OpenDriver(context.Background(), DriverSQLite, path)
}

// OpenDriver opens the database with a specific driver. The libsql driver is
// only available in binaries built with the libsql tag.
func OpenDriver(ctx context.Context, driver, path string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if !slices.Contains(sql.Drivers(), driver) {
		return nil, fmt.Errorf("database driver %q is not compiled into this binary", driver)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open(driver, dsn(driver, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path, driver: driver}

	if driver != DriverSQLite {
		// libsql does not understand _pragma DSN parameters.
		conn.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
			}
		}
	}

	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func dsn(driver, path string) string {
	if driver != DriverSQLite {
		return "file:" + path
	}
	return "file:" + filepath.ToSlash(path) +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(wal)" +
		"&_txlock=immediate"
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection after checkpointing the WAL.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// formatTime converts a time to the stored RFC3339 UTC form.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a stored timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
