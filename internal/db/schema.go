package db

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS calendars (
	id TEXT PRIMARY KEY,
	summary TEXT NOT NULL,
	is_primary INTEGER NOT NULL DEFAULT 0,
	is_holiday INTEGER NOT NULL DEFAULT 0,
	is_selected INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	event_key TEXT PRIMARY KEY,           -- calendar_id || ':' || remote_event_id
	calendar_id TEXT NOT NULL,
	remote_event_id TEXT NOT NULL,
	ical_uid TEXT,
	title TEXT NOT NULL DEFAULT '',
	description TEXT,
	location TEXT,
	start_time TEXT,                      -- YYYY-MM-DD or RFC3339
	end_time TEXT,
	all_day INTEGER NOT NULL DEFAULT 0,
	updated TEXT,
	status TEXT NOT NULL DEFAULT 'confirmed',
	deleted INTEGER NOT NULL DEFAULT 0,
	raw_json TEXT,
	UNIQUE (calendar_id, remote_event_id)
);

-- No foreign key to events: annotations may be restored before the event
-- they belong to has been synced.
CREATE TABLE IF NOT EXISTS event_annotations (
	event_key TEXT PRIMARY KEY,
	category TEXT NOT NULL DEFAULT 'unknown',
	is_major INTEGER NOT NULL DEFAULT 0,
	project_id TEXT,
	notes_url TEXT,
	provenance TEXT NOT NULL DEFAULT 'auto' CHECK (provenance IN ('auto', 'user')),
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS calendar_sync_state (
	calendar_id TEXT PRIMARY KEY,
	sync_token TEXT,
	window_start TEXT NOT NULL,
	window_end TEXT NOT NULL,
	last_sync_at TEXT
);

CREATE TABLE IF NOT EXISTS user_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	provider TEXT PRIMARY KEY,
	access_token TEXT,
	refresh_token TEXT,
	token_type TEXT,
	scope TEXT,
	expiry TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	priority TEXT NOT NULL DEFAULT 'med',
	target_date TEXT,
	description TEXT,
	tags TEXT,                            -- JSON array
	drive_folder_url TEXT,
	key_doc_urls TEXT,                    -- JSON array
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS actions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	priority TEXT NOT NULL DEFAULT 'med',
	start_at TEXT,
	due_at TEXT,
	snooze_until TEXT,
	tags TEXT,                            -- JSON array
	parent_type TEXT,
	parent_id TEXT,
	reference_url TEXT,
	checklist TEXT,                       -- JSON array
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calendars_selected ON calendars(is_selected);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);
CREATE INDEX IF NOT EXISTS idx_events_calendar ON events(calendar_id);
CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status);
CREATE INDEX IF NOT EXISTS idx_actions_parent ON actions(parent_type, parent_id);
`

// InitSchema creates the database schema if it doesn't exist and applies
// pending migrations. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := runMigrations(ctx, db.conn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the stored PRAGMA user_version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, conn *sql.DB) error {
	var version int
	if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 2 {
		if err := migrateToV2(ctx, conn); err != nil {
			return err
		}
	}

	if version < currentSchemaVersion {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// migrateToV2 adds the indexes used by locked-annotation backups and by the
// events listing's category filter. Databases created at v1 lack them.
func migrateToV2(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_annotations_provenance ON event_annotations(provenance);
		CREATE INDEX IF NOT EXISTS idx_annotations_category ON event_annotations(category);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}
