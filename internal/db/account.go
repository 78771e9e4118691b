package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Stats summarises the store for status output and the dashboard.
type Stats struct {
	Calendars         int `json:"calendars"`
	SelectedCalendars int `json:"selected_calendars"`
	Events            int `json:"events"`
	DeletedEvents     int `json:"deleted_events"`
	Annotations       int `json:"annotations"`
	LockedAnnotations int `json:"locked_annotations"`
	Projects          int `json:"projects"`
	OpenActions       int `json:"open_actions"`
}

// GetStats returns row counts across the store.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := db.conn.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM calendars),
		(SELECT COUNT(*) FROM calendars WHERE is_selected = 1),
		(SELECT COUNT(*) FROM events),
		(SELECT COUNT(*) FROM events WHERE deleted = 1),
		(SELECT COUNT(*) FROM event_annotations),
		(SELECT COUNT(*) FROM event_annotations WHERE provenance = 'user'),
		(SELECT COUNT(*) FROM projects),
		(SELECT COUNT(*) FROM actions WHERE status = 'open')
	`).Scan(
		&s.Calendars,
		&s.SelectedCalendars,
		&s.Events,
		&s.DeletedEvents,
		&s.Annotations,
		&s.LockedAnnotations,
		&s.Projects,
		&s.OpenActions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &s, nil
}

// ResetAccount removes everything mirrored from or tied to the remote
// account: tokens, sync state, calendars, events and annotations. The
// selection and last sync time are cleared; horizon and refresh interval
// are kept. Projects and actions are local and survive.
func (db *DB) ResetAccount(ctx context.Context) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM oauth_tokens`,
			`DELETE FROM calendar_sync_state`,
			`DELETE FROM event_annotations`,
			`DELETE FROM events`,
			`DELETE FROM calendars`,
			`DELETE FROM user_config WHERE key = '` + keyLastSyncAt + `'`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to reset account: %w", err)
			}
		}
		return putSelection(ctx, tx, nil)
	})
}
