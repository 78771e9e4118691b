package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// GetSyncState returns the stored cursor for a calendar, or ErrNotFound.
func (db *DB) GetSyncState(ctx context.Context, calendarID string) (*schema.SyncState, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT calendar_id, sync_token, window_start, window_end, last_sync_at
	FROM calendar_sync_state WHERE calendar_id = ?
	`, calendarID)

	st, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync state %s: %w", calendarID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state %s: %w", calendarID, err)
	}
	return st, nil
}

// PutSyncState inserts or replaces the cursor for a calendar.
func (db *DB) PutSyncState(ctx context.Context, st *schema.SyncState) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("invalid sync state: %w", err)
	}
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO calendar_sync_state (calendar_id, sync_token, window_start, window_end, last_sync_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(calendar_id) DO UPDATE SET
		sync_token = excluded.sync_token,
		window_start = excluded.window_start,
		window_end = excluded.window_end,
		last_sync_at = excluded.last_sync_at
	`,
		st.CalendarID,
		nullString(st.Token),
		formatTime(st.WindowStart),
		formatTime(st.WindowEnd),
		timeToNullString(&st.LastSyncAt),
	)
	if err != nil {
		return fmt.Errorf("failed to put sync state %s: %w", st.CalendarID, err)
	}
	return nil
}

// ListSyncStates returns every stored cursor ordered by calendar id.
func (db *DB) ListSyncStates(ctx context.Context) ([]*schema.SyncState, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT calendar_id, sync_token, window_start, window_end, last_sync_at
	FROM calendar_sync_state ORDER BY calendar_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync states: %w", err)
	}
	defer rows.Close()

	var states []*schema.SyncState
	for rows.Next() {
		st, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}
	return states, nil
}

// DeleteSyncState removes a calendar's cursor so the next pass full-syncs.
func (db *DB) DeleteSyncState(ctx context.Context, calendarID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM calendar_sync_state WHERE calendar_id = ?`, calendarID); err != nil {
		return fmt.Errorf("failed to delete sync state %s: %w", calendarID, err)
	}
	return nil
}

func scanSyncState(s scanner) (*schema.SyncState, error) {
	var st schema.SyncState
	var token, lastSync sql.NullString
	var start, end string
	if err := s.Scan(&st.CalendarID, &token, &start, &end, &lastSync); err != nil {
		return nil, err
	}
	st.Token = token.String
	st.WindowStart = parseTime(start)
	st.WindowEnd = parseTime(end)
	if t := nullStringToTime(lastSync); t != nil {
		st.LastSyncAt = *t
	}
	return &st, nil
}
