package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

const calendarColumns = `id, summary, is_primary, is_holiday, is_selected, updated_at`

// UpsertCalendar inserts or updates a calendar's metadata.
// The selected flag is left untouched on update; use SetSelectedCalendars.
func (db *DB) UpsertCalendar(ctx context.Context, cal *schema.Calendar) error {
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("invalid calendar: %w", err)
	}
	if cal.UpdatedAt.IsZero() {
		cal.UpdatedAt = time.Now()
	}

	query := `
	INSERT INTO calendars (id, summary, is_primary, is_holiday, is_selected, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		summary = excluded.summary,
		is_primary = excluded.is_primary,
		is_holiday = excluded.is_holiday,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		cal.ID,
		cal.Summary,
		boolToInt(cal.Primary),
		boolToInt(cal.Holiday),
		boolToInt(cal.Selected),
		formatTime(cal.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert calendar %s: %w", cal.ID, err)
	}
	return nil
}

// GetCalendar retrieves a calendar by id. Returns ErrNotFound if absent.
func (db *DB) GetCalendar(ctx context.Context, id string) (*schema.Calendar, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = ?`, id)
	cal, err := scanCalendar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calendar %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar %s: %w", id, err)
	}
	return cal, nil
}

// ListCalendars returns every calendar ordered primary first, then holiday
// calendars, then by name.
func (db *DB) ListCalendars(ctx context.Context) ([]*schema.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars
	ORDER BY is_primary DESC, is_holiday DESC, summary COLLATE NOCASE ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	defer rows.Close()

	var cals []*schema.Calendar
	for rows.Next() {
		cal, err := scanCalendar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar: %w", err)
		}
		cals = append(cals, cal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calendars: %w", err)
	}
	return cals, nil
}

// SetSelectedCalendars persists the selection set and sets every calendar's
// selected flag to match it, in one transaction.
func (db *DB) SetSelectedCalendars(ctx context.Context, ids []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := putSelection(ctx, tx, ids); err != nil {
			return err
		}
		return reflectSelection(ctx, tx, ids)
	})
}

// SyncSelectionFlags sets each calendar's selected flag from ids without
// changing the persisted selection.
func (db *DB) SyncSelectionFlags(ctx context.Context, ids []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return reflectSelection(ctx, tx, ids)
	})
}

func reflectSelection(ctx context.Context, tx *sql.Tx, ids []string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE calendars SET is_selected = 0 WHERE is_selected != 0`); err != nil {
		return fmt.Errorf("failed to clear calendar selection: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE calendars SET is_selected = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to select calendar %s: %w", id, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalendar(s scanner) (*schema.Calendar, error) {
	var cal schema.Calendar
	var primary, holiday, selected int
	var updatedAt string
	if err := s.Scan(&cal.ID, &cal.Summary, &primary, &holiday, &selected, &updatedAt); err != nil {
		return nil, err
	}
	cal.Primary = primary != 0
	cal.Holiday = holiday != 0
	cal.Selected = selected != 0
	cal.UpdatedAt = parseTime(updatedAt)
	return &cal, nil
}
