package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// DefaultEventLimit caps ListEvents when no limit is given.
const DefaultEventLimit = 2000

// EventWrite is one reconciled item of a provider page: the remote event and
// the category the classifier assigned to it.
type EventWrite struct {
	Event    *schema.Event
	Category schema.Category
}

// PageResult reports what ApplyEventPage wrote.
type PageResult struct {
	Upserted      int
	DeletedMarked int
	// AnnotationsWritten counts annotations created or re-categorised.
	// Unchanged and user-locked annotations are not counted.
	AnnotationsWritten int
}

// EventRecord is an event joined with its annotation, if any.
type EventRecord struct {
	Event      *schema.Event      `json:"event" yaml:"event"`
	Annotation *schema.Annotation `json:"annotation,omitempty" yaml:"annotation,omitempty"`
}

// EventFilter configures ListEvents. From and To are compared against the
// stored start value, so they take the same ISO date or date-time form.
type EventFilter struct {
	// From includes events starting at or after this value (empty = unbounded)
	From string
	// To includes events starting before this value (empty = unbounded)
	To string
	// IncludeDeleted returns logically deleted events too
	IncludeDeleted bool
	// CalendarID restricts to one calendar (empty = all)
	CalendarID string
	// Category restricts by annotation category; events without one count as unknown
	Category schema.Category
	// Limit restricts the number of results (0 = DefaultEventLimit)
	Limit int
}

const upsertEventSQL = `
INSERT INTO events (
	event_key, calendar_id, remote_event_id, ical_uid, title, description, location,
	start_time, end_time, all_day, updated, status, deleted, raw_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(event_key) DO UPDATE SET
	ical_uid = excluded.ical_uid,
	title = excluded.title,
	description = excluded.description,
	location = excluded.location,
	start_time = excluded.start_time,
	end_time = excluded.end_time,
	all_day = excluded.all_day,
	updated = excluded.updated,
	status = excluded.status,
	deleted = excluded.deleted,
	raw_json = excluded.raw_json
`

// reconcileAnnotationSQL creates an auto annotation or re-categorises an
// existing auto one. Rows with provenance 'user' are never matched by the
// DO UPDATE clause, so a lock taken by a concurrent edit cannot be lost.
const reconcileAnnotationSQL = `
INSERT INTO event_annotations (event_key, category, is_major, provenance, updated_at)
VALUES (?, ?, 0, 'auto', ?)
ON CONFLICT(event_key) DO UPDATE SET
	category = excluded.category,
	updated_at = excluded.updated_at
WHERE event_annotations.provenance = 'auto'
  AND event_annotations.category != excluded.category
`

// ApplyEventPage upserts a page of events and reconciles their annotations in
// a single transaction. Within the transaction each event row is written
// before its annotation.
func (db *DB) ApplyEventPage(ctx context.Context, writes []EventWrite) (PageResult, error) {
	var res PageResult
	if len(writes) == 0 {
		return res, nil
	}
	now := formatTime(time.Now())

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		evStmt, err := tx.PrepareContext(ctx, upsertEventSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare event upsert: %w", err)
		}
		defer evStmt.Close()

		annStmt, err := tx.PrepareContext(ctx, reconcileAnnotationSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare annotation upsert: %w", err)
		}
		defer annStmt.Close()

		for _, w := range writes {
			ev := w.Event
			if err := ev.Validate(); err != nil {
				return fmt.Errorf("invalid event %s: %w", ev.Key, err)
			}
			category := w.Category
			if !category.IsValid() {
				category = schema.CategoryUnknown
			}

			if _, err := evStmt.ExecContext(ctx,
				ev.Key,
				ev.CalendarID,
				ev.RemoteID,
				nullString(ev.ICalUID),
				ev.Title,
				nullString(ev.Description),
				nullString(ev.Location),
				nullString(ev.Start),
				nullString(ev.End),
				boolToInt(ev.AllDay),
				nullString(ev.Updated),
				ev.Status,
				boolToInt(ev.Deleted),
				nullString(string(ev.Raw)),
			); err != nil {
				return fmt.Errorf("failed to upsert event %s: %w", ev.Key, err)
			}
			res.Upserted++
			if ev.Deleted {
				res.DeletedMarked++
			}

			r, err := annStmt.ExecContext(ctx, ev.Key, string(category), now)
			if err != nil {
				return fmt.Errorf("failed to reconcile annotation %s: %w", ev.Key, err)
			}
			if n, err := r.RowsAffected(); err == nil && n > 0 {
				res.AnnotationsWritten++
			}
		}
		return nil
	})
	if err != nil {
		return PageResult{}, err
	}
	return res, nil
}

// UpsertEvent writes a single event without touching annotations.
func (db *DB) UpsertEvent(ctx context.Context, ev *schema.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	_, err := db.conn.ExecContext(ctx, upsertEventSQL,
		ev.Key, ev.CalendarID, ev.RemoteID, nullString(ev.ICalUID), ev.Title,
		nullString(ev.Description), nullString(ev.Location), nullString(ev.Start), nullString(ev.End),
		boolToInt(ev.AllDay), nullString(ev.Updated), ev.Status, boolToInt(ev.Deleted), nullString(string(ev.Raw)),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", ev.Key, err)
	}
	return nil
}

const eventRecordColumns = `
	e.event_key, e.calendar_id, e.remote_event_id, e.ical_uid, e.title, e.description, e.location,
	e.start_time, e.end_time, e.all_day, e.updated, e.status, e.deleted, e.raw_json,
	a.event_key, a.category, a.is_major, a.project_id, a.notes_url, a.provenance, a.updated_at
`

// GetEvent returns an event and its annotation. Returns ErrNotFound if absent.
func (db *DB) GetEvent(ctx context.Context, key string) (*EventRecord, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+eventRecordColumns+`
	FROM events e
	LEFT JOIN event_annotations a ON a.event_key = e.event_key
	WHERE e.event_key = ?`, key)

	rec, err := scanEventRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", key, err)
	}
	return rec, nil
}

// ListEvents returns events with their annotations ordered by start.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) ([]*EventRecord, error) {
	var conditions []string
	var args []any

	if filter.From != "" {
		conditions = append(conditions, "e.start_time >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, "e.start_time < ?")
		args = append(args, filter.To)
	}
	if !filter.IncludeDeleted {
		conditions = append(conditions, "e.deleted = 0")
	}
	if filter.CalendarID != "" {
		conditions = append(conditions, "e.calendar_id = ?")
		args = append(args, filter.CalendarID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "COALESCE(a.category, 'unknown') = ?")
		args = append(args, string(filter.Category))
	}

	query := `SELECT ` + eventRecordColumns + `
	FROM events e
	LEFT JOIN event_annotations a ON a.event_key = e.event_key`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.start_time ASC, e.event_key ASC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var records []*EventRecord
	for rows.Next() {
		rec, err := scanEventRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return records, nil
}

func scanEventRecord(s scanner) (*EventRecord, error) {
	var ev schema.Event
	var icalUID, description, location, start, end, updated, raw sql.NullString
	var allDay, deleted int

	var annKey, category, projectID, notesURL, provenance, annUpdated sql.NullString
	var isMajor sql.NullInt64

	err := s.Scan(
		&ev.Key, &ev.CalendarID, &ev.RemoteID, &icalUID, &ev.Title, &description, &location,
		&start, &end, &allDay, &updated, &ev.Status, &deleted, &raw,
		&annKey, &category, &isMajor, &projectID, &notesURL, &provenance, &annUpdated,
	)
	if err != nil {
		return nil, err
	}

	ev.ICalUID = icalUID.String
	ev.Description = description.String
	ev.Location = location.String
	ev.Start = start.String
	ev.End = end.String
	ev.AllDay = allDay != 0
	ev.Updated = updated.String
	ev.Deleted = deleted != 0
	if raw.Valid {
		ev.Raw = []byte(raw.String)
	}

	rec := &EventRecord{Event: &ev}
	if annKey.Valid {
		rec.Annotation = &schema.Annotation{
			EventKey:   annKey.String,
			Category:   schema.Category(category.String),
			IsMajor:    isMajor.Int64 != 0,
			ProjectID:  projectID.String,
			NotesURL:   notesURL.String,
			Provenance: schema.Provenance(provenance.String),
			UpdatedAt:  parseTime(annUpdated.String),
		}
	}
	return rec, nil
}
