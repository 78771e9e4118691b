package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

const annotationColumns = `event_key, category, is_major, project_id, notes_url, provenance, updated_at`

// SetAnnotation applies a user edit to an event's annotation, creating it with
// category unknown if absent. The result is always locked (provenance user),
// so later sync passes leave its category alone.
//
// The event does not need to exist yet; annotations restored from a backup
// attach to events when they are first synced.
func (db *DB) SetAnnotation(ctx context.Context, eventKey string, patch schema.AnnotationPatch) (*schema.Annotation, error) {
	if _, _, err := schema.SplitEventKey(eventKey); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var out *schema.Annotation
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ann, err := getAnnotation(ctx, tx, eventKey)
		if errors.Is(err, ErrNotFound) {
			ann = &schema.Annotation{EventKey: eventKey, Category: schema.CategoryUnknown}
		} else if err != nil {
			return err
		}

		patch.Apply(ann)
		ann.Provenance = schema.ProvenanceUser
		ann.UpdatedAt = time.Now().UTC().Truncate(time.Second)
		if err := ann.Validate(); err != nil {
			return err
		}

		if err := putAnnotation(ctx, tx, ann); err != nil {
			return err
		}
		out = ann
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAnnotation returns an event's annotation, or ErrNotFound.
func (db *DB) GetAnnotation(ctx context.Context, eventKey string) (*schema.Annotation, error) {
	return getAnnotation(ctx, db.conn, eventKey)
}

// UnlockAnnotation returns a user-locked annotation to auto provenance so the
// next sync pass re-classifies it. The other fields are kept.
func (db *DB) UnlockAnnotation(ctx context.Context, eventKey string) error {
	res, err := db.conn.ExecContext(ctx, `
	UPDATE event_annotations SET provenance = 'auto', updated_at = ?
	WHERE event_key = ?
	`, formatTime(time.Now()), eventKey)
	if err != nil {
		return fmt.Errorf("failed to unlock annotation %s: %w", eventKey, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("annotation %s: %w", eventKey, ErrNotFound)
	}
	return nil
}

// ListAnnotations returns annotations ordered by event key. With lockedOnly
// only user-locked rows are returned.
func (db *DB) ListAnnotations(ctx context.Context, lockedOnly bool) ([]*schema.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM event_annotations`
	if lockedOnly {
		query += ` WHERE provenance = 'user'`
	}
	query += ` ORDER BY event_key`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	var anns []*schema.Annotation
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		anns = append(anns, ann)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotations: %w", err)
	}
	return anns, nil
}

// RestoreAnnotation writes an annotation verbatim, including provenance and
// timestamp. Used by backup restore.
func (db *DB) RestoreAnnotation(ctx context.Context, ann *schema.Annotation) error {
	if err := ann.Validate(); err != nil {
		return fmt.Errorf("invalid annotation: %w", err)
	}
	if ann.UpdatedAt.IsZero() {
		ann.UpdatedAt = time.Now()
	}
	return putAnnotation(ctx, db.conn, ann)
}

func getAnnotation(ctx context.Context, q querier, eventKey string) (*schema.Annotation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+annotationColumns+` FROM event_annotations WHERE event_key = ?`, eventKey)
	ann, err := scanAnnotation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annotation %s: %w", eventKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation %s: %w", eventKey, err)
	}
	return ann, nil
}

func putAnnotation(ctx context.Context, ex execer, ann *schema.Annotation) error {
	_, err := ex.ExecContext(ctx, `
	INSERT INTO event_annotations (event_key, category, is_major, project_id, notes_url, provenance, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(event_key) DO UPDATE SET
		category = excluded.category,
		is_major = excluded.is_major,
		project_id = excluded.project_id,
		notes_url = excluded.notes_url,
		provenance = excluded.provenance,
		updated_at = excluded.updated_at
	`,
		ann.EventKey,
		string(ann.Category),
		boolToInt(ann.IsMajor),
		nullString(ann.ProjectID),
		nullString(ann.NotesURL),
		string(ann.Provenance),
		formatTime(ann.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to write annotation %s: %w", ann.EventKey, err)
	}
	return nil
}

func scanAnnotation(s scanner) (*schema.Annotation, error) {
	var ann schema.Annotation
	var category, provenance, updatedAt string
	var isMajor int
	var projectID, notesURL sql.NullString
	if err := s.Scan(&ann.EventKey, &category, &isMajor, &projectID, &notesURL, &provenance, &updatedAt); err != nil {
		return nil, err
	}
	ann.Category = schema.Category(category)
	ann.IsMajor = isMajor != 0
	ann.ProjectID = projectID.String
	ann.NotesURL = notesURL.String
	ann.Provenance = schema.Provenance(provenance)
	ann.UpdatedAt = parseTime(updatedAt)
	return &ann, nil
}
