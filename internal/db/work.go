package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// StatusAll disables status filtering in ListProjects and ListActions.
const StatusAll = "all"

// ActionFilter configures ListActions.
type ActionFilter struct {
	// Status filters by action status (empty = open, StatusAll = all)
	Status string
	// ParentType and ParentID restrict to one parent; both must be set
	ParentType string
	ParentID   string
	// Limit restricts the number of results (0 = DefaultEventLimit)
	Limit int
}

const projectColumns = `id, name, status, priority, target_date, description, tags,
	drive_folder_url, key_doc_urls, created_at, updated_at`

const actionColumns = `id, title, status, priority, start_at, due_at, snooze_until, tags,
	parent_type, parent_id, reference_url, checklist, created_at, updated_at`

// SaveProject inserts or replaces a project. Defaults are applied first.
func (db *DB) SaveProject(ctx context.Context, p *schema.Project) error {
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	docs, err := json.Marshal(p.KeyDocURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal key doc urls: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
	INSERT INTO projects (`+projectColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		status = excluded.status,
		priority = excluded.priority,
		target_date = excluded.target_date,
		description = excluded.description,
		tags = excluded.tags,
		drive_folder_url = excluded.drive_folder_url,
		key_doc_urls = excluded.key_doc_urls,
		updated_at = excluded.updated_at
	`,
		p.ID, strings.TrimSpace(p.Name), p.Status, p.Priority,
		nullString(p.TargetDate), nullString(p.Description), string(tags),
		nullString(p.DriveFolderURL), string(docs),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}
	return nil
}

// GetProject returns a project with its open action count, or ErrNotFound.
func (db *DB) GetProject(ctx context.Context, id string) (*schema.Project, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+projectColumns+`, `+openActionsExpr+`
	FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return p, nil
}

const openActionsExpr = `(SELECT COUNT(*) FROM actions a
	WHERE a.parent_type = 'project' AND a.parent_id = projects.id AND a.status = 'open')`

// ListProjects returns projects with the given status (empty = active,
// StatusAll = all), highest priority first, most recently updated next.
func (db *DB) ListProjects(ctx context.Context, status string) ([]*schema.Project, error) {
	if status == "" {
		status = schema.ProjectActive
	}
	query := `SELECT ` + projectColumns + `, ` + openActionsExpr + ` FROM projects`
	var args []any
	if status != StatusAll {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'med' THEN 1 ELSE 2 END, updated_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*schema.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes a project. Idempotent.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

// SaveAction inserts or replaces an action. Defaults are applied first.
func (db *DB) SaveAction(ctx context.Context, a *schema.Action) error {
	a.SetDefaults()
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	checklist, err := json.Marshal(a.Checklist)
	if err != nil {
		return fmt.Errorf("failed to marshal checklist: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
	INSERT INTO actions (`+actionColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		status = excluded.status,
		priority = excluded.priority,
		start_at = excluded.start_at,
		due_at = excluded.due_at,
		snooze_until = excluded.snooze_until,
		tags = excluded.tags,
		parent_type = excluded.parent_type,
		parent_id = excluded.parent_id,
		reference_url = excluded.reference_url,
		checklist = excluded.checklist,
		updated_at = excluded.updated_at
	`,
		a.ID, strings.TrimSpace(a.Title), a.Status, a.Priority,
		nullString(a.StartAt), nullString(a.DueAt), nullString(a.SnoozeUntil), string(tags),
		nullString(a.ParentType), nullString(a.ParentID), nullString(a.ReferenceURL), string(checklist),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save action %s: %w", a.ID, err)
	}
	return nil
}

// GetAction returns an action, or ErrNotFound.
func (db *DB) GetAction(ctx context.Context, id string) (*schema.Action, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action %s: %w", id, err)
	}
	return a, nil
}

// ListActions returns actions ordered by due date (undated last), newest
// first within the same due date.
func (db *DB) ListActions(ctx context.Context, filter ActionFilter) ([]*schema.Action, error) {
	var conditions []string
	var args []any

	status := filter.Status
	if status == "" {
		status = schema.ActionOpen
	}
	if status != StatusAll {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}
	if filter.ParentType != "" && filter.ParentID != "" {
		conditions = append(conditions, "parent_type = ? AND parent_id = ?")
		args = append(args, filter.ParentType, filter.ParentID)
	}

	query := `SELECT ` + actionColumns + ` FROM actions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY CASE WHEN due_at IS NULL THEN 1 ELSE 0 END, due_at ASC, created_at DESC, id LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*schema.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}
	return actions, nil
}

// DeleteAction removes an action. Idempotent.
func (db *DB) DeleteAction(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete action %s: %w", id, err)
	}
	return nil
}

func scanProject(s scanner) (*schema.Project, error) {
	var p schema.Project
	var target, description, tags, drive, docs sql.NullString
	var createdAt, updatedAt string
	err := s.Scan(&p.ID, &p.Name, &p.Status, &p.Priority, &target, &description, &tags,
		&drive, &docs, &createdAt, &updatedAt, &p.OpenActions)
	if err != nil {
		return nil, err
	}
	p.TargetDate = target.String
	p.Description = description.String
	p.DriveFolderURL = drive.String
	p.Tags = decodeStrings(tags)
	p.KeyDocURLs = decodeStrings(docs)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func scanAction(s scanner) (*schema.Action, error) {
	var a schema.Action
	var startAt, dueAt, snooze, tags, parentType, parentID, ref, checklist sql.NullString
	var createdAt, updatedAt string
	err := s.Scan(&a.ID, &a.Title, &a.Status, &a.Priority, &startAt, &dueAt, &snooze, &tags,
		&parentType, &parentID, &ref, &checklist, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.StartAt = startAt.String
	a.DueAt = dueAt.String
	a.SnoozeUntil = snooze.String
	a.ParentType = parentType.String
	a.ParentID = parentID.String
	a.ReferenceURL = ref.String
	a.Tags = decodeStrings(tags)
	a.Checklist = decodeStrings(checklist)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// decodeStrings parses a JSON string array column, tolerating bad data.
func decodeStrings(ns sql.NullString) []string {
	out := []string{}
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return out
	}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return []string{}
	}
	return out
}
