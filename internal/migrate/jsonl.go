// Package migrate backs up and restores user-locked annotations as JSONL.
//
// Annotations are the only state in the mirror that cannot be rebuilt from
// the calendar provider, so they are what a backup has to carry. One JSON
// object per line, ordered by event key:
//
//	{"event_key":"primary:evt1","category":"travel","is_major":true,"provenance":"user","updated_at":"..."}
package migrate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// Store is the subset of *db.DB used by backup and restore.
type Store interface {
	ListAnnotations(ctx context.Context, lockedOnly bool) ([]*schema.Annotation, error)
	SetAnnotation(ctx context.Context, eventKey string, patch schema.AnnotationPatch) (*schema.Annotation, error)
	RestoreAnnotation(ctx context.Context, ann *schema.Annotation) error
}

// RestoreOptions configures Restore.
type RestoreOptions struct {
	DryRun bool // Parse and validate without writing
	// KeepTimestamps writes updated_at from the backup instead of now.
	KeepTimestamps bool
}

// RestoreResult contains statistics about a restore.
type RestoreResult struct {
	Read     int
	Restored int
	Errors   []string
}

// WriteJSONL writes annotations to w, one per line.
func WriteJSONL(w io.Writer, anns []*schema.Annotation) error {
	enc := json.NewEncoder(w)
	for _, ann := range anns {
		if err := enc.Encode(ann); err != nil {
			return fmt.Errorf("failed to encode annotation %s: %w", ann.EventKey, err)
		}
	}
	return nil
}

// ReadJSONL parses annotations from r. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]*schema.Annotation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var anns []*schema.Annotation
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ann schema.Annotation
		if err := json.Unmarshal(line, &ann); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		anns = append(anns, &ann)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}
	return anns, nil
}

// Backup writes every user-locked annotation to path and returns how many
// were written. The file is replaced atomically.
func Backup(ctx context.Context, store Store, path string) (int, error) {
	anns, err := store.ListAnnotations(ctx, true)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create backup directory: %w", err)
	}
	tmpPath := path + ".tmp"
	// #nosec G304 - controlled path from CLI
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	err = WriteJSONL(w, anns)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}
	return len(anns), nil
}

// Restore reads a backup from path and applies every annotation as a user
// edit, so each restored row is locked. Invalid rows are reported in the
// result and skipped; a store error stops the restore.
func Restore(ctx context.Context, store Store, path string, opts RestoreOptions) (*RestoreResult, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer file.Close()

	anns, err := ReadJSONL(file)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Read: len(anns)}
	for _, ann := range anns {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := validate(ann); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ann.EventKey, err))
			continue
		}
		if opts.DryRun {
			result.Restored++
			continue
		}
		if err := apply(ctx, store, ann, opts.KeepTimestamps); err != nil {
			return result, fmt.Errorf("failed to restore %s: %w", ann.EventKey, err)
		}
		result.Restored++
	}
	return result, nil
}

func validate(ann *schema.Annotation) error {
	if _, _, err := schema.SplitEventKey(ann.EventKey); err != nil {
		return err
	}
	if !ann.Category.IsValid() {
		return fmt.Errorf("%w: %q", schema.ErrInvalidCategory, ann.Category)
	}
	return nil
}

func apply(ctx context.Context, store Store, ann *schema.Annotation, keepTimestamps bool) error {
	if keepTimestamps && !ann.UpdatedAt.IsZero() {
		locked := *ann
		locked.Provenance = schema.ProvenanceUser
		return store.RestoreAnnotation(ctx, &locked)
	}
	cat, major, project, notes := ann.Category, ann.IsMajor, ann.ProjectID, ann.NotesURL
	_, err := store.SetAnnotation(ctx, ann.EventKey, schema.AnnotationPatch{
		Category:  &cat,
		IsMajor:   &major,
		ProjectID: &project,
		NotesURL:  &notes,
	})
	return err
}

