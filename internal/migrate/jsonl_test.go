package migrate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func lock(t *testing.T, store *db.DB, key string, cat schema.Category, notes string) {
	t.Helper()
	if _, err := store.SetAnnotation(context.Background(), key, schema.AnnotationPatch{
		Category: &cat,
		NotesURL: &notes,
	}); err != nil {
		t.Fatalf("SetAnnotation(%s) failed: %v", key, err)
	}
}

func TestReadJSONL(t *testing.T) {
	input := `{"event_key":"primary:a","category":"travel","provenance":"user"}

{"event_key":"primary:b","category":"social","is_major":true,"provenance":"user"}
`
	anns, err := ReadJSONL(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadJSONL() failed: %v", err)
	}
	if len(anns) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(anns))
	}
	if anns[1].EventKey != "primary:b" || !anns[1].IsMajor {
		t.Errorf("second annotation = %+v", anns[1])
	}

	_, err = ReadJSONL(strings.NewReader("{\"event_key\":\"x:y\"}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("ReadJSONL() error = %v, want line 2", err)
	}
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	src := setupTestDB(t)
	lock(t, src, "primary:a", schema.CategoryTravel, "https://docs.example/a")
	lock(t, src, "primary:b", schema.CategoryBirthday, "")

	// Auto annotations are rebuilt by sync and stay out of the backup.
	ev := &schema.Event{
		Key: schema.EventKey("primary", "c"), CalendarID: "primary", RemoteID: "c",
		Title: "Lunch", Start: "2026-03-01", Status: schema.StatusConfirmed,
	}
	if _, err := src.ApplyEventPage(ctx, []db.EventWrite{{Event: ev, Category: schema.CategorySocial}}); err != nil {
		t.Fatalf("ApplyEventPage() failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "backups", "annotations.jsonl")
	n, err := Backup(ctx, src, path)
	if err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Backup() wrote %d, want 2", n)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("backup permissions = %o, want 600", perm)
	}

	dst := setupTestDB(t)
	res, err := Restore(ctx, dst, path, RestoreOptions{})
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if res.Read != 2 || res.Restored != 2 || len(res.Errors) != 0 {
		t.Errorf("Restore() = %+v", res)
	}

	want, _ := src.ListAnnotations(ctx, true)
	got, _ := dst.ListAnnotations(ctx, true)
	ignoreTime := func(anns []*schema.Annotation) []schema.Annotation {
		out := make([]schema.Annotation, len(anns))
		for i, a := range anns {
			out[i] = *a
			out[i].UpdatedAt = time.Time{}
		}
		return out
	}
	if diff := cmp.Diff(ignoreTime(want), ignoreTime(got)); diff != "" {
		t.Errorf("restored annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestRestore_KeepTimestamps(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, []*schema.Annotation{{
		EventKey:   "primary:xmas",
		Category:   schema.CategoryChristmas,
		Provenance: schema.ProvenanceAuto,
		UpdatedAt:  stamp,
	}}); err != nil {
		t.Fatalf("WriteJSONL() failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "a.jsonl")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	store := setupTestDB(t)
	if _, err := Restore(ctx, store, path, RestoreOptions{KeepTimestamps: true}); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	ann, err := store.GetAnnotation(ctx, "primary:xmas")
	if err != nil {
		t.Fatalf("GetAnnotation() failed: %v", err)
	}
	if !ann.Locked() {
		t.Error("restored annotation should be locked")
	}
	if !ann.UpdatedAt.Equal(stamp) {
		t.Errorf("UpdatedAt = %v, want %v", ann.UpdatedAt, stamp)
	}
}

func TestRestore_DryRunAndInvalidRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "a.jsonl")
	data := `{"event_key":"primary:a","category":"travel"}
{"event_key":"nokey","category":"travel"}
{"event_key":"primary:c","category":"bogus"}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	store := setupTestDB(t)
	res, err := Restore(ctx, store, path, RestoreOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if res.Read != 3 || res.Restored != 1 || len(res.Errors) != 2 {
		t.Errorf("Restore() = %+v, want 3 read, 1 restored, 2 errors", res)
	}
	anns, _ := store.ListAnnotations(ctx, false)
	if len(anns) != 0 {
		t.Errorf("dry run wrote %d annotations", len(anns))
	}
}

func TestRestore_MissingFile(t *testing.T) {
	if _, err := Restore(context.Background(), setupTestDB(t), "/nonexistent/path.jsonl", RestoreOptions{}); err == nil {
		t.Error("expected error for nonexistent file")
	}
}
