package loadtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

func TestCreateTestDatabase(t *testing.T) {
	td, err := CreateTestDatabase(filepath.Join(t.TempDir(), "test.db"), 600)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer td.Close()

	if len(td.EventKeys) != 600 {
		t.Errorf("Expected 600 events, got %d", len(td.EventKeys))
	}
	if len(td.pages) != 3 {
		t.Errorf("Expected 3 pages, got %d", len(td.pages))
	}

	records, err := td.DB.ListEvents(context.Background(), db.EventFilter{Category: schema.CategoryBirthday, Limit: 1000})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(records) != 60 {
		t.Errorf("Expected 60 birthday events, got %d", len(records))
	}
}

func TestConcurrentQueries_Small(t *testing.T) {
	td, err := CreateTestDatabase(filepath.Join(t.TempDir(), "test.db"), 300)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer td.Close()

	stats, err := td.RunConcurrentQueries(10, 5)
	if err != nil {
		t.Fatalf("Concurrent queries failed: %v", err)
	}
	if stats.Errors > 0 {
		t.Errorf("Got %d errors during queries", stats.Errors)
	}
	if stats.TotalQueries != 50 {
		t.Errorf("Expected 50 total queries, got %d", stats.TotalQueries)
	}
	stats.PrintStats(os.Stdout)
}

func TestEditsDuringSync_LocksSurvive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping contention test in short mode")
	}
	td, err := CreateTestDatabase(filepath.Join(t.TempDir(), "test.db"), 500)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer td.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := td.RunEditsDuringSync(ctx, 4, 3)
	if err != nil {
		t.Fatalf("RunEditsDuringSync() failed: %v", err)
	}
	if res.Edits == 0 || res.Locked == 0 {
		t.Errorf("no edits were made: %+v", res)
	}
	if res.Pages.TotalQueries != 3*len(td.pages) {
		t.Errorf("applied %d pages, want %d", res.Pages.TotalQueries, 3*len(td.pages))
	}

	// Only edited events are locked.
	locked, err := td.DB.ListAnnotations(context.Background(), true)
	if err != nil {
		t.Fatalf("ListAnnotations() failed: %v", err)
	}
	if len(locked) != res.Locked {
		t.Errorf("%d locked annotations, want %d", len(locked), res.Locked)
	}
	t.Logf("%d edits on %d events across %d passes", res.Edits, res.Locked, res.Passes)
}

func TestComputeLatencyStats(t *testing.T) {
	var ds []time.Duration
	for i := 1; i <= 100; i++ {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}
	s := computeLatencyStats(ds)
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", s.Min, s.Max)
	}
	if s.P50 != 51*time.Millisecond || s.P99 != 100*time.Millisecond {
		t.Errorf("p50/p99 = %v/%v", s.P50, s.P99)
	}
	if empty := computeLatencyStats(nil); *empty != (LatencyStats{}) {
		t.Error("empty input should give zero stats")
	}
}
