// Package loadtest exercises the store under concurrent sync passes, user
// edits and dashboard reads.
//
// It checks two things: that reads stay fast while pages are being written,
// and that a user edit made while a sync pass is rewriting the same events is
// never overwritten (the lock is monotonic with respect to reconciliation).
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/classify"
	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// CalendarID is the calendar all generated events belong to.
const CalendarID = "loadtest@example.com"

// PageSize is how many events each simulated provider page carries.
const PageSize = 250

// TestDatabase represents a populated test database for load testing.
type TestDatabase struct {
	DB        *db.DB
	EventKeys []string
	pages     [][]db.EventWrite
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
}

// ContentionResult describes a RunEditsDuringSync run.
type ContentionResult struct {
	Passes int
	Edits  int
	// Pages holds ApplyEventPage latencies.
	Pages *LatencyStats
	// Locked is the number of distinct events edited.
	Locked int
}

var titles = []string{
	"Sam's birthday", "Flight to Lisbon", "Dinner with Alex", "Dentist",
	"Wedding anniversary", "Team lunch", "Christmas party", "Hotel check-in",
	"Standup", "Easter brunch",
}

// CreateTestDatabase creates a database holding numEvents events in one
// calendar, classified and written in provider-sized pages.
func CreateTestDatabase(dbPath string, numEvents int) (*TestDatabase, error) {
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	td := &TestDatabase{DB: database, EventKeys: make([]string, 0, numEvents)}
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	var page []db.EventWrite
	for i := 0; i < numEvents; i++ {
		title := titles[i%len(titles)]
		start := base.Add(time.Duration(i) * 3 * time.Hour)
		ev := &schema.Event{
			Key:        schema.EventKey(CalendarID, fmt.Sprintf("evt-%05d", i)),
			CalendarID: CalendarID,
			RemoteID:   fmt.Sprintf("evt-%05d", i),
			Title:      title,
			Start:      start.Format(time.RFC3339),
			End:        start.Add(time.Hour).Format(time.RFC3339),
			Status:     schema.StatusConfirmed,
		}
		page = append(page, db.EventWrite{Event: ev, Category: classify.Classify(classify.Input{Title: title})})
		td.EventKeys = append(td.EventKeys, ev.Key)
		if len(page) == PageSize {
			td.pages = append(td.pages, page)
			page = nil
		}
	}
	if len(page) > 0 {
		td.pages = append(td.pages, page)
	}

	ctx := context.Background()
	for _, p := range td.pages {
		if _, err := database.ApplyEventPage(ctx, p); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to write page: %w", err)
		}
	}
	return td, nil
}

// Close closes the test database connection.
func (td *TestDatabase) Close() error {
	if td.DB != nil {
		return td.DB.Close()
	}
	return nil
}

// RunConcurrentQueries simulates numReaders dashboard clients listing events.
func (td *TestDatabase) RunConcurrentQueries(numReaders, queriesPerReader int) (*LatencyStats, error) {
	var wg sync.WaitGroup
	resultsChan := make(chan []time.Duration, numReaders)
	errorsChan := make(chan error, numReaders)

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()
			durations := make([]time.Duration, 0, queriesPerReader)
			ctx := context.Background()
			for j := 0; j < queriesPerReader; j++ {
				start := time.Now()
				_, err := td.DB.ListEvents(ctx, db.EventFilter{From: "2026-01-01", To: "2026-03-01", Limit: 500})
				durations = append(durations, time.Since(start))
				if err != nil {
					errorsChan <- fmt.Errorf("reader %d query %d failed: %w", reader, j, err)
					return
				}
			}
			resultsChan <- durations
		}(i)
	}
	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var all []time.Duration
	for d := range resultsChan {
		all = append(all, d...)
	}
	errCount := 0
	var firstErr error
	for err := range errorsChan {
		if firstErr == nil {
			firstErr = err
		}
		errCount++
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no successful queries completed: %w", firstErr)
	}
	stats := computeLatencyStats(all)
	stats.Errors = errCount
	return stats, nil
}

// RunEditsDuringSync replays every page passes times while editors goroutines
// lock random events to CategoryAdmin, then verifies that every edited event
// still carries the user's category and lock.
func (td *TestDatabase) RunEditsDuringSync(ctx context.Context, editors, passes int) (*ContentionResult, error) {
	done := make(chan struct{})

	var (
		mu       sync.Mutex
		edited   = make(map[string]bool)
		edits    int
		pageDurs []time.Duration
		errs     = make(chan error, editors+1)
		wg       sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for p := 0; p < passes; p++ {
			for _, page := range td.pages {
				start := time.Now()
				if _, err := td.DB.ApplyEventPage(ctx, page); err != nil {
					errs <- fmt.Errorf("sync pass %d failed: %w", p, err)
					return
				}
				mu.Lock()
				pageDurs = append(pageDurs, time.Since(start))
				mu.Unlock()
			}
		}
	}()

	admin := schema.CategoryAdmin
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(editor int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(editor) + 1))
			for {
				key := td.EventKeys[rng.Intn(len(td.EventKeys))]
				if _, err := td.DB.SetAnnotation(ctx, key, schema.AnnotationPatch{Category: &admin}); err != nil {
					errs <- fmt.Errorf("editor %d failed on %s: %w", editor, key, err)
					return
				}
				mu.Lock()
				edited[key] = true
				edits++
				mu.Unlock()

				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-time.After(time.Millisecond):
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}

	for key := range edited {
		ann, err := td.DB.GetAnnotation(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !ann.Locked() || ann.Category != schema.CategoryAdmin {
			return nil, fmt.Errorf("user edit on %s lost: category %s, provenance %s", key, ann.Category, ann.Provenance)
		}
	}

	return &ContentionResult{
		Passes: passes,
		Edits:  edits,
		Pages:  computeLatencyStats(pageDurs),
		Locked: len(edited),
	}, nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(durations)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(durations),
	}
}

// PrintStats writes latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "  Total:         %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
