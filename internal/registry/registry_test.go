package registry

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/provider/fake"
)

func setupTest(t *testing.T) (*db.DB, *fake.Provider, *Registry) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	p := fake.New()
	return store, p, New(store, p, log.New(io.Discard, "", 0))
}

func calendarIDs(t *testing.T, store *db.DB, selectedOnly bool) []string {
	t.Helper()
	cals, err := store.ListCalendars(context.Background())
	if err != nil {
		t.Fatalf("ListCalendars() failed: %v", err)
	}
	ids := []string{}
	for _, c := range cals {
		if !selectedOnly || c.Selected {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func TestIsHolidayCalendar(t *testing.T) {
	tests := map[string]bool{
		"Holidays in United Kingdom": true,
		"UK Holidays":                true,
		"United Kingdom - Holidays":  true,
		"Holidays in France":         false,
		"Personal":                   false,
		"":                           false,
	}
	for summary, want := range tests {
		if got := IsHolidayCalendar(summary); got != want {
			t.Errorf("IsHolidayCalendar(%q) = %v, want %v", summary, got, want)
		}
	}
}

func TestRefresh_DefaultSelection(t *testing.T) {
	store, p, reg := setupTest(t)
	ctx := context.Background()

	p.AddCalendar(provider.Calendar{ID: "A", Summary: "Me", Primary: true})
	p.AddCalendar(provider.Calendar{ID: "B", Summary: "Holidays in United Kingdom"})
	p.AddCalendar(provider.Calendar{ID: "C", Summary: "Work"})

	cals, err := reg.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if len(cals) != 3 {
		t.Fatalf("got %d calendars, want 3", len(cals))
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, settings.SelectedCalendarIDs); diff != "" {
		t.Errorf("persisted selection mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B"}, calendarIDs(t, store, true)); diff != "" {
		t.Errorf("selected flags mismatch (-want +got):\n%s", diff)
	}
}

func TestRefresh_PersistedSelectionAuthoritative(t *testing.T) {
	store, p, reg := setupTest(t)
	ctx := context.Background()

	p.AddCalendar(provider.Calendar{ID: "A", Summary: "Me", Primary: true})
	p.AddCalendar(provider.Calendar{ID: "C", Summary: "Work"})
	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if err := reg.Select(ctx, []string{"C", "C"}); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	// A second refresh must not re-apply the default.
	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"C"}, calendarIDs(t, store, true)); diff != "" {
		t.Errorf("selected flags mismatch (-want +got):\n%s", diff)
	}

	if err := reg.Select(ctx, []string{"missing"}); err == nil {
		t.Error("expected error selecting unknown calendar")
	}
}

func TestRefresh_OrderAndSummaryFallback(t *testing.T) {
	store, p, reg := setupTest(t)
	ctx := context.Background()

	p.AddCalendar(provider.Calendar{ID: "zz-no-name"})
	p.AddCalendar(provider.Calendar{ID: "hol", Summary: "UK Holidays"})
	p.AddCalendar(provider.Calendar{ID: "me", Summary: "Me", Primary: true})
	p.AddCalendar(provider.Calendar{ID: "b", Summary: "Book club"})

	cals, err := reg.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	var ids []string
	for _, c := range cals {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"me", "hol", "b", "zz-no-name"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	nameless, err := store.GetCalendar(ctx, "zz-no-name")
	if err != nil {
		t.Fatalf("GetCalendar() failed: %v", err)
	}
	if nameless.Summary != "zz-no-name" {
		t.Errorf("Summary = %q, want id fallback", nameless.Summary)
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	store, p, reg := setupTest(t)
	ctx := context.Background()

	p.AddCalendar(provider.Calendar{ID: "A", Summary: "Me", Primary: true})
	p.AddCalendar(provider.Calendar{ID: "B", Summary: "Holidays in United Kingdom"})

	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh() failed: %v", err)
	}
	first := calendarIDs(t, store, true)
	if _, err := reg.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh() failed: %v", err)
	}
	if diff := cmp.Diff(first, calendarIDs(t, store, true)); diff != "" {
		t.Errorf("selection changed on second refresh (-first +second):\n%s", diff)
	}
}
