// Package registry keeps the local calendar list in step with the remote
// account and owns the selected-calendar set.
package registry

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// MaxCalendars is the page size used when listing remote calendars.
const MaxCalendars = 250

// Store is the subset of the row store the registry needs.
type Store interface {
	UpsertCalendar(ctx context.Context, cal *schema.Calendar) error
	ListCalendars(ctx context.Context) ([]*schema.Calendar, error)
	GetSettings(ctx context.Context) (*schema.Settings, error)
	SetSelectedCalendars(ctx context.Context, ids []string) error
	SyncSelectionFlags(ctx context.Context, ids []string) error
}

// Registry refreshes calendars and manages selection.
type Registry struct {
	store    Store
	provider provider.Provider
	logger   *log.Logger
	now      func() time.Time
}

// New creates a Registry. A nil logger writes to stderr.
func New(store Store, p provider.Provider, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(os.Stderr, "[registry] ", log.LstdFlags)
	}
	return &Registry{store: store, provider: p, logger: logger, now: time.Now}
}

// IsHolidayCalendar reports whether a calendar name looks like Google's UK
// public holiday calendar.
func IsHolidayCalendar(summary string) bool {
	s := strings.ToLower(summary)
	return strings.Contains(s, "holidays in united kingdom") ||
		(strings.Contains(s, "holidays") && strings.Contains(s, "united kingdom")) ||
		strings.Contains(s, "uk holidays")
}

// Refresh pulls the remote calendar list, upserts it and applies the
// selection policy:
//
//   - empty persisted selection: select every primary or holiday calendar
//     and persist that as the selection
//   - otherwise: the persisted selection is authoritative and calendar
//     flags are reset to match it
//
// It returns every known calendar, primary first, then holiday calendars,
// then by name. Calendars missing from the remote list are kept.
func (r *Registry) Refresh(ctx context.Context) ([]*schema.Calendar, error) {
	remote, err := r.provider.ListCalendars(ctx, MaxCalendars)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote calendars: %w", err)
	}

	now := r.now()
	upserted := 0
	for _, rc := range remote {
		if rc.ID == "" {
			continue
		}
		summary := rc.Summary
		if summary == "" {
			summary = rc.ID
		}
		cal := &schema.Calendar{
			ID:        rc.ID,
			Summary:   summary,
			Primary:   rc.Primary,
			Holiday:   IsHolidayCalendar(summary),
			UpdatedAt: now,
		}
		if err := r.store.UpsertCalendar(ctx, cal); err != nil {
			return nil, err
		}
		upserted++
	}

	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if len(settings.SelectedCalendarIDs) == 0 {
		cals, err := r.store.ListCalendars(ctx)
		if err != nil {
			return nil, err
		}
		ids := DefaultSelection(cals)
		if err := r.store.SetSelectedCalendars(ctx, ids); err != nil {
			return nil, err
		}
		r.logger.Printf("Defaulted selection to %d calendar(s)", len(ids))
	} else if err := r.store.SyncSelectionFlags(ctx, settings.SelectedCalendarIDs); err != nil {
		return nil, err
	}

	cals, err := r.store.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Printf("Refreshed %d remote calendar(s), %d known", upserted, len(cals))
	return cals, nil
}

// Select replaces the persisted selection. Ids are de-duplicated and must
// name known calendars.
func (r *Registry) Select(ctx context.Context, ids []string) error {
	cals, err := r.store.ListCalendars(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(cals))
	for _, c := range cals {
		known[c.ID] = true
	}

	seen := make(map[string]bool, len(ids))
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if !known[id] {
			return fmt.Errorf("unknown calendar %q (run 'pd calendars refresh')", id)
		}
		seen[id] = true
		clean = append(clean, id)
	}
	return r.store.SetSelectedCalendars(ctx, clean)
}

// DefaultSelection returns the ids of primary and holiday calendars in order.
func DefaultSelection(cals []*schema.Calendar) []string {
	ids := []string{}
	for _, c := range cals {
		if c.Primary || c.Holiday {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
