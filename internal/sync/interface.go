package sync

import (
	"context"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// Syncer reconciles the local mirror with the remote calendar account.
type Syncer interface {
	// SyncAll syncs every selected calendar and records the batch's
	// last-sync time. Per-calendar failures are returned joined as
	// *CalendarError values alongside a report with partial counts;
	// provider.ErrNotConnected aborts the whole batch.
	//
	// Example:
	//   report, err := engine.SyncAll(ctx)
	SyncAll(ctx context.Context) (*Report, error)

	// SyncCalendar runs one calendar's attempt outside a batch.
	SyncCalendar(ctx context.Context, calendarID string) (*CalendarReport, error)
}

// Store is the row store surface the engine reads and writes.
// *db.DB implements it.
type Store interface {
	GetSettings(ctx context.Context) (*schema.Settings, error)
	GetCalendar(ctx context.Context, id string) (*schema.Calendar, error)
	GetSyncState(ctx context.Context, calendarID string) (*schema.SyncState, error)
	PutSyncState(ctx context.Context, st *schema.SyncState) error
	ApplyEventPage(ctx context.Context, writes []db.EventWrite) (db.PageResult, error)
	SetLastSyncAt(ctx context.Context, t time.Time) error
}

// Observer receives progress callbacks. Callbacks may arrive from several
// goroutines when Config.Concurrency > 1.
type Observer interface {
	SyncStarted(calendarIDs []string)
	CalendarSynced(report CalendarReport)
	SyncComplete(report *Report)
}

// Observers fans callbacks out to several observers.
type Observers []Observer

func (o Observers) SyncStarted(ids []string) {
	for _, obs := range o {
		obs.SyncStarted(ids)
	}
}

func (o Observers) CalendarSynced(r CalendarReport) {
	for _, obs := range o {
		obs.CalendarSynced(r)
	}
}

func (o Observers) SyncComplete(r *Report) {
	for _, obs := range o {
		obs.SyncComplete(r)
	}
}
