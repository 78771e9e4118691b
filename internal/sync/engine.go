package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/personal-dash/internal/classify"
	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

const (
	// DefaultLookBehind is how far before now a fresh window starts.
	DefaultLookBehind = 30 * 24 * time.Hour
	// DefaultMaxWindowAge is how long after its start a window may be reused.
	DefaultMaxWindowAge = 7 * 24 * time.Hour
	// DefaultPageSize is the maxResults sent with every page request.
	DefaultPageSize = 2500
)

// Config tunes the engine.
type Config struct {
	// Concurrency bounds how many calendars sync at once (default 1).
	Concurrency int
	// PageSize is the provider page size (default 2500).
	PageSize int
	// LookBehind sets a fresh window's start relative to now.
	LookBehind time.Duration
	// MaxWindowAge forces a rollover once now - windowStart exceeds it.
	MaxWindowAge time.Duration
	// Observer receives progress callbacks (optional).
	Observer Observer
	// Now overrides the clock (optional).
	Now func() time.Time
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:  1,
		PageSize:     DefaultPageSize,
		LookBehind:   DefaultLookBehind,
		MaxWindowAge: DefaultMaxWindowAge,
	}
}

func (c *Config) normalize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.LookBehind <= 0 {
		c.LookBehind = DefaultLookBehind
	}
	if c.MaxWindowAge <= 0 {
		c.MaxWindowAge = DefaultMaxWindowAge
	}
	if c.Observer == nil {
		c.Observer = Observers(nil)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Engine is the reconciliation engine.
type Engine struct {
	store    Store
	provider provider.Provider
	cfg      Config
	logger   *log.Logger

	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

var _ Syncer = (*Engine)(nil)

// New creates an Engine.
//
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	store, err := db.Open(path)
//	if err != nil {
//	    return err
//	}
//	engine := sync.New(store, client, sync.DefaultConfig(), nil)
func New(store Store, p provider.Provider, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	cfg.normalize()
	return &Engine{
		store:    store,
		provider: p,
		cfg:      cfg,
		logger:   logger,
		locks:    make(map[string]*stdsync.Mutex),
	}
}

// DefaultWindow returns a fresh query window [now-lookBehind, now+horizonDays).
func DefaultWindow(now time.Time, horizonDays int, lookBehind time.Duration) (time.Time, time.Time) {
	return now.Add(-lookBehind), now.AddDate(0, 0, horizonDays)
}

// NeedsRollover reports whether the stored cursor must be discarded in
// favour of a fresh window and a full query: no state or token, a window
// older than maxAge, or a window that has already elapsed.
func NeedsRollover(st *schema.SyncState, now time.Time, maxAge time.Duration) bool {
	if st == nil || st.Token == "" {
		return true
	}
	return now.Sub(st.WindowStart) > maxAge || now.After(st.WindowEnd)
}

// ToEvent converts a provider item into a stored event for calendarID.
func ToEvent(calendarID string, item provider.Event) *schema.Event {
	status := item.Status
	if status == "" {
		status = schema.StatusConfirmed
	}
	return &schema.Event{
		Key:         schema.EventKey(calendarID, item.ID),
		CalendarID:  calendarID,
		RemoteID:    item.ID,
		ICalUID:     item.ICalUID,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       item.Start.Value(),
		End:         item.End.Value(),
		AllDay:      item.Start.IsDateOnly(),
		Updated:     item.Updated,
		Status:      status,
		Deleted:     status == schema.StatusCancelled,
		Raw:         item.Raw,
	}
}

func (e *Engine) now() time.Time {
	return e.cfg.Now().UTC().Truncate(time.Second)
}

// calendarLock serialises attempts on the same calendar within this process.
func (e *Engine) calendarLock(id string) *stdsync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &stdsync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// SyncAll implements Syncer.SyncAll.
func (e *Engine) SyncAll(ctx context.Context) (*Report, error) {
	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	ids := settings.SelectedCalendarIDs

	e.logger.Printf("Starting sync of %d calendar(s)", len(ids))
	e.cfg.Observer.SyncStarted(ids)

	results := make([]*CalendarReport, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i], errs[i] = e.syncCalendar(gctx, id, settings.HorizonDays)
			if errors.Is(errs[i], provider.ErrNotConnected) {
				return errs[i]
			}
			return nil
		})
	}
	abortErr := g.Wait()

	report := &Report{Calendars: make([]CalendarReport, 0, len(ids))}
	var calErrs []error
	for i, id := range ids {
		if results[i] == nil {
			continue
		}
		report.add(*results[i])
		if errs[i] != nil && !errors.Is(errs[i], provider.ErrNotConnected) {
			calErrs = append(calErrs, &CalendarError{CalendarID: id, Err: errs[i]})
		}
	}

	switch {
	case abortErr != nil:
		e.logger.Printf("WARNING: Sync aborted: %v", abortErr)
		e.cfg.Observer.SyncComplete(report)
		return report, fmt.Errorf("sync aborted: %w", abortErr)
	case ctx.Err() != nil:
		e.cfg.Observer.SyncComplete(report)
		return report, errors.Join(append(calErrs, ctx.Err())...)
	}

	report.LastSyncAt = e.now()
	if err := e.store.SetLastSyncAt(ctx, report.LastSyncAt); err != nil {
		calErrs = append(calErrs, fmt.Errorf("failed to record last sync time: %w", err))
	}

	e.logger.Printf("Sync complete: calendars=%d (failed=%d), upserted=%d, deleted=%d, token_expirations=%d",
		report.CalendarsProcessed, report.CalendarsFailed, report.EventsUpserted,
		report.EventsDeletedMarked, report.TokenExpirations)
	e.cfg.Observer.SyncComplete(report)
	return report, errors.Join(calErrs...)
}

// SyncCalendar implements Syncer.SyncCalendar. Selection is not checked.
func (e *Engine) SyncCalendar(ctx context.Context, calendarID string) (*CalendarReport, error) {
	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	rep, err := e.syncCalendar(ctx, calendarID, settings.HorizonDays)
	if err != nil && !errors.Is(err, provider.ErrNotConnected) {
		err = &CalendarError{CalendarID: calendarID, Err: err}
	}
	return rep, err
}

// attempt carries one calendar's progress through the state machine.
type attempt struct {
	calendarID string
	summary    string
	holiday    bool

	windowStart time.Time
	windowEnd   time.Time
	token       string
	pageToken   string
	fallback    bool
	page        *provider.EventPage

	state  State
	report CalendarReport
}

func (a *attempt) request(pageSize int) provider.ListEventsRequest {
	return provider.ListEventsRequest{
		CalendarID:   a.calendarID,
		TimeMin:      a.windowStart,
		TimeMax:      a.windowEnd,
		SyncToken:    a.token,
		PageToken:    a.pageToken,
		ShowDeleted:  true,
		SingleEvents: true,
		MaxResults:   pageSize,
	}
}

func (e *Engine) syncCalendar(ctx context.Context, calendarID string, horizonDays int) (*CalendarReport, error) {
	lock := e.calendarLock(calendarID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	a := &attempt{calendarID: calendarID, state: StateIdle}
	a.report.CalendarID = calendarID

	err := e.prepare(ctx, a, horizonDays)
	if err != nil {
		a.state = StateFailed
	} else {
		err = e.run(ctx, a)
	}

	a.report.FinalState = a.state
	a.report.Duration = time.Since(started)
	if err != nil {
		a.report.Error = err.Error()
		e.logger.Printf("WARNING: Failed to sync calendar %s: %v", calendarID, err)
	} else {
		e.logger.Printf("Synced calendar %s: pages=%d, upserted=%d, deleted=%d, full=%v",
			calendarID, a.report.Pages, a.report.EventsUpserted, a.report.EventsDeletedMarked, a.report.FullSync)
	}
	e.cfg.Observer.CalendarSynced(a.report)
	return &a.report, err
}

// prepare loads calendar metadata and the cursor, applying the rollover policy.
func (e *Engine) prepare(ctx context.Context, a *attempt, horizonDays int) error {
	cal, err := e.store.GetCalendar(ctx, a.calendarID)
	switch {
	case err == nil:
		a.summary = cal.Summary
		a.holiday = cal.Holiday
	case errors.Is(err, db.ErrNotFound):
		a.summary = a.calendarID
	default:
		return err
	}

	st, err := e.store.GetSyncState(ctx, a.calendarID)
	if errors.Is(err, db.ErrNotFound) {
		st, err = nil, nil
	}
	if err != nil {
		return err
	}

	now := e.now()
	if NeedsRollover(st, now, e.cfg.MaxWindowAge) {
		a.windowStart, a.windowEnd = DefaultWindow(now, horizonDays, e.cfg.LookBehind)
		a.token = ""
		a.report.Rollover = st != nil && st.Token != ""
	} else {
		a.windowStart, a.windowEnd, a.token = st.WindowStart, st.WindowEnd, st.Token
	}
	a.report.FullSync = a.token == ""
	return nil
}

// run drives the attempt from Idle until it returns to Idle or fails.
func (e *Engine) run(ctx context.Context, a *attempt) error {
	sig := SignalStart
	var failure error
	for {
		prev := a.state
		next, err := Transition(a.state, sig)
		if err != nil {
			a.state = StateFailed
			return err
		}
		a.state = next

		switch a.state {
		case StateIdle:
			return nil
		case StateFailed:
			if failure == nil {
				failure = fmt.Errorf("sync failed in %s on %s", prev, sig)
			}
			return failure
		}
		sig, failure = e.step(ctx, a)
	}
}

// step executes the current state and reports its outcome.
func (e *Engine) step(ctx context.Context, a *attempt) (Signal, error) {
	switch a.state {
	case StateFetchPage, StateFullResyncFetch:
		page, err := e.provider.ListEvents(ctx, a.request(e.cfg.PageSize))
		switch {
		case err == nil:
			a.page = page
			a.report.Pages++
			return SignalPageFetched, nil
		case errors.Is(err, provider.ErrTokenExpired):
			if a.fallback {
				return SignalError, fmt.Errorf("token rejected after full resync: %w", err)
			}
			a.fallback = true
			a.token = ""
			a.pageToken = ""
			a.report.TokenExpired = true
			a.report.FullSync = true
			e.logger.Printf("Sync token expired for %s, falling back to full resync", a.calendarID)
			return SignalTokenExpired, nil
		default:
			return SignalError, fmt.Errorf("failed to fetch events: %w", err)
		}

	case StateUpsertBatch:
		writes := make([]db.EventWrite, 0, len(a.page.Items))
		for _, item := range a.page.Items {
			if item.ID == "" {
				continue
			}
			ev := ToEvent(a.calendarID, item)
			writes = append(writes, db.EventWrite{
				Event: ev,
				Category: classify.Classify(classify.Input{
					Title:             ev.Title,
					CalendarIsHoliday: a.holiday,
					CalendarSummary:   a.summary,
				}),
			})
		}
		res, err := e.store.ApplyEventPage(ctx, writes)
		if err != nil {
			return SignalError, err
		}
		a.report.EventsUpserted += res.Upserted
		a.report.EventsDeletedMarked += res.DeletedMarked
		a.report.AnnotationsWritten += res.AnnotationsWritten

		if a.page.NextPageToken != "" {
			a.pageToken = a.page.NextPageToken
			return SignalMorePages, nil
		}
		return SignalLastPage, nil

	case StateFinalize:
		st := &schema.SyncState{
			CalendarID:  a.calendarID,
			Token:       a.page.NextSyncToken,
			WindowStart: a.windowStart,
			WindowEnd:   a.windowEnd,
			LastSyncAt:  e.now(),
		}
		if err := e.store.PutSyncState(ctx, st); err != nil {
			return SignalError, fmt.Errorf("failed to save sync state: %w", err)
		}
		return SignalDone, nil
	}
	return SignalError, fmt.Errorf("no action for state %s", a.state)
}
