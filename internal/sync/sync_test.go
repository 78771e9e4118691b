package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/provider/fake"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

const (
	calA = "a@example.com"
	calB = "b@example.com"
)

// fixture wires an engine to a temp store and a fake provider with a
// controllable clock.
type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *db.DB
	fake   *fake.Provider
	now    time.Time
	engine *Engine
}

func newFixture(t *testing.T, calendars ...string) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, calendars...)
}

// newFixtureWith builds a fixture whose engine talks to wrap(fake) when wrap
// is not nil.
func newFixtureWith(t *testing.T, wrap func(provider.Provider) provider.Provider, calendars ...string) *fixture {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "sync.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		fake:  fake.New(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, id := range calendars {
		f.fake.AddCalendar(provider.Calendar{ID: id, Summary: id})
		if err := store.UpsertCalendar(f.ctx, &schema.Calendar{ID: id, Summary: id}); err != nil {
			t.Fatalf("UpsertCalendar() failed: %v", err)
		}
	}
	settings := schema.DefaultSettings()
	settings.SelectedCalendarIDs = calendars
	if err := store.UpdateSettings(f.ctx, settings); err != nil {
		t.Fatalf("UpdateSettings() failed: %v", err)
	}

	var p provider.Provider = f.fake
	if wrap != nil {
		p = wrap(f.fake)
	}
	cfg := DefaultConfig()
	cfg.LookBehind = 24 * time.Hour
	cfg.Now = func() time.Time { return f.now }
	f.engine = New(store, p, cfg, log.New(io.Discard, "", 0))
	return f
}

// put adds an all-day event daysFromNow days after the fixture clock.
func (f *fixture) put(cal, id, title string, daysFromNow int) {
	day := f.now.AddDate(0, 0, daysFromNow)
	f.fake.PutEvent(cal, provider.Event{
		ID:      id,
		Summary: title,
		Start:   provider.EventTime{Date: day.Format(schema.DateLayout)},
		End:     provider.EventTime{Date: day.AddDate(0, 0, 1).Format(schema.DateLayout)},
	})
}

func (f *fixture) syncAll() *Report {
	f.t.Helper()
	report, err := f.engine.SyncAll(f.ctx)
	if err != nil {
		f.t.Fatalf("SyncAll() failed: %v", err)
	}
	return report
}

func (f *fixture) event(cal, id string) *db.EventRecord {
	f.t.Helper()
	rec, err := f.store.GetEvent(f.ctx, schema.EventKey(cal, id))
	if err != nil {
		f.t.Fatalf("GetEvent(%s, %s) failed: %v", cal, id, err)
	}
	return rec
}

func (f *fixture) listAll() []*db.EventRecord {
	f.t.Helper()
	recs, err := f.store.ListEvents(f.ctx, db.EventFilter{IncludeDeleted: true})
	if err != nil {
		f.t.Fatalf("ListEvents() failed: %v", err)
	}
	return recs
}

// hookProvider lets a test fail chosen ListEvents calls.
type hookProvider struct {
	provider.Provider

	mu    stdsync.Mutex
	calls int
	hook  func(call int, req provider.ListEventsRequest) error
}

func (h *hookProvider) ListEvents(ctx context.Context, req provider.ListEventsRequest) (*provider.EventPage, error) {
	h.mu.Lock()
	h.calls++
	call, hook := h.calls, h.hook
	h.mu.Unlock()
	if hook != nil {
		if err := hook(call, req); err != nil {
			return nil, err
		}
	}
	return h.Provider.ListEvents(ctx, req)
}

func (h *hookProvider) setHook(fn func(call int, req provider.ListEventsRequest) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = 0
	h.hook = fn
}

func TestSyncAll_FullThenIncremental(t *testing.T) {
	f := newFixture(t, calA)
	f.put(calA, "e1", "Mum's birthday", 3)
	f.put(calA, "e2", "Dentist", 5)

	report := f.syncAll()
	if report.CalendarsProcessed != 1 || report.EventsUpserted != 2 {
		t.Fatalf("first pass: processed=%d upserted=%d, want 1 and 2", report.CalendarsProcessed, report.EventsUpserted)
	}
	if !report.Calendars[0].FullSync {
		t.Error("first pass should be a full sync")
	}
	if report.Calendars[0].FinalState != StateIdle {
		t.Errorf("FinalState = %s, want idle", report.Calendars[0].FinalState)
	}

	st, err := f.store.GetSyncState(f.ctx, calA)
	if err != nil {
		t.Fatalf("GetSyncState() failed: %v", err)
	}
	if st.Token != "v2" {
		t.Errorf("Token = %q, want v2", st.Token)
	}
	if want := f.now.Add(-24 * time.Hour); !st.WindowStart.Equal(want) {
		t.Errorf("WindowStart = %v, want %v", st.WindowStart, want)
	}
	if want := f.now.AddDate(0, 0, schema.DefaultHorizonDays); !st.WindowEnd.Equal(want) {
		t.Errorf("WindowEnd = %v, want %v", st.WindowEnd, want)
	}

	if got := f.event(calA, "e1").Annotation.Category; got != schema.CategoryBirthday {
		t.Errorf("e1 category = %s, want birthday", got)
	}
	if got := f.event(calA, "e2").Annotation.Category; got != schema.CategoryUnknown {
		t.Errorf("e2 category = %s, want unknown", got)
	}

	f.fake.ResetRequests()
	f.now = f.now.Add(time.Hour)
	report = f.syncAll()
	reqs := f.fake.Requests()
	if len(reqs) != 1 || reqs[0].SyncToken != "v2" {
		t.Fatalf("second pass requests = %+v, want one request with token v2", reqs)
	}
	if report.Calendars[0].FullSync || report.EventsUpserted != 0 {
		t.Errorf("second pass: full=%v upserted=%d, want incremental with no changes",
			report.Calendars[0].FullSync, report.EventsUpserted)
	}

	settings, err := f.store.GetSettings(f.ctx)
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	if settings.LastSyncAt == nil || !settings.LastSyncAt.Equal(f.now) {
		t.Errorf("LastSyncAt = %v, want %v", settings.LastSyncAt, f.now)
	}
}

func TestSyncAll_Idempotent(t *testing.T) {
	f := newFixture(t, calA, calB)
	f.put(calA, "e1", "Flight to Lisbon", 2)
	f.put(calA, "e2", "Dinner with Sam", 4)
	f.put(calB, "e1", "Christmas party", 20)

	f.syncAll()
	before := f.listAll()

	f.syncAll()
	if err := f.store.DeleteSyncState(f.ctx, calA); err != nil {
		t.Fatalf("DeleteSyncState() failed: %v", err)
	}
	report := f.syncAll()
	if report.AnnotationsWritten != 0 {
		t.Errorf("re-running a full sync rewrote %d annotations", report.AnnotationsWritten)
	}

	if diff := cmp.Diff(before, f.listAll()); diff != "" {
		t.Errorf("store changed across repeated syncs (-before +after):\n%s", diff)
	}
}

func TestSyncAll_CompositeKeyKeepsCalendarsApart(t *testing.T) {
	f := newFixture(t, calA, calB)
	f.put(calA, "same", "Team lunch", 1)
	f.put(calB, "same", "Anniversary", 1)

	f.syncAll()
	if got := len(f.listAll()); got != 2 {
		t.Fatalf("stored %d events, want 2", got)
	}
	if got := f.event(calA, "same").Annotation.Category; got != schema.CategorySocial {
		t.Errorf("calA category = %s, want social", got)
	}
	if got := f.event(calB, "same").Annotation.Category; got != schema.CategoryAnniversary {
		t.Errorf("calB category = %s, want anniversary", got)
	}
}

func TestSyncAll_UserLockSurvivesResync(t *testing.T) {
	f := newFixture(t, calA)
	f.put(calA, "e1", "Dad's birthday", 3)
	f.put(calA, "e2", "Catch up", 4)
	f.syncAll()

	travel := schema.CategoryTravel
	if _, err := f.store.SetAnnotation(f.ctx, schema.EventKey(calA, "e1"), schema.AnnotationPatch{Category: &travel}); err != nil {
		t.Fatalf("SetAnnotation() failed: %v", err)
	}

	// Both events change remotely; only the auto one may be re-categorised.
	f.put(calA, "e1", "Dad's birthday dinner", 3)
	f.put(calA, "e2", "Drinks with the team", 4)
	report := f.syncAll()

	if got := report.Calendars[0].AnnotationsWritten; got != 1 {
		t.Errorf("AnnotationsWritten = %d, want 1", got)
	}
	locked := f.event(calA, "e1")
	if locked.Event.Title != "Dad's birthday dinner" {
		t.Errorf("title = %q, want the remote update", locked.Event.Title)
	}
	if locked.Annotation.Category != schema.CategoryTravel || !locked.Annotation.Locked() {
		t.Errorf("locked annotation = %+v, want travel/user", locked.Annotation)
	}
	if got := f.event(calA, "e2").Annotation.Category; got != schema.CategorySocial {
		t.Errorf("auto category = %s, want social", got)
	}

	// After unlocking, the next full pass takes the annotation back.
	if err := f.store.UnlockAnnotation(f.ctx, schema.EventKey(calA, "e1")); err != nil {
		t.Fatalf("UnlockAnnotation() failed: %v", err)
	}
	if err := f.store.DeleteSyncState(f.ctx, calA); err != nil {
		t.Fatalf("DeleteSyncState() failed: %v", err)
	}
	f.syncAll()
	if got := f.event(calA, "e1").Annotation.Category; got != schema.CategoryBirthday {
		t.Errorf("unlocked category = %s, want birthday", got)
	}
}

func TestSyncAll_CancelledEventsMarkedDeleted(t *testing.T) {
	f := newFixture(t, calA)
	f.put(calA, "e1", "Offsite", 3)
	f.put(calA, "e2", "Standup", 3)
	f.syncAll()

	f.fake.CancelEvent(calA, "e1")
	report := f.syncAll()
	if report.EventsDeletedMarked != 1 {
		t.Errorf("EventsDeletedMarked = %d, want 1", report.EventsDeletedMarked)
	}

	rec := f.event(calA, "e1")
	if !rec.Event.Deleted || rec.Event.Status != schema.StatusCancelled {
		t.Errorf("e1 = %+v, want deleted/cancelled", rec.Event)
	}
	visible, err := f.store.ListEvents(f.ctx, db.EventFilter{})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(visible) != 1 || visible[0].Event.RemoteID != "e2" {
		t.Errorf("visible events = %d, want only e2", len(visible))
	}
}

func TestSyncAll_WindowRollover(t *testing.T) {
	f := newFixture(t, calA)
	f.put(calA, "e1", "Easter lunch", 30)
	f.syncAll()

	f.fake.ResetRequests()
	f.now = f.now.Add(8 * 24 * time.Hour)
	report := f.syncAll()

	reqs := f.fake.Requests()
	if len(reqs) == 0 || reqs[0].SyncToken != "" {
		t.Fatalf("first request after rollover = %+v, want no sync token", reqs)
	}
	if want := f.now.Add(-24 * time.Hour); !reqs[0].TimeMin.Equal(want) {
		t.Errorf("TimeMin = %v, want %v", reqs[0].TimeMin, want)
	}
	cr := report.Calendars[0]
	if !cr.Rollover || !cr.FullSync {
		t.Errorf("report = %+v, want rollover full sync", cr)
	}
}

func TestNeedsRollover(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 7 * 24 * time.Hour

	tests := []struct {
		name string
		st   *schema.SyncState
		want bool
	}{
		{"no state", nil, true},
		{"no token", &schema.SyncState{WindowStart: now, WindowEnd: now.Add(time.Hour)}, true},
		{"fresh", &schema.SyncState{Token: "t", WindowStart: now.Add(-time.Hour), WindowEnd: now.Add(time.Hour)}, false},
		{"exactly max age", &schema.SyncState{Token: "t", WindowStart: now.Add(-maxAge), WindowEnd: now.Add(time.Hour)}, false},
		{"too old", &schema.SyncState{Token: "t", WindowStart: now.Add(-maxAge - time.Second), WindowEnd: now.Add(time.Hour)}, true},
		{"elapsed", &schema.SyncState{Token: "t", WindowStart: now.Add(-time.Hour), WindowEnd: now.Add(-time.Second)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRollover(tt.st, now, maxAge); got != tt.want {
				t.Errorf("NeedsRollover() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNeedsRollover_DefaultLookBehind(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start, _ := DefaultWindow(now, schema.DefaultHorizonDays, DefaultLookBehind)
	st := &schema.SyncState{Token: "t", WindowStart: start, WindowEnd: now.AddDate(0, 0, 1)}
	if !NeedsRollover(st, now, DefaultMaxWindowAge) {
		t.Error("a window opened with the default look-behind should already be past the default max age")
	}
}

func TestSyncAll_TokenExpiredFallsBackOnce(t *testing.T) {
	f := newFixture(t, calA)
	f.put(calA, "e1", "Valentine's dinner", 10)
	f.syncAll()

	f.put(calA, "e2", "Hotel check-in", 12)
	f.fake.ExpireToken(calA, 1)
	f.fake.ResetRequests()
	report := f.syncAll()

	reqs := f.fake.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2 (incremental then full)", len(reqs))
	}
	if reqs[0].SyncToken == "" || reqs[1].SyncToken != "" {
		t.Errorf("tokens = %q, %q; want token then none", reqs[0].SyncToken, reqs[1].SyncToken)
	}
	if report.TokenExpirations != 1 || !report.Calendars[0].TokenExpired {
		t.Errorf("TokenExpirations = %d, want 1", report.TokenExpirations)
	}
	if got := f.event(calA, "e2").Annotation.Category; got != schema.CategoryTravel {
		t.Errorf("e2 category = %s, want travel", got)
	}
	st, err := f.store.GetSyncState(f.ctx, calA)
	if err != nil {
		t.Fatalf("GetSyncState() failed: %v", err)
	}
	if st.Token != "v2" {
		t.Errorf("Token = %q, want v2", st.Token)
	}
}

func TestSyncAll_SecondExpiryFailsCalendar(t *testing.T) {
	hp := &hookProvider{}
	f := newFixtureWith(t, func(p provider.Provider) provider.Provider {
		hp.Provider = p
		return hp
	}, calA, calB)
	hp.setHook(func(_ int, req provider.ListEventsRequest) error {
		if req.CalendarID == calA {
			return provider.ErrTokenExpired
		}
		return nil
	})
	f.put(calA, "e1", "Anything", 1)
	f.put(calB, "e1", "Xmas drinks", 1)

	report, err := f.engine.SyncAll(f.ctx)
	if err == nil {
		t.Fatal("SyncAll() succeeded, want calendar error")
	}
	var calErr *CalendarError
	if !errors.As(err, &calErr) || calErr.CalendarID != calA {
		t.Fatalf("error = %v, want CalendarError for %s", err, calA)
	}
	if !errors.Is(err, provider.ErrTokenExpired) {
		t.Errorf("error = %v, want it to wrap ErrTokenExpired", err)
	}
	if report.CalendarsProcessed != 2 || report.CalendarsFailed != 1 {
		t.Errorf("processed=%d failed=%d, want 2 and 1", report.CalendarsProcessed, report.CalendarsFailed)
	}
	if _, err := f.store.GetSyncState(f.ctx, calA); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("GetSyncState(%s) error = %v, want ErrNotFound", calA, err)
	}
	if got := f.event(calB, "e1").Annotation.Category; got != schema.CategoryChristmas {
		t.Errorf("calB category = %s, want christmas", got)
	}
}

func TestSyncAll_TransientFailureContinuesBatch(t *testing.T) {
	f := newFixture(t, calA, calB)
	f.put(calB, "e1", "Airport pickup", 2)
	f.fake.FailCalendar(calA, &provider.TransientError{Op: "list events", Err: errors.New("503 backend error")})

	report, err := f.engine.SyncAll(f.ctx)
	if !provider.IsTransient(err) {
		t.Fatalf("error = %v, want transient", err)
	}
	if report.CalendarsFailed != 1 || report.EventsUpserted != 1 {
		t.Errorf("failed=%d upserted=%d, want 1 and 1", report.CalendarsFailed, report.EventsUpserted)
	}
	if report.Calendars[0].Error == "" || !report.Calendars[0].Failed() {
		t.Errorf("calA report = %+v, want failure recorded", report.Calendars[0])
	}
	settings, err := f.store.GetSettings(f.ctx)
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	if settings.LastSyncAt == nil {
		t.Error("LastSyncAt not recorded after a batch with per-calendar failures")
	}
}

func TestSyncAll_NotConnectedAbortsBatch(t *testing.T) {
	f := newFixture(t, calA, calB)
	f.fake.SetNotConnected(true)

	_, err := f.engine.SyncAll(f.ctx)
	if !errors.Is(err, provider.ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
	settings, err := f.store.GetSettings(f.ctx)
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	if settings.LastSyncAt != nil {
		t.Errorf("LastSyncAt = %v, want unset after abort", settings.LastSyncAt)
	}
}

func TestSyncAll_Pagination(t *testing.T) {
	f := newFixture(t, calA)
	f.fake.PageSize = 2
	for i, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		f.put(calA, id, "Meeting", i+1)
	}

	report := f.syncAll()
	cr := report.Calendars[0]
	if cr.Pages != 3 || cr.EventsUpserted != 5 {
		t.Errorf("pages=%d upserted=%d, want 3 and 5", cr.Pages, cr.EventsUpserted)
	}
	reqs := f.fake.Requests()
	for i, req := range reqs {
		if !req.TimeMin.Equal(reqs[0].TimeMin) || !req.TimeMax.Equal(reqs[0].TimeMax) {
			t.Errorf("request %d window differs from the first page", i)
		}
		if !req.ShowDeleted || !req.SingleEvents {
			t.Errorf("request %d = %+v, want showDeleted and singleEvents", i, req)
		}
	}
}

func TestSyncAll_FailedPassKeepsCommittedPages(t *testing.T) {
	hp := &hookProvider{}
	f := newFixtureWith(t, func(p provider.Provider) provider.Provider {
		hp.Provider = p
		return hp
	}, calA)
	f.fake.PageSize = 2
	for i, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		f.put(calA, id, "Review", i+1)
	}
	hp.setHook(func(call int, _ provider.ListEventsRequest) error {
		if call == 3 {
			return &provider.TransientError{Err: errors.New("connection reset")}
		}
		return nil
	})

	if _, err := f.engine.SyncAll(f.ctx); err == nil {
		t.Fatal("SyncAll() succeeded, want failure on the third page")
	}
	if got := len(f.listAll()); got != 4 {
		t.Errorf("stored %d events after failure, want the 4 from committed pages", got)
	}
	if _, err := f.store.GetSyncState(f.ctx, calA); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("GetSyncState() error = %v, want ErrNotFound", err)
	}

	hp.setHook(nil)
	report := f.syncAll()
	if !report.Calendars[0].FullSync {
		t.Error("retry should replay as a full sync")
	}
	if got := len(f.listAll()); got != 5 {
		t.Errorf("stored %d events after retry, want 5", got)
	}
}

func TestSyncAll_HolidayClassificationFromCalendar(t *testing.T) {
	const holidays = "en.uk#holiday@group.v.calendar.google.com"
	f := newFixture(t, calA)
	// The holiday calendar is selected but has no local row yet, so its id
	// stands in for the summary.
	settings, err := f.store.GetSettings(f.ctx)
	if err != nil {
		t.Fatalf("GetSettings() failed: %v", err)
	}
	settings.SelectedCalendarIDs = append(settings.SelectedCalendarIDs, holidays)
	if err := f.store.UpdateSettings(f.ctx, settings); err != nil {
		t.Fatalf("UpdateSettings() failed: %v", err)
	}
	f.fake.AddCalendar(provider.Calendar{ID: holidays, Summary: "Holidays in United Kingdom"})
	f.put(holidays, "gf", "Good Friday", 20)

	f.syncAll()
	if got := f.event(holidays, "gf").Annotation.Category; got != schema.CategoryHoliday {
		t.Errorf("category = %s, want holiday", got)
	}
}

func TestSyncAll_Concurrent(t *testing.T) {
	ids := []string{"c1@x", "c2@x", "c3@x", "c4@x", "c5@x"}
	f := newFixture(t, ids...)
	for _, id := range ids {
		f.put(id, "e1", "Birthday party", 1)
		f.put(id, "e2", "Train to Leeds", 2)
	}
	rec := &recorder{}
	f.engine.cfg.Concurrency = 3
	f.engine.cfg.Observer = rec

	report := f.syncAll()
	if report.CalendarsProcessed != 5 || report.EventsUpserted != 10 {
		t.Errorf("processed=%d upserted=%d, want 5 and 10", report.CalendarsProcessed, report.EventsUpserted)
	}
	for i, cr := range report.Calendars {
		if cr.CalendarID != ids[i] {
			t.Errorf("report order: got %s at %d, want %s", cr.CalendarID, i, ids[i])
		}
	}
	if rec.started != 1 || rec.calendars != 5 || rec.completed != 1 {
		t.Errorf("observer saw started=%d calendars=%d completed=%d", rec.started, rec.calendars, rec.completed)
	}
}

func TestSyncCalendar(t *testing.T) {
	f := newFixture(t, calA)
	f.put(calA, "e1", "Lunch", 1)

	rep, err := f.engine.SyncCalendar(f.ctx, calA)
	if err != nil {
		t.Fatalf("SyncCalendar() failed: %v", err)
	}
	if rep.EventsUpserted != 1 {
		t.Errorf("EventsUpserted = %d, want 1", rep.EventsUpserted)
	}

	f.fake.FailCalendar(calA, errors.New("boom"))
	_, err = f.engine.SyncCalendar(f.ctx, calA)
	var calErr *CalendarError
	if !errors.As(err, &calErr) {
		t.Errorf("error = %v, want *CalendarError", err)
	}
}

func TestToEvent(t *testing.T) {
	got := ToEvent(calA, provider.Event{
		ID:      "x1",
		Summary: "Gone",
		Status:  schema.StatusCancelled,
		Start:   provider.EventTime{Date: "2026-04-01"},
		End:     provider.EventTime{Date: "2026-04-02"},
	})
	want := &schema.Event{
		Key:        calA + ":x1",
		CalendarID: calA,
		RemoteID:   "x1",
		Title:      "Gone",
		Start:      "2026-04-01",
		End:        "2026-04-02",
		AllDay:     true,
		Status:     schema.StatusCancelled,
		Deleted:    true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToEvent() mismatch (-want +got):\n%s", diff)
	}

	timed := ToEvent(calA, provider.Event{
		ID:    "x2",
		Start: provider.EventTime{DateTime: "2026-04-01T09:00:00Z"},
		End:   provider.EventTime{DateTime: "2026-04-01T10:00:00Z"},
	})
	if timed.AllDay || timed.Deleted || timed.Status != schema.StatusConfirmed {
		t.Errorf("timed event = %+v, want confirmed timed event", timed)
	}
}

func TestTransition(t *testing.T) {
	path := []struct {
		from State
		on   Signal
		want State
	}{
		{StateIdle, SignalStart, StateFetchPage},
		{StateFetchPage, SignalPageFetched, StateUpsertBatch},
		{StateUpsertBatch, SignalMorePages, StateFetchPage},
		{StateFetchPage, SignalTokenExpired, StateFullResyncFetch},
		{StateFullResyncFetch, SignalPageFetched, StateUpsertBatch},
		{StateUpsertBatch, SignalLastPage, StateFinalize},
		{StateFinalize, SignalDone, StateIdle},
		{StateFullResyncFetch, SignalTokenExpired, StateFailed},
		{StateFinalize, SignalError, StateFailed},
	}
	for _, tt := range path {
		got, err := Transition(tt.from, tt.on)
		if err != nil || got != tt.want {
			t.Errorf("Transition(%s, %s) = %s, %v; want %s", tt.from, tt.on, got, err, tt.want)
		}
	}

	invalid := []struct {
		from State
		on   Signal
	}{
		{StateIdle, SignalDone},
		{StateFailed, SignalStart},
		{StateUpsertBatch, SignalTokenExpired},
		{StateFinalize, SignalMorePages},
	}
	for _, tt := range invalid {
		if _, err := Transition(tt.from, tt.on); err == nil {
			t.Errorf("Transition(%s, %s) succeeded, want error", tt.from, tt.on)
		}
	}
}

type recorder struct {
	mu        stdsync.Mutex
	started   int
	calendars int
	completed int
}

func (r *recorder) SyncStarted([]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recorder) CalendarSynced(CalendarReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calendars++
}

func (r *recorder) SyncComplete(*Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}
