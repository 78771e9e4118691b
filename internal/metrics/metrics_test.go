package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mschirtzinger/personal-dash/internal/sync"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return newWithRegistry(prometheus.NewRegistry())
}

func TestCalendarSynced(t *testing.T) {
	m := newTestMetrics(t)

	m.CalendarSynced(sync.CalendarReport{
		CalendarID:          "a",
		FullSync:            true,
		TokenExpired:        true,
		EventsUpserted:      3,
		EventsDeletedMarked: 1,
		AnnotationsWritten:  2,
		FinalState:          sync.StateIdle,
		Duration:            150 * time.Millisecond,
	})
	m.CalendarSynced(sync.CalendarReport{CalendarID: "b", FinalState: sync.StateFailed})

	if got := testutil.ToFloat64(m.CalendarSyncs.WithLabelValues("full", "ok")); got != 1 {
		t.Errorf("CalendarSyncs[full,ok] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.CalendarSyncs.WithLabelValues("incremental", "failed")); got != 1 {
		t.Errorf("CalendarSyncs[incremental,failed] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsUpserted); got != 3 {
		t.Errorf("EventsUpserted = %f, want 3", got)
	}
	if got := testutil.ToFloat64(m.EventsDeleted); got != 1 {
		t.Errorf("EventsDeleted = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.AnnotationsWritten); got != 2 {
		t.Errorf("AnnotationsWritten = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.TokenExpirations); got != 1 {
		t.Errorf("TokenExpirations = %f, want 1", got)
	}
	if got := testutil.CollectAndCount(m.CalendarDuration); got != 1 {
		t.Errorf("CalendarDuration series = %d, want 1", got)
	}
}

func TestSyncComplete(t *testing.T) {
	m := newTestMetrics(t)
	done := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m.SyncStarted([]string{"a"})
	if got := testutil.ToFloat64(m.SyncInProgress); got != 1 {
		t.Errorf("SyncInProgress = %f, want 1", got)
	}

	m.SyncComplete(&sync.Report{LastSyncAt: done})
	m.SyncComplete(&sync.Report{LastSyncAt: done, CalendarsFailed: 1})
	m.SyncComplete(&sync.Report{})

	for result, want := range map[string]float64{"ok": 1, "partial": 1, "aborted": 1} {
		if got := testutil.ToFloat64(m.SyncRuns.WithLabelValues(result)); got != want {
			t.Errorf("SyncRuns[%s] = %f, want %f", result, got, want)
		}
	}
	if got := testutil.ToFloat64(m.LastSync); got != float64(done.Unix()) {
		t.Errorf("LastSync = %f, want %d", got, done.Unix())
	}
	if got := testutil.ToFloat64(m.SyncInProgress); got != 0 {
		t.Errorf("SyncInProgress = %f, want 0", got)
	}
}

func TestHandler(t *testing.T) {
	m := newTestMetrics(t)
	m.EventsUpserted.Add(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "pd_sync_events_upserted_total 5") {
		t.Errorf("body does not contain upserted counter:\n%s", body)
	}
}

func TestNew_RegistersRuntimeCollectors(t *testing.T) {
	m := New()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	var found bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "go_") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected Go runtime metrics in the registry")
	}
}
