package export

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"gopkg.in/yaml.v3"

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

	writes := []db.EventWrite{
		{Event: &schema.Event{
			Key: "primary:bday", CalendarID: "primary", RemoteID: "bday",
			Title: "Sam's birthday", Start: "2026-03-02", End: "2026-03-03", AllDay: true,
			Status: schema.StatusConfirmed,
		}, Category: schema.CategoryBirthday},
		{Event: &schema.Event{
			Key: "primary:flight", CalendarID: "primary", RemoteID: "flight",
			Title: "Flight to Lisbon", Location: "LHR",
			Start: "2026-03-05T09:00:00Z", End: "2026-03-05T11:30:00Z",
			Status: schema.StatusTentative,
		}, Category: schema.CategoryTravel},
		{Event: &schema.Event{
			Key: "primary:later", CalendarID: "primary", RemoteID: "later",
			Title: "Out of range", Start: "2026-06-01", End: "2026-06-02", AllDay: true,
			Status: schema.StatusConfirmed,
		}, Category: schema.CategoryUnknown},
	}
	if _, err := store.ApplyEventPage(context.Background(), writes); err != nil {
		t.Fatalf("ApplyEventPage() failed: %v", err)
	}
	major := true
	if _, err := store.SetAnnotation(context.Background(), "primary:flight", schema.AnnotationPatch{IsMajor: &major}); err != nil {
		t.Fatalf("SetAnnotation() failed: %v", err)
	}
	return store
}

var march = db.EventFilter{From: "2026-03-01", To: "2026-04-01"}

func newExporter(store Store) *Exporter {
	e := New(store)
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"ics", FormatICS, false},
		{"ICal", FormatICS, false},
		{"yml", FormatYAML, false},
		{" json ", FormatJSON, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestExport_ICS(t *testing.T) {
	var buf bytes.Buffer
	n, err := newExporter(setupTestDB(t)).Export(context.Background(), &buf, FormatICS, march)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Export() wrote %d events, want 2", n)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ParseCalendar() failed: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("parsed %d VEVENTs, want 2", len(events))
	}

	bday := events[0]
	if got := bday.GetProperty(ics.ComponentPropertySummary).Value; got != "Sam's birthday" {
		t.Errorf("SUMMARY = %q", got)
	}
	if got := bday.GetProperty(ics.ComponentPropertyDtStart).Value; got != "20260302" {
		t.Errorf("all-day DTSTART = %q, want 20260302", got)
	}
	if got := bday.GetProperty(ics.ComponentPropertyCategories).Value; got != "BIRTHDAY" {
		t.Errorf("CATEGORIES = %q, want BIRTHDAY", got)
	}

	flight := events[1]
	if got := flight.Id(); got != "primary:flight@personal-dash" {
		t.Errorf("UID = %q", got)
	}
	start, err := flight.GetStartAt()
	if err != nil || !start.Equal(time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("DTSTART = %v, %v", start, err)
	}
	if got := flight.GetProperty(ics.ComponentPropertyStatus).Value; got != string(ics.ObjectStatusTentative) {
		t.Errorf("STATUS = %q, want TENTATIVE", got)
	}
	if p := flight.GetProperty(ics.ComponentPropertyPriority); p == nil || p.Value != "1" {
		t.Error("major event should carry PRIORITY:1")
	}
}

func TestExport_YAML(t *testing.T) {
	var buf bytes.Buffer
	n, err := newExporter(setupTestDB(t)).Export(context.Background(), &buf, FormatYAML, march)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() failed: %v\n%s", err, buf.String())
	}
	if doc.Count != n || len(doc.Events) != 2 {
		t.Fatalf("doc count=%d events=%d, want 2", doc.Count, len(doc.Events))
	}
	if doc.From != "2026-03-01" || doc.To != "2026-04-01" {
		t.Errorf("range = %q..%q", doc.From, doc.To)
	}
	if got := doc.Events[1].Annotation; got == nil || !got.Locked() || got.Category != schema.CategoryTravel {
		t.Errorf("flight annotation = %+v", got)
	}
}

func TestExport_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	filter := db.EventFilter{From: "2030-01-01"}
	if _, err := newExporter(setupTestDB(t)).Export(context.Background(), &buf, FormatJSON, filter); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	events, ok := raw["events"].([]any)
	if !ok || len(events) != 0 {
		t.Errorf("events = %v, want empty array", raw["events"])
	}
}

func TestWriteICS_SkipsUnparsableStart(t *testing.T) {
	recs := []*db.EventRecord{{Event: &schema.Event{Key: "a:b", Title: "No start", Status: schema.StatusConfirmed}}}
	var buf bytes.Buffer
	n, err := WriteICS(&buf, recs, time.Now())
	if err != nil {
		t.Fatalf("WriteICS() failed: %v", err)
	}
	if n != 0 || strings.Contains(buf.String(), "BEGIN:VEVENT") {
		t.Errorf("event without a start was exported")
	}
}
