// Package export writes mirrored events as ICS, YAML or JSON.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// Format is an export encoding.
type Format string

const (
	FormatICS  Format = "ics"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ProductID identifies the exporter in ICS output.
const ProductID = "-//personal-dash//pd export//EN"

// ParseFormat accepts ics, yaml/yml and json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ics", "ical":
		return FormatICS, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want ics, yaml or json)", s)
	}
}

// Store lists events for export. *db.DB implements it.
type Store interface {
	ListEvents(ctx context.Context, filter db.EventFilter) ([]*db.EventRecord, error)
}

// Document is the YAML and JSON envelope.
type Document struct {
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	From       string            `json:"from,omitempty" yaml:"from,omitempty"`
	To         string            `json:"to,omitempty" yaml:"to,omitempty"`
	Count      int               `json:"count" yaml:"count"`
	Events     []*db.EventRecord `json:"events" yaml:"events"`
}

// Exporter writes events from a store.
type Exporter struct {
	store Store
	now   func() time.Time
}

// New creates an Exporter.
func New(store Store) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export writes the events matching filter to w and returns how many were
// written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, format Format, filter db.EventFilter) (int, error) {
	records, err := e.store.ListEvents(ctx, filter)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatICS:
		return WriteICS(w, records, e.now())
	case FormatYAML, FormatJSON:
		doc := &Document{
			ExportedAt: e.now().UTC().Truncate(time.Second),
			From:       filter.From,
			To:         filter.To,
			Count:      len(records),
			Events:     records,
		}
		if doc.Events == nil {
			doc.Events = []*db.EventRecord{}
		}
		if format == FormatYAML {
			return len(records), writeYAML(w, doc)
		}
		return len(records), writeJSON(w, doc)
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
}

func writeJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

// WriteICS writes records as a VCALENDAR. Events whose start cannot be
// parsed are skipped; the returned count covers written VEVENTs only.
func WriteICS(w io.Writer, records []*db.EventRecord, now time.Time) (int, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName("personal-dash")

	stamp := now.UTC()
	n := 0
	for _, rec := range records {
		if addEvent(cal, rec, stamp) {
			n++
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, fmt.Errorf("failed to write ICS: %w", err)
	}
	return n, nil
}

func addEvent(cal *ics.Calendar, rec *db.EventRecord, stamp time.Time) bool {
	ev := rec.Event
	start, err := ev.StartTime(time.UTC)
	if err != nil {
		return false
	}
	end, err := ev.EndTime(time.UTC)
	if err != nil || end.Before(start) {
		end = start
	}

	ve := cal.AddEvent(ev.Key + "@personal-dash")
	ve.SetDtStampTime(stamp)
	if ev.AllDay {
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(end)
	} else {
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	}
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	if updated, err := time.Parse(time.RFC3339, ev.Updated); err == nil {
		ve.SetModifiedAt(updated)
	}
	ve.SetStatus(icsStatus(ev))

	if ann := rec.Annotation; ann != nil {
		if ann.Category != schema.CategoryUnknown {
			ve.AddProperty(ics.ComponentPropertyCategories, strings.ToUpper(string(ann.Category)))
		}
		if ann.IsMajor {
			ve.AddProperty(ics.ComponentPropertyPriority, "1")
		}
		if ann.NotesURL != "" {
			ve.SetURL(ann.NotesURL)
		}
	}
	return true
}

func icsStatus(ev *schema.Event) ics.ObjectStatus {
	switch {
	case ev.Deleted || ev.Status == schema.StatusCancelled:
		return ics.ObjectStatusCancelled
	case ev.Status == schema.StatusTentative:
		return ics.ObjectStatusTentative
	default:
		return ics.ObjectStatusConfirmed
	}
}
