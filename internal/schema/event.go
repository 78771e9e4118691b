package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event statuses reported by the provider.
const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// DateLayout is the layout of date-only (all-day) values.
const DateLayout = "2006-01-02"

// Event is a remote calendar event mirrored locally.
//
// Start and End hold the provider's raw value, either a date-only or a
// date-time string. AllDay records which one it was.
type Event struct {
	Key         string          `json:"event_key" yaml:"event_key"`
	CalendarID  string          `json:"calendar_id" yaml:"calendar_id"`
	RemoteID    string          `json:"remote_event_id" yaml:"remote_event_id"`
	ICalUID     string          `json:"ical_uid,omitempty" yaml:"ical_uid,omitempty"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Location    string          `json:"location,omitempty" yaml:"location,omitempty"`
	Start       string          `json:"start,omitempty" yaml:"start,omitempty"`
	End         string          `json:"end,omitempty" yaml:"end,omitempty"`
	AllDay      bool            `json:"all_day" yaml:"all_day"`
	Updated     string          `json:"updated,omitempty" yaml:"updated,omitempty"`
	Status      string          `json:"status" yaml:"status"`
	Deleted     bool            `json:"deleted" yaml:"deleted"`
	Raw         json.RawMessage `json:"-" yaml:"-"`
}

// EventKey builds the composite identity of an event.
func EventKey(calendarID, remoteID string) string {
	return calendarID + ":" + remoteID
}

// SplitEventKey is the inverse of EventKey. Calendar ids may themselves
// contain colons, so the split happens at the last one.
func SplitEventKey(key string) (calendarID, remoteID string, err error) {
	i := strings.LastIndex(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", "", fmt.Errorf("invalid event key %q", key)
	}
	return key[:i], key[i+1:], nil
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if e.CalendarID == "" {
		return fmt.Errorf("calendar_id is required")
	}
	if e.RemoteID == "" {
		return fmt.Errorf("remote_event_id is required")
	}
	if e.Key != EventKey(e.CalendarID, e.RemoteID) {
		return fmt.Errorf("event_key %q does not match %q", e.Key, EventKey(e.CalendarID, e.RemoteID))
	}
	if e.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// StartTime parses Start. All-day values are interpreted in loc.
func (e *Event) StartTime(loc *time.Location) (time.Time, error) {
	return ParseEventTime(e.Start, loc)
}

// EndTime parses End. All-day values are interpreted in loc.
func (e *Event) EndTime(loc *time.Location) (time.Time, error) {
	return ParseEventTime(e.End, loc)
}

// ParseEventTime parses either a date-only or an RFC3339 value.
func ParseEventTime(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}
	if len(v) == len(DateLayout) {
		return time.ParseInLocation(DateLayout, v, loc)
	}
	return time.Parse(time.RFC3339, v)
}
