// Package provider defines the contract for remote calendar sources.
//
// A provider exposes a calendar list and a paginated, token-based event feed.
// The engine only depends on this package; concrete adapters live in
// sub-packages (google for Google Calendar v3, fake for tests and demo mode).
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTokenExpired is returned by ListEvents when the incremental sync token
	// is no longer accepted and a full resync is required.
	ErrTokenExpired = errors.New("sync token expired")

	// ErrNotConnected is returned when no usable credentials are available.
	ErrNotConnected = errors.New("calendar account not connected")
)

// Provider is a remote calendar source.
type Provider interface {
	Name() string
	ListCalendars(ctx context.Context, maxResults int) ([]Calendar, error)
	ListEvents(ctx context.Context, req ListEventsRequest) (*EventPage, error)
}

// Calendar is a remote calendar list entry.
type Calendar struct {
	ID         string
	Summary    string
	Primary    bool
	AccessRole string
	TimeZone   string
}

// EventTime holds either a date-only value (YYYY-MM-DD) or an RFC3339 date-time.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

// IsDateOnly reports whether the value is an all-day date.
func (t EventTime) IsDateOnly() bool {
	return t.DateTime == "" && t.Date != ""
}

// Value returns the date-time if present, else the date.
func (t EventTime) Value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// Event is a single remote event item as returned by ListEvents.
type Event struct {
	ID          string
	ICalUID     string
	Summary     string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
	Updated     string
	Status      string

	// Raw is the provider payload, retained verbatim.
	Raw []byte
}

// ListEventsRequest describes one page request.
//
// TimeMin/TimeMax are always set by the engine. Adapters whose API rejects a
// window together with a sync token may drop the window when SyncToken is set.
type ListEventsRequest struct {
	CalendarID   string
	TimeMin      time.Time
	TimeMax      time.Time
	SyncToken    string
	PageToken    string
	ShowDeleted  bool
	SingleEvents bool
	MaxResults   int
}

// Incremental reports whether the request uses a sync token.
func (r ListEventsRequest) Incremental() bool {
	return r.SyncToken != ""
}

// EventPage is one page of ListEvents results.
type EventPage struct {
	Items         []Event
	NextPageToken string
	NextSyncToken string
}

// TransientError wraps a network, rate-limit or server failure.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transient provider error: %v", e.Err)
	}
	return fmt.Sprintf("%s: transient provider error: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is, or wraps, a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
