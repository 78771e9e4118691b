package sync

import (
	"fmt"
	"time"
)

// Report aggregates one SyncAll batch.
type Report struct {
	// CalendarsProcessed counts calendars attempted, failed ones included.
	CalendarsProcessed  int              `json:"calendars_processed"`
	CalendarsFailed     int              `json:"calendars_failed"`
	EventsUpserted      int              `json:"events_upserted"`
	EventsDeletedMarked int              `json:"events_deleted_marked"`
	AnnotationsWritten  int              `json:"annotations_written"`
	TokenExpirations    int              `json:"token_expirations"`
	LastSyncAt          time.Time        `json:"last_sync_at"`
	Calendars           []CalendarReport `json:"calendars"`
}

// CalendarReport describes one calendar's attempt.
type CalendarReport struct {
	CalendarID          string        `json:"calendar_id"`
	FullSync            bool          `json:"full_sync"`
	Rollover            bool          `json:"rollover"`
	TokenExpired        bool          `json:"token_expired"`
	Pages               int           `json:"pages"`
	EventsUpserted      int           `json:"events_upserted"`
	EventsDeletedMarked int           `json:"events_deleted_marked"`
	AnnotationsWritten  int           `json:"annotations_written"`
	FinalState          State         `json:"-"`
	Error               string        `json:"error,omitempty"`
	Duration            time.Duration `json:"duration_ns"`
}

// Failed reports whether the attempt ended in StateFailed.
func (r CalendarReport) Failed() bool {
	return r.FinalState == StateFailed
}

func (r *Report) add(c CalendarReport) {
	r.CalendarsProcessed++
	if c.Failed() {
		r.CalendarsFailed++
	}
	r.EventsUpserted += c.EventsUpserted
	r.EventsDeletedMarked += c.EventsDeletedMarked
	r.AnnotationsWritten += c.AnnotationsWritten
	if c.TokenExpired {
		r.TokenExpirations++
	}
	r.Calendars = append(r.Calendars, c)
}

// CalendarError wraps a failure confined to one calendar.
type CalendarError struct {
	CalendarID string
	Err        error
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("calendar %s: %v", e.CalendarID, e.Err)
}

func (e *CalendarError) Unwrap() error {
	return e.Err
}
