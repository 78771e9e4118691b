package schema

import (
	"fmt"
	"time"
)

// SyncState is the persisted cursor for one calendar.
//
// An empty Token means the next fetch must be a full sync. The window
// [WindowStart, WindowEnd) is reused for every page of a pass.
type SyncState struct {
	CalendarID  string    `json:"calendar_id" yaml:"calendar_id"`
	Token       string    `json:"sync_token,omitempty" yaml:"sync_token,omitempty"`
	WindowStart time.Time `json:"window_start" yaml:"window_start"`
	WindowEnd   time.Time `json:"window_end" yaml:"window_end"`
	LastSyncAt  time.Time `json:"last_sync_at" yaml:"last_sync_at"`
}

// Validate checks if the SyncState has valid field values.
func (s *SyncState) Validate() error {
	if s.CalendarID == "" {
		return fmt.Errorf("calendar_id is required")
	}
	if s.WindowStart.IsZero() || s.WindowEnd.IsZero() {
		return fmt.Errorf("window is required")
	}
	if !s.WindowEnd.After(s.WindowStart) {
		return fmt.Errorf("window_end must be after window_start")
	}
	return nil
}
