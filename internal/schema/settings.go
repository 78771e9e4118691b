package schema

import (
	"fmt"
	"time"
)

// Settings bounds and defaults.
const (
	DefaultHorizonDays            = 182
	MinHorizonDays                = 14
	MaxHorizonDays                = 366
	DefaultRefreshIntervalMinutes = 10
	MinRefreshIntervalMinutes     = 1
	MaxRefreshIntervalMinutes     = 240
)

// Settings is the singleton user configuration persisted in the store.
type Settings struct {
	HorizonDays            int        `json:"horizon_days" yaml:"horizon_days"`
	RefreshIntervalMinutes int        `json:"refresh_interval_minutes" yaml:"refresh_interval_minutes"`
	SelectedCalendarIDs    []string   `json:"selected_calendar_ids" yaml:"selected_calendar_ids"`
	LastSyncAt             *time.Time `json:"last_sync_at,omitempty" yaml:"last_sync_at,omitempty"`
}

// DefaultSettings returns the settings of a fresh store.
func DefaultSettings() *Settings {
	return &Settings{
		HorizonDays:            DefaultHorizonDays,
		RefreshIntervalMinutes: DefaultRefreshIntervalMinutes,
		SelectedCalendarIDs:    []string{},
	}
}

// Validate checks if the Settings have valid field values.
func (s *Settings) Validate() error {
	if s.HorizonDays < MinHorizonDays || s.HorizonDays > MaxHorizonDays {
		return fmt.Errorf("horizon_days must be between %d and %d (got %d)", MinHorizonDays, MaxHorizonDays, s.HorizonDays)
	}
	if s.RefreshIntervalMinutes < MinRefreshIntervalMinutes || s.RefreshIntervalMinutes > MaxRefreshIntervalMinutes {
		return fmt.Errorf("refresh_interval_minutes must be between %d and %d (got %d)",
			MinRefreshIntervalMinutes, MaxRefreshIntervalMinutes, s.RefreshIntervalMinutes)
	}
	return nil
}

// IsSelected reports whether calendarID is in the selected set.
func (s *Settings) IsSelected(calendarID string) bool {
	for _, id := range s.SelectedCalendarIDs {
		if id == calendarID {
			return true
		}
	}
	return false
}
