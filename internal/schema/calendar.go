package schema

import (
	"fmt"
	"time"
)

// Calendar is a remote calendar mirrored locally.
// Rows are never hard-deleted by sync; only the Selected flag toggles.
type Calendar struct {
	ID        string    `json:"calendar_id" yaml:"calendar_id"`
	Summary   string    `json:"summary" yaml:"summary"`
	Primary   bool      `json:"primary" yaml:"primary"`
	Holiday   bool      `json:"is_holiday" yaml:"is_holiday"`
	Selected  bool      `json:"selected" yaml:"selected"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Validate checks if the Calendar has valid field values.
func (c *Calendar) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("calendar_id is required")
	}
	if c.Summary == "" {
		return fmt.Errorf("summary is required")
	}
	return nil
}
