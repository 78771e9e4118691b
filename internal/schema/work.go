package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priorities shared by projects and actions.
const (
	PriorityHigh = "high"
	PriorityMed  = "med"
	PriorityLow  = "low"
)

// Project statuses.
const (
	ProjectActive = "active"
	ProjectPaused = "paused"
	ProjectDone   = "done"
)

// Action statuses.
const (
	ActionOpen    = "open"
	ActionDone    = "done"
	ActionDropped = "dropped"
)

// ParentProject is the parent_type of actions attached to a project.
const ParentProject = "project"

// Project is a user-managed piece of work that events and actions can link to.
type Project struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Status         string    `json:"status" yaml:"status"`
	Priority       string    `json:"priority" yaml:"priority"`
	TargetDate     string    `json:"target_date,omitempty" yaml:"target_date,omitempty"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags           []string  `json:"tags" yaml:"tags"`
	DriveFolderURL string    `json:"drive_folder_url,omitempty" yaml:"drive_folder_url,omitempty"`
	KeyDocURLs     []string  `json:"key_doc_urls" yaml:"key_doc_urls"`
	OpenActions    int       `json:"open_actions" yaml:"open_actions"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"updated_at"`
}

// Action is a single to-do, optionally attached to a parent such as a project.
type Action struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Status       string    `json:"status" yaml:"status"`
	Priority     string    `json:"priority" yaml:"priority"`
	StartAt      string    `json:"start_at,omitempty" yaml:"start_at,omitempty"`
	DueAt        string    `json:"due_at,omitempty" yaml:"due_at,omitempty"`
	SnoozeUntil  string    `json:"snooze_until,omitempty" yaml:"snooze_until,omitempty"`
	Tags         []string  `json:"tags" yaml:"tags"`
	ParentType   string    `json:"parent_type,omitempty" yaml:"parent_type,omitempty"`
	ParentID     string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	ReferenceURL string    `json:"reference_url,omitempty" yaml:"reference_url,omitempty"`
	Checklist    []string  `json:"checklist" yaml:"checklist"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewID returns a prefixed random identifier such as proj_3f9c0a1b2d4e5f60.
func NewID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:16]
}

// NormalizePriority maps anything other than high/low to med.
func NormalizePriority(p string) string {
	switch p {
	case PriorityHigh, PriorityLow:
		return p
	default:
		return PriorityMed
	}
}

// SetDefaults applies default values for optional fields.
func (p *Project) SetDefaults() {
	if p.ID == "" {
		p.ID = NewID("proj")
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	p.Priority = NormalizePriority(p.Priority)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.KeyDocURLs == nil {
		p.KeyDocURLs = []string{}
	}
}

// Validate checks if the Project has valid field values.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	switch p.Status {
	case ProjectActive, ProjectPaused, ProjectDone:
	default:
		return fmt.Errorf("invalid project status %q", p.Status)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (a *Action) SetDefaults() {
	if a.ID == "" {
		a.ID = NewID("act")
	}
	if a.Status == "" {
		a.Status = ActionOpen
	}
	a.Priority = NormalizePriority(a.Priority)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if a.Checklist == nil {
		a.Checklist = []string{}
	}
}

// Validate checks if the Action has valid field values.
func (a *Action) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("title is required")
	}
	switch a.Status {
	case ActionOpen, ActionDone, ActionDropped:
	default:
		return fmt.Errorf("invalid action status %q", a.Status)
	}
	if (a.ParentType == "") != (a.ParentID == "") {
		return fmt.Errorf("parent_type and parent_id must be set together")
	}
	return nil
}
