package schema

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCategory is returned when a category is not one of the known values.
var ErrInvalidCategory = errors.New("invalid category")

// Category is the classification label attached to an event.
type Category string

const (
	CategoryUnknown     Category = "unknown"
	CategoryHoliday     Category = "holiday"
	CategoryBirthday    Category = "birthday"
	CategoryAnniversary Category = "anniversary"
	CategoryChristmas   Category = "christmas"
	CategoryEaster      Category = "easter"
	CategoryValentines  Category = "valentines"
	CategoryTravel      Category = "travel"
	CategorySocial      Category = "social"
	CategoryAdmin       Category = "admin"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryUnknown,
	CategoryHoliday,
	CategoryBirthday,
	CategoryAnniversary,
	CategoryChristmas,
	CategoryEaster,
	CategoryValentines,
	CategoryTravel,
	CategorySocial,
	CategoryAdmin,
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory validates a user-supplied category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Provenance records who last decided an annotation's category.
type Provenance string

const (
	// ProvenanceUnset means no annotation exists for the event.
	ProvenanceUnset Provenance = ""
	// ProvenanceAuto means the classifier set the category; sync may rewrite it.
	ProvenanceAuto Provenance = "auto"
	// ProvenanceUser means a direct edit locked the annotation against sync.
	ProvenanceUser Provenance = "user"
)

// String returns a human-readable representation of the provenance.
func (p Provenance) String() string {
	switch p {
	case ProvenanceAuto:
		return "auto-classified"
	case ProvenanceUser:
		return "user-locked"
	default:
		return "unset"
	}
}

// Annotation is user-owned metadata keyed 1:1 by event key.
type Annotation struct {
	EventKey   string     `json:"event_key" yaml:"event_key"`
	Category   Category   `json:"category" yaml:"category"`
	IsMajor    bool       `json:"is_major" yaml:"is_major"`
	ProjectID  string     `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	NotesURL   string     `json:"notes_url,omitempty" yaml:"notes_url,omitempty"`
	Provenance Provenance `json:"provenance" yaml:"provenance"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Locked reports whether reconciliation must leave this annotation alone.
func (a *Annotation) Locked() bool {
	return a != nil && a.Provenance == ProvenanceUser
}

// Validate checks if the Annotation has valid field values.
func (a *Annotation) Validate() error {
	if a.EventKey == "" {
		return fmt.Errorf("event_key is required")
	}
	if !a.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, a.Category)
	}
	switch a.Provenance {
	case ProvenanceAuto, ProvenanceUser:
	default:
		return fmt.Errorf("invalid provenance %q", a.Provenance)
	}
	return nil
}

// AnnotationPatch is a direct user edit. Nil fields are left unchanged;
// an empty ProjectID or NotesURL clears the link.
type AnnotationPatch struct {
	Category  *Category `json:"category,omitempty"`
	IsMajor   *bool     `json:"is_major,omitempty"`
	ProjectID *string   `json:"project_id,omitempty"`
	NotesURL  *string   `json:"notes_url,omitempty"`
}

// Apply merges the patch into a, which must not be nil.
func (p AnnotationPatch) Apply(a *Annotation) {
	if p.Category != nil {
		a.Category = *p.Category
	}
	if p.IsMajor != nil {
		a.IsMajor = *p.IsMajor
	}
	if p.ProjectID != nil {
		a.ProjectID = *p.ProjectID
	}
	if p.NotesURL != nil {
		a.NotesURL = *p.NotesURL
	}
}

// Validate checks the patch before it is applied.
func (p AnnotationPatch) Validate() error {
	if p.Category != nil && !p.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, *p.Category)
	}
	return nil
}
