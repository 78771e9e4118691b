// Package classify assigns a default category to a calendar event from its
// title and the calendar it belongs to.
//
// Classification is a pure function: identical input always yields the same
// category, and nothing is read from or written to storage. The engine calls
// it for every event whose annotation is not locked by the user.
package classify

import (
	"regexp"
	"strings"

	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// Input carries the signals used to classify an event.
type Input struct {
	Title             string
	CalendarIsHoliday bool
	CalendarSummary   string
}

type rule struct {
	category schema.Category
	pattern  *regexp.Regexp
}

// Rules are evaluated in order; the first match wins.
var rules = []rule{
	{schema.CategoryBirthday, regexp.MustCompile(`(?i)\b(birthday|bday)\b`)},
	{schema.CategoryAnniversary, regexp.MustCompile(`(?i)\banniversary\b`)},
	{schema.CategoryChristmas, regexp.MustCompile(`(?i)\b(christmas|xmas)\b`)},
	{schema.CategoryEaster, regexp.MustCompile(`(?i)\beaster\b`)},
	{schema.CategoryValentines, regexp.MustCompile(`(?i)\bvalentine\b`)},
	{schema.CategoryTravel, regexp.MustCompile(`(?i)\b(flight|hotel|train|airport|airbnb)\b`)},
	{schema.CategorySocial, regexp.MustCompile(`(?i)\b(dinner|lunch|drinks|party)\b`)},
}

// Classify returns the category for an event. Holiday calendars take
// precedence over any title keyword.
func Classify(in Input) schema.Category {
	if in.CalendarIsHoliday || strings.Contains(strings.ToLower(in.CalendarSummary), "holiday") {
		return schema.CategoryHoliday
	}
	for _, r := range rules {
		if r.pattern.MatchString(in.Title) {
			return r.category
		}
	}
	return schema.CategoryUnknown
}
