package fake

import (
	"time"

	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// NewDemo returns a Provider seeded with a primary calendar, a UK holiday
// calendar and a shared calendar, with events spread around now.
func NewDemo(now time.Time) *Provider {
	p := New()
	p.AddCalendar(provider.Calendar{ID: "me@example.com", Summary: "Personal", Primary: true, AccessRole: "owner"})
	p.AddCalendar(provider.Calendar{ID: "en.uk#holiday@group.v.calendar.google.com", Summary: "Holidays in United Kingdom", AccessRole: "reader"})
	p.AddCalendar(provider.Calendar{ID: "family@example.com", Summary: "Family", AccessRole: "writer"})

	day := func(offset int) time.Time {
		d := now.AddDate(0, 0, offset)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	timed := func(offset, hour, hours int) (provider.EventTime, provider.EventTime) {
		start := day(offset).Add(time.Duration(hour) * time.Hour)
		return provider.EventTime{DateTime: start.Format(time.RFC3339)},
			provider.EventTime{DateTime: start.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339)}
	}
	allDay := func(offset int) (provider.EventTime, provider.EventTime) {
		return provider.EventTime{Date: day(offset).Format(schema.DateLayout)},
			provider.EventTime{Date: day(offset + 1).Format(schema.DateLayout)}
	}

	s, e := timed(2, 9, 3)
	p.PutEvent("me@example.com", provider.Event{ID: "flight-rome", Summary: "Flight to Rome", Location: "LHR", Start: s, End: e})
	s, e = timed(5, 19, 2)
	p.PutEvent("me@example.com", provider.Event{ID: "dinner-jo", Summary: "Dinner with Jo", Start: s, End: e})
	s, e = timed(-3, 10, 1)
	p.PutEvent("me@example.com", provider.Event{ID: "dentist", Summary: "Dentist", Start: s, End: e})
	s, e = allDay(12)
	p.PutEvent("family@example.com", provider.Event{ID: "mum-bday", Summary: "Mum's Birthday", Start: s, End: e})
	s, e = allDay(40)
	p.PutEvent("family@example.com", provider.Event{ID: "anniv", Summary: "Wedding anniversary", Start: s, End: e})
	s, e = allDay(20)
	p.PutEvent("en.uk#holiday@group.v.calendar.google.com", provider.Event{ID: "bank-holiday", Summary: "Bank holiday", Start: s, End: e})
	return p
}
