package provider

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestEventTime(t *testing.T) {
	allDay := EventTime{Date: "2026-12-25"}
	if !allDay.IsDateOnly() || allDay.Value() != "2026-12-25" {
		t.Errorf("date-only value misreported: %+v", allDay)
	}

	timed := EventTime{Date: "2026-12-25", DateTime: "2026-12-25T10:00:00Z"}
	if timed.IsDateOnly() {
		t.Error("date-time value reported as date-only")
	}
	if timed.Value() != "2026-12-25T10:00:00Z" {
		t.Errorf("Value() = %q, want date-time", timed.Value())
	}
}

func TestTransientError(t *testing.T) {
	err := error(&TransientError{Op: "list events", Err: io.ErrUnexpectedEOF})
	if !IsTransient(err) {
		t.Error("IsTransient() = false")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("TransientError does not unwrap to its cause")
	}
	if IsTransient(ErrTokenExpired) {
		t.Error("ErrTokenExpired reported as transient")
	}
}

type countingProvider struct {
	calls int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) ListCalendars(ctx context.Context, maxResults int) ([]Calendar, error) {
	p.calls++
	return []Calendar{{ID: "primary", Primary: true}}, nil
}

func (p *countingProvider) ListEvents(ctx context.Context, req ListEventsRequest) (*EventPage, error) {
	p.calls++
	return &EventPage{}, nil
}

func TestNewRateLimited(t *testing.T) {
	inner := &countingProvider{}
	if got := NewRateLimited(inner, 0, 0); got != Provider(inner) {
		t.Error("rps <= 0 should return the provider unchanged")
	}

	limited := NewRateLimited(inner, 1000, 5)
	if limited.Name() != "counting" {
		t.Errorf("Name() = %q", limited.Name())
	}
	ctx := context.Background()
	if _, err := limited.ListCalendars(ctx, 10); err != nil {
		t.Fatalf("ListCalendars failed: %v", err)
	}
	if _, err := limited.ListEvents(ctx, ListEventsRequest{CalendarID: "primary"}); err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewRateLimited(inner, 0.001, 1)
	_, _ = slow.ListCalendars(ctx, 10) // consume the only token
	if _, err := slow.ListCalendars(cancelled, 10); err == nil {
		t.Error("expected error from cancelled context")
	}
}
