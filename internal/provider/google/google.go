// Package google adapts the Google Calendar v3 API to provider.Provider.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mschirtzinger/personal-dash/internal/provider"
)

// Name is the provider name reported by Client.
const Name = "google"

// Client is a provider.Provider backed by Google Calendar.
type Client struct {
	svc *calendar.Service
}

// New creates a Client. Callers normally pass option.WithTokenSource.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// NewFromTokenSource creates a Client authenticated with ts.
func NewFromTokenSource(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	return New(ctx, option.WithTokenSource(ts))
}

func (c *Client) Name() string {
	return Name
}

// ListCalendars returns the user's calendar list in a single page.
func (c *Client) ListCalendars(ctx context.Context, maxResults int) ([]provider.Calendar, error) {
	call := c.svc.CalendarList.List().Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(int64(maxResults))
	}
	list, err := call.Do()
	if err != nil {
		return nil, mapError("list calendars", err)
	}

	out := make([]provider.Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		if item == nil {
			continue
		}
		out = append(out, provider.Calendar{
			ID:         item.Id,
			Summary:    item.Summary,
			Primary:    item.Primary,
			AccessRole: item.AccessRole,
			TimeZone:   item.TimeZone,
		})
	}
	return out, nil
}

// ListEvents fetches one page of events.
//
// The API rejects timeMin/timeMax combined with a syncToken, so the window is
// only sent on full queries. A token is bound to the window of the query that
// issued it, which keeps incremental results inside the same range.
func (c *Client) ListEvents(ctx context.Context, req provider.ListEventsRequest) (*provider.EventPage, error) {
	call := c.svc.Events.List(req.CalendarID).
		ShowDeleted(req.ShowDeleted).
		SingleEvents(req.SingleEvents).
		Context(ctx)
	if req.MaxResults > 0 {
		call = call.MaxResults(int64(req.MaxResults))
	}
	if req.SyncToken != "" {
		call = call.SyncToken(req.SyncToken)
	} else {
		if !req.TimeMin.IsZero() {
			call = call.TimeMin(req.TimeMin.UTC().Format(time.RFC3339))
		}
		if !req.TimeMax.IsZero() {
			call = call.TimeMax(req.TimeMax.UTC().Format(time.RFC3339))
		}
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	res, err := call.Do()
	if err != nil {
		return nil, mapError("list events", err)
	}

	page := &provider.EventPage{
		Items:         make([]provider.Event, 0, len(res.Items)),
		NextPageToken: res.NextPageToken,
		NextSyncToken: res.NextSyncToken,
	}
	for _, item := range res.Items {
		if item == nil {
			continue
		}
		page.Items = append(page.Items, convertEvent(item))
	}
	return page, nil
}

func convertEvent(item *calendar.Event) provider.Event {
	ev := provider.Event{
		ID:          item.Id,
		ICalUID:     item.ICalUID,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       convertTime(item.Start),
		End:         convertTime(item.End),
		Updated:     item.Updated,
		Status:      item.Status,
	}
	if raw, err := json.Marshal(item); err == nil {
		ev.Raw = raw
	}
	return ev
}

func convertTime(t *calendar.EventDateTime) provider.EventTime {
	if t == nil {
		return provider.EventTime{}
	}
	return provider.EventTime{Date: t.Date, DateTime: t.DateTime}
}

// mapError translates API and transport failures into provider errors.
func mapError(op string, err error) error {
	if errors.Is(err, provider.ErrNotConnected) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || rerr.Response == nil || rerr.Response.StatusCode < 500 {
			return fmt.Errorf("%s: %w: %v", op, provider.ErrNotConnected, err)
		}
		return &provider.TransientError{Op: op, Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusGone:
			return fmt.Errorf("%s: %w", op, provider.ErrTokenExpired)
		case gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %v", op, provider.ErrNotConnected, err)
		case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500, isRateLimited(gerr):
			return &provider.TransientError{Op: op, Err: err}
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var uerr *url.Error
	var nerr net.Error
	if errors.As(err, &uerr) || errors.As(err, &nerr) {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("failed to %s: %w", op, err)
		}
		return &provider.TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isRateLimited(gerr *googleapi.Error) bool {
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}
