// Package fake provides an in-memory provider.Provider with sync-token
// semantics close to Google Calendar's.
//
// Every mutation bumps a per-calendar version. A full query returns the
// events inside the requested window; an incremental query returns every
// event changed since the version encoded in its sync token, regardless of
// window. Error injection hooks let tests exercise token expiry, transient
// failures and disconnected accounts. It also backs `pd --fake`.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	stdsync "sync"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// Name is the provider name reported by Provider.
const Name = "fake"

type entry struct {
	event   provider.Event
	version int
}

type calendarData struct {
	info    provider.Calendar
	events  map[string]*entry
	version int
}

// Provider is an in-memory calendar source. The zero value is not usable;
// call New.
type Provider struct {
	mu stdsync.Mutex

	// PageSize caps items per page. Zero means 250.
	PageSize int

	calendars    map[string]*calendarData
	order        []string
	expire       map[string]int
	failures     map[string]error
	notConnected bool
	omitSync     map[string]bool
	requests     []provider.ListEventsRequest
}

// New creates an empty Provider.
func New() *Provider {
	return &Provider{
		calendars: make(map[string]*calendarData),
		expire:    make(map[string]int),
		failures:  make(map[string]error),
		omitSync:  make(map[string]bool),
	}
}

func (p *Provider) Name() string {
	return Name
}

// AddCalendar registers or replaces a calendar list entry.
func (p *Provider) AddCalendar(c provider.Calendar) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cd, ok := p.calendars[c.ID]; ok {
		cd.info = c
		return
	}
	p.calendars[c.ID] = &calendarData{info: c, events: make(map[string]*entry)}
	p.order = append(p.order, c.ID)
}

// PutEvent inserts or updates an event and bumps the calendar version.
func (p *Provider) PutEvent(calendarID string, ev provider.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cd := p.calendar(calendarID)
	cd.version++
	if ev.Status == "" {
		ev.Status = schema.StatusConfirmed
	}
	if ev.Updated == "" {
		ev.Updated = time.Now().UTC().Format(time.RFC3339)
	}
	if ev.Raw == nil {
		ev.Raw, _ = json.Marshal(map[string]any{"id": ev.ID, "summary": ev.Summary, "status": ev.Status})
	}
	cd.events[ev.ID] = &entry{event: ev, version: cd.version}
}

// CancelEvent marks an event cancelled, as the remote does on deletion.
func (p *Provider) CancelEvent(calendarID, eventID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cd := p.calendar(calendarID)
	e, ok := cd.events[eventID]
	if !ok {
		return false
	}
	cd.version++
	e.event.Status = schema.StatusCancelled
	e.version = cd.version
	return true
}

// ExpireToken makes the next n requests carrying a sync token for the
// calendar fail with provider.ErrTokenExpired.
func (p *Provider) ExpireToken(calendarID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expire[calendarID] = n
}

// FailCalendar makes every ListEvents for the calendar return err. A nil err
// clears the failure.
func (p *Provider) FailCalendar(calendarID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, calendarID)
		return
	}
	p.failures[calendarID] = err
}

// SetNotConnected makes every call return provider.ErrNotConnected.
func (p *Provider) SetNotConnected(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notConnected = v
}

// OmitSyncToken stops the calendar from issuing a next sync token.
func (p *Provider) OmitSyncToken(calendarID string, v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitSync[calendarID] = v
}

// Requests returns a copy of every ListEvents request received.
func (p *Provider) Requests() []provider.ListEventsRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.ListEventsRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// ResetRequests clears the request log.
func (p *Provider) ResetRequests() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = nil
}

func (p *Provider) ListCalendars(ctx context.Context, maxResults int) ([]provider.Calendar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.notConnected {
		return nil, provider.ErrNotConnected
	}
	out := make([]provider.Calendar, 0, len(p.order))
	for _, id := range p.order {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		out = append(out, p.calendars[id].info)
	}
	return out, nil
}

func (p *Provider) ListEvents(ctx context.Context, req provider.ListEventsRequest) (*provider.EventPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if p.notConnected {
		return nil, provider.ErrNotConnected
	}
	if err, ok := p.failures[req.CalendarID]; ok {
		return nil, err
	}
	cd, ok := p.calendars[req.CalendarID]
	if !ok {
		return nil, fmt.Errorf("calendar %q not found", req.CalendarID)
	}

	since := 0
	if req.SyncToken != "" {
		if p.expire[req.CalendarID] > 0 {
			p.expire[req.CalendarID]--
			return nil, provider.ErrTokenExpired
		}
		v, err := parseSyncToken(req.SyncToken)
		if err != nil || v > cd.version {
			return nil, provider.ErrTokenExpired
		}
		since = v
	}

	matched := make([]*entry, 0, len(cd.events))
	for _, e := range cd.events {
		if req.SyncToken != "" {
			if e.version <= since {
				continue
			}
		} else {
			if !req.ShowDeleted && e.event.Status == schema.StatusCancelled {
				continue
			}
			if !inWindow(e.event, req.TimeMin, req.TimeMax) {
				continue
			}
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].version != matched[j].version {
			return matched[i].version < matched[j].version
		}
		return matched[i].event.ID < matched[j].event.ID
	})

	offset := 0
	if req.PageToken != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(req.PageToken, "o"))
		if err != nil || n < 0 || n > len(matched) {
			return nil, fmt.Errorf("invalid page token %q", req.PageToken)
		}
		offset = n
	}
	size := p.PageSize
	if size <= 0 {
		size = 250
	}
	if req.MaxResults > 0 && req.MaxResults < size {
		size = req.MaxResults
	}
	end := offset + size
	if end > len(matched) {
		end = len(matched)
	}

	page := &provider.EventPage{Items: make([]provider.Event, 0, end-offset)}
	for _, e := range matched[offset:end] {
		page.Items = append(page.Items, e.event)
	}
	if end < len(matched) {
		page.NextPageToken = "o" + strconv.Itoa(end)
	} else if !p.omitSync[req.CalendarID] {
		page.NextSyncToken = "v" + strconv.Itoa(cd.version)
	}
	return page, nil
}

func (p *Provider) calendar(id string) *calendarData {
	cd, ok := p.calendars[id]
	if !ok {
		cd = &calendarData{info: provider.Calendar{ID: id, Summary: id}, events: make(map[string]*entry)}
		p.calendars[id] = cd
		p.order = append(p.order, id)
	}
	return cd
}

func parseSyncToken(tok string) (int, error) {
	if !strings.HasPrefix(tok, "v") {
		return 0, fmt.Errorf("malformed sync token %q", tok)
	}
	return strconv.Atoi(tok[1:])
}

// inWindow reports whether the event overlaps [min, max). Zero bounds are open.
func inWindow(ev provider.Event, min, max time.Time) bool {
	start, err := schema.ParseEventTime(ev.Start.Value(), time.UTC)
	if err != nil {
		return true
	}
	end, err := schema.ParseEventTime(ev.End.Value(), time.UTC)
	if err != nil {
		end = start
	}
	if !max.IsZero() && !start.Before(max) {
		return false
	}
	if !min.IsZero() && !end.After(min) && !start.Equal(min) {
		return false
	}
	return true
}
