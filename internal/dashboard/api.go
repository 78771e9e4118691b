package dashboard

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
)

// Store is the read surface behind the JSON API. *db.DB implements it.
type Store interface {
	GetStats(ctx context.Context) (*db.Stats, error)
	GetSettings(ctx context.Context) (*schema.Settings, error)
	ListCalendars(ctx context.Context) ([]*schema.Calendar, error)
	ListEvents(ctx context.Context, filter db.EventFilter) ([]*db.EventRecord, error)
}

type apiHandler struct {
	store  Store
	logger *log.Logger
}

func (a *apiHandler) fail(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		a.logger.Printf("WARNING: API error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *apiHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.GetStats(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	settings, err := a.store.GetSettings(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":    stats,
		"settings": settings,
	})
}

func (a *apiHandler) calendars(w http.ResponseWriter, r *http.Request) {
	cals, err := a.store.ListCalendars(r.Context())
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendars": cals})
}

func (a *apiHandler) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.EventFilter{
		From:       q.Get("from"),
		To:         q.Get("to"),
		CalendarID: q.Get("calendar"),
	}
	if v := q.Get("include_deleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			a.fail(w, http.StatusBadRequest, err)
			return
		}
		filter.IncludeDeleted = b
	}
	if v := q.Get("category"); v != "" {
		c, err := schema.ParseCategory(v)
		if err != nil {
			a.fail(w, http.StatusBadRequest, err)
			return
		}
		filter.Category = c
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			a.fail(w, http.StatusBadRequest, strconv.ErrSyntax)
			return
		}
		filter.Limit = n
	}

	recs, err := a.store.ListEvents(r.Context(), filter)
	if err != nil {
		a.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": recs})
}
