package dashboard

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/sync"
)

// SyncStartedData lists the calendars of a starting batch
type SyncStartedData struct {
	CalendarIDs []string `json:"calendar_ids"`
}

// SyncCompleteData summarises a finished batch
type SyncCompleteData struct {
	CalendarsProcessed  int       `json:"calendars_processed"`
	CalendarsFailed     int       `json:"calendars_failed"`
	EventsUpserted      int       `json:"events_upserted"`
	EventsDeletedMarked int       `json:"events_deleted_marked"`
	TokenExpirations    int       `json:"token_expirations"`
	LastSyncAt          time.Time `json:"last_sync_at,omitempty"`
	Aborted             bool      `json:"aborted"`
}

// Handler turns engine callbacks into dashboard messages.
type Handler struct {
	server *Server
	store  Store
	logger *log.Logger
}

var _ sync.Observer = (*Handler)(nil)

// NewHandler creates a handler broadcasting on server. store may be nil, in
// which case no stats messages are sent.
func NewHandler(server *Server, store Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{server: server, store: store, logger: logger}
}

// SyncStarted implements sync.Observer.
func (h *Handler) SyncStarted(calendarIDs []string) {
	h.server.BroadcastData(MessageTypeSyncStarted, SyncStartedData{CalendarIDs: calendarIDs})
}

// CalendarSynced implements sync.Observer.
func (h *Handler) CalendarSynced(r sync.CalendarReport) {
	h.server.BroadcastData(MessageTypeCalendarSynced, r)
}

// SyncComplete implements sync.Observer.
func (h *Handler) SyncComplete(r *sync.Report) {
	h.server.BroadcastData(MessageTypeSyncComplete, SyncCompleteData{
		CalendarsProcessed:  r.CalendarsProcessed,
		CalendarsFailed:     r.CalendarsFailed,
		EventsUpserted:      r.EventsUpserted,
		EventsDeletedMarked: r.EventsDeletedMarked,
		TokenExpirations:    r.TokenExpirations,
		LastSyncAt:          r.LastSyncAt,
		Aborted:             r.LastSyncAt.IsZero(),
	})
	h.BroadcastStats(context.Background())
}

// BroadcastStats sends current store counts to all clients.
func (h *Handler) BroadcastStats(ctx context.Context) {
	if h.store == nil {
		return
	}
	stats, err := h.store.GetStats(ctx)
	if err != nil {
		h.logger.Printf("WARNING: Failed to load stats: %v", err)
		return
	}
	h.server.BroadcastData(MessageTypeStats, stats)
}
