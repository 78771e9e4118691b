package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
	"github.com/mschirtzinger/personal-dash/internal/sync"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "dash.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func startServer(t *testing.T, config *Config) *Server {
	t.Helper()
	config.Addr = "127.0.0.1:0"
	config.Logger = log.New(io.Discard, "", 0)
	server := NewServer(config)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Addr: "127.0.0.1:0", Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.GetAddr() == "127.0.0.1:0" {
		t.Error("GetAddr() should report the bound port")
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketWelcomeCarriesStats(t *testing.T) {
	store := setupTestDB(t)
	server := startServer(t, &Config{Store: store})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStats {
		t.Fatalf("welcome type = %s, want %s", msg.Type, MessageTypeStats)
	}
	var stats db.Stats
	if err := json.Unmarshal(msg.Data, &stats); err != nil {
		t.Fatalf("welcome data is not stats: %v", err)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("ClientCount() = %d, want 1", count)
	}
}

func TestHandlerBroadcastsSyncProgress(t *testing.T) {
	store := setupTestDB(t)
	server := startServer(t, &Config{Store: store})
	handler := NewHandler(server, store, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn) // welcome

	handler.SyncStarted([]string{"a@example.com"})
	handler.CalendarSynced(sync.CalendarReport{CalendarID: "a@example.com", EventsUpserted: 2})
	handler.SyncComplete(&sync.Report{CalendarsProcessed: 1, EventsUpserted: 2, LastSyncAt: time.Now()})

	want := []MessageType{MessageTypeSyncStarted, MessageTypeCalendarSynced, MessageTypeSyncComplete, MessageTypeStats}
	for _, typ := range want {
		if got := readMessage(t, ctx, conn); got.Type != typ {
			t.Fatalf("message type = %s, want %s", got.Type, typ)
		}
	}
}

func TestSyncCompleteMarksAborted(t *testing.T) {
	server := startServer(t, &Config{})
	handler := NewHandler(server, nil, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)

	handler.SyncComplete(&sync.Report{CalendarsProcessed: 1})
	msg := readMessage(t, ctx, conn)
	var data SyncCompleteData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if !data.Aborted {
		t.Error("batch without LastSyncAt should be reported as aborted")
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pd_up 1\n")
	})
	server := NewServer(&Config{Metrics: metrics, Logger: log.New(io.Discard, "", 0)})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	var health map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("health = %v, want status ok", health)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "pd_up 1\n" {
		t.Errorf("metrics body = %q", body)
	}

	resp, err = http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET /api/events failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/api/events without a store = %d, want 404", resp.StatusCode)
	}
}

func TestEventsAPI(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	for _, ev := range []*schema.Event{
		{Key: "c:1", CalendarID: "c", RemoteID: "1", Title: "Birthday", Start: "2026-05-01", Status: schema.StatusConfirmed},
		{Key: "c:2", CalendarID: "c", RemoteID: "2", Title: "Gone", Start: "2026-05-02", Status: schema.StatusCancelled, Deleted: true},
	} {
		if err := store.UpsertEvent(ctx, ev); err != nil {
			t.Fatalf("UpsertEvent() failed: %v", err)
		}
	}

	server := NewServer(&Config{Store: store, Logger: log.New(io.Discard, "", 0)})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	tests := []struct {
		query  string
		status int
		count  int
	}{
		{"", http.StatusOK, 1},
		{"?include_deleted=true", http.StatusOK, 2},
		{"?from=2026-05-02", http.StatusOK, 0},
		{"?category=unknown", http.StatusOK, 1},
		{"?category=nope", http.StatusBadRequest, 0},
		{"?include_deleted=maybe", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + "/api/events" + tt.query)
		if err != nil {
			t.Fatalf("GET %s failed: %v", tt.query, err)
		}
		var body struct {
			Events []json.RawMessage `json:"events"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.query, resp.StatusCode, tt.status)
			continue
		}
		if len(body.Events) != tt.count {
			t.Errorf("GET %s returned %d events, want %d", tt.query, len(body.Events), tt.count)
		}
	}
}
