package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/dashboard"
	"github.com/mschirtzinger/personal-dash/internal/metrics"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "admin",
	Short:   "Start the WebSocket dashboard and JSON API",
	Long: `Start an HTTP server exposing the mirror.

Routes:
  /ws               live messages (sync_started, calendar_synced, sync_complete, stats)
  /api/stats        store counts and settings
  /api/calendars    known calendars
  /api/events       events (?from=&to=&calendar=&category=&include_deleted=&limit=)
  /auth/start       begin Google authorization
  /health, /metrics

Sync progress is only broadcast by 'pd daemon --dashboard'; this command
pushes a stats message every --stats-interval.

Example usage:
  pd dashboard                   # Start on dashboard.host:dashboard.port
  pd dashboard --port 9000       # Start on custom port`,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("port")
		}
		interval, _ := cmd.Flags().GetDuration("stats-interval")
		if interval <= 0 {
			interval = 30 * time.Second
		}

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		manager := newAuthManager(store, componentLogger("auth"))
		server := dashboard.NewServer(&dashboard.Config{
			Addr:         cfg.Addr(),
			Store:        store,
			Metrics:      metrics.New().Handler(),
			AuthStart:    manager.StartHandler(),
			AuthCallback: manager.CallbackHandler(),
			Logger:       componentLogger("dashboard"),
		})
		if err := server.Start(); err != nil {
			fatalf("failed to start dashboard: %v", err)
		}

		addr := server.GetAddr()
		fmt.Printf("Dashboard server started on http://%s\n", addr)
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", addr)
		fmt.Printf("Health check: http://%s/health\n", addr)
		fmt.Println("\nPress Ctrl+C to stop...")

		handler := dashboard.NewHandler(server, store, componentLogger("dashboard"))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				handler.BroadcastStats(ctx)
			}
		}

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Dashboard server stopped")
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default dashboard.port)")
	dashboardCmd.Flags().Duration("stats-interval", 30*time.Second, "How often to push stats to clients")

	rootCmd.AddCommand(dashboardCmd)
}
