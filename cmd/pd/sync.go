package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/config"
	"github.com/mschirtzinger/personal-dash/internal/daemon"
	"github.com/mschirtzinger/personal-dash/internal/dashboard"
	"github.com/mschirtzinger/personal-dash/internal/metrics"
	"github.com/mschirtzinger/personal-dash/internal/sync"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Refresh calendars and mirror events",
	Long: `Refresh the calendar list, then mirror every selected calendar.

Each calendar is synced incrementally from its stored sync token. A calendar
without a token, or whose window is too old, gets a full resync over
[now - look_behind_days, now + horizon_days). A rejected token falls back to
one full resync.

A calendar that fails does not stop the others; the command exits 1 if any
calendar failed.`,
	Run: func(cmd *cobra.Command, args []string) {
		calendarID, _ := cmd.Flags().GetString("calendar")
		noRefresh, _ := cmd.Flags().GetBool("no-refresh")
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()
		p := newPipeline(ctx, store)

		if !noRefresh {
			if _, err := p.registry.Refresh(ctx); err != nil {
				checkNotConnected(err)
				fatalf("%v", err)
			}
		}

		start := time.Now()
		var report *sync.Report
		var err error
		if calendarID != "" {
			var cr *sync.CalendarReport
			cr, err = p.engine.SyncCalendar(ctx, calendarID)
			if cr != nil {
				report = &sync.Report{Calendars: []sync.CalendarReport{*cr}}
			}
		} else {
			if !jsonOut {
				fmt.Printf("%s Syncing...\n", ui.RenderAccent("→"))
			}
			report, err = p.engine.SyncAll(ctx)
		}
		checkNotConnected(err)

		if jsonOut {
			printJSON(report)
		} else if report != nil {
			printReport(report, time.Since(start))
		}
		if err != nil {
			fatalf("%v", err)
		}
	},
}

func printReport(r *sync.Report, elapsed time.Duration) {
	rows := make([][]string, 0, len(r.Calendars))
	for _, c := range r.Calendars {
		mode := "incremental"
		switch {
		case c.TokenExpired:
			mode = "token expired"
		case c.Rollover:
			mode = "rollover"
		case c.FullSync:
			mode = "full"
		}
		result := ui.RenderPass("ok")
		if c.Error != "" {
			result = ui.RenderFail(c.Error)
		}
		rows = append(rows, []string{
			c.CalendarID, mode,
			fmt.Sprint(c.Pages), fmt.Sprint(c.EventsUpserted), fmt.Sprint(c.EventsDeletedMarked),
			result,
		})
	}
	if len(rows) > 0 {
		fmt.Println(ui.Table([]string{"CALENDAR", "MODE", "PAGES", "UPSERTED", "DELETED", "RESULT"}, rows))
	}

	fmt.Printf("\n%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed.Round(time.Millisecond))
	fmt.Printf("   Calendars: %d (%d failed)\n", len(r.Calendars), r.CalendarsFailed)
	fmt.Printf("   Events upserted: %d, marked deleted: %d\n", r.EventsUpserted, r.EventsDeletedMarked)
	fmt.Printf("   Annotations written: %d\n", r.AnnotationsWritten)
	if r.TokenExpirations > 0 {
		fmt.Printf("   %s %d sync token(s) expired and were rebuilt\n", ui.RenderWarn("⚠"), r.TokenExpirations)
	}
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show mirror, account and per-calendar sync status",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		stats, err := store.GetStats(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		settings, err := store.GetSettings(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		states, err := store.ListSyncStates(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		account, err := newAuthManager(store, componentLogger("auth")).Status(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOut {
			printJSON(map[string]any{
				"database":    cfg.DB.Path,
				"stats":       stats,
				"settings":    settings,
				"sync_states": states,
				"account":     account,
			})
			return
		}

		fmt.Printf("\n%s personal-dash status\n\n", ui.RenderAccent("📅"))
		fmt.Printf("   Database: %s\n", cfg.DB.Path)
		if account.Connected {
			fmt.Printf("   Account: %s\n", ui.RenderPass("connected"))
		} else {
			fmt.Printf("   Account: %s (run 'pd auth connect')\n", ui.RenderWarn("not connected"))
		}
		last := "never"
		if settings.LastSyncAt != nil {
			last = formatWhen(*settings.LastSyncAt)
		}
		fmt.Printf("   Last sync: %s\n", last)
		fmt.Printf("   Horizon: %d days, refresh every %d minutes\n", settings.HorizonDays, settings.RefreshIntervalMinutes)
		fmt.Printf("   Calendars: %d (%d selected)\n", stats.Calendars, stats.SelectedCalendars)
		fmt.Printf("   Events: %d (%d deleted)\n", stats.Events, stats.DeletedEvents)
		fmt.Printf("   Annotations: %d (%d locked)\n", stats.Annotations, stats.LockedAnnotations)
		fmt.Printf("   Projects: %d, open actions: %d\n\n", stats.Projects, stats.OpenActions)

		if len(states) == 0 {
			return
		}
		rows := make([][]string, 0, len(states))
		for _, st := range states {
			token := ui.RenderWarn("none")
			if st.Token != "" {
				token = ui.RenderPass("yes")
			}
			rows = append(rows, []string{
				st.CalendarID, token,
				ui.FormatDay(st.WindowStart) + " → " + ui.FormatDay(st.WindowEnd),
				formatWhen(st.LastSyncAt),
			})
		}
		fmt.Println(ui.Table([]string{"CALENDAR", "TOKEN", "WINDOW", "LAST SYNC"}, rows))
	},
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Sync on a schedule in the background",
	Long: `Run a sync cycle now and then on a schedule until interrupted.

The schedule is daemon.schedule from the config file (any cron expression,
e.g. "*/15 * * * *" or "@hourly"), or every refresh_interval_minutes from
'pd settings'. Edits to the config file are picked up without a restart.

With --dashboard the WebSocket dashboard and Prometheus /metrics are served
on dashboard.host:dashboard.port.`,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")

		logOut, logCloser := daemon.LogWriter(cfg.Log)
		defer logCloser.Close()
		logOutput, verbose = logOut, true

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		m := metrics.New()
		observers := []sync.Observer{m}

		var server *dashboard.Server
		if withDashboard {
			manager := newAuthManager(store, componentLogger("auth"))
			server = dashboard.NewServer(&dashboard.Config{
				Addr:         cfg.Addr(),
				Store:        store,
				Metrics:      m.Handler(),
				AuthStart:    manager.StartHandler(),
				AuthCallback: manager.CallbackHandler(),
				Logger:       componentLogger("dashboard"),
			})
			if err := server.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			defer server.Stop()
			observers = append(observers, dashboard.NewHandler(server, store, componentLogger("dashboard")))
			fmt.Printf("Dashboard: http://%s  (metrics at /metrics)\n", server.GetAddr())
		}

		p := newPipeline(ctx, store, observers...)

		configPath := cfgFile
		if configPath == "" {
			if def, err := config.DefaultPath(); err == nil {
				configPath = def
			}
		}
		dcfg := daemon.DefaultConfig()
		dcfg.Schedule = cfg.Daemon.Schedule
		dcfg.ConfigPath = configPath
		dcfg.DebounceInterval = time.Duration(cfg.Daemon.DebounceMS) * time.Millisecond
		dcfg.Logger = componentLogger("daemon")
		dcfg.Reload = func() (string, error) {
			c, err := config.Load(cfgFile)
			if err != nil {
				return "", err
			}
			return c.Daemon.Schedule, nil
		}

		d, err := daemon.New(p.registry, p.engine, store, dcfg)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Println("Daemon running. Press Ctrl+C to stop...")
		if err := d.Start(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Daemon stopped after %d cycle(s)\n", d.Cycles())
	},
}

func init() {
	syncCmd.Flags().String("calendar", "", "Sync only this calendar id")
	syncCmd.Flags().Bool("no-refresh", false, "Skip refreshing the calendar list")
	syncCmd.Flags().Bool("json", false, "Output the sync report as JSON")
	statusCmd.Flags().Bool("json", false, "Output as JSON")
	daemonCmd.Flags().Bool("dashboard", false, "Serve the dashboard and /metrics while running")

	rootCmd.AddCommand(syncCmd, statusCmd, daemonCmd)
}
