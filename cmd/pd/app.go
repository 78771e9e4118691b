package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/auth"
	"github.com/mschirtzinger/personal-dash/internal/daemon"
	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/provider/fake"
	"github.com/mschirtzinger/personal-dash/internal/provider/google"
	"github.com/mschirtzinger/personal-dash/internal/registry"
	"github.com/mschirtzinger/personal-dash/internal/sync"
)

// fatalf prints "Error: ..." to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}

// checkNotConnected exits with a reconnect hint when err is ErrNotConnected.
func checkNotConnected(err error) {
	if errors.Is(err, provider.ErrNotConnected) {
		fatalf("%v\nRun 'pd auth connect' first, or pass --fake to use demo calendars", err)
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// logOutput receives component logs; the daemon points it at its log file.
var logOutput io.Writer = os.Stderr

// componentLogger logs with --verbose and is silent otherwise.
func componentLogger(component string) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return daemon.NewLogger(logOutput, component)
}

func openStore(ctx context.Context) *db.DB {
	store, err := db.OpenDriver(ctx, cfg.DB.Driver, cfg.DB.Path)
	if err != nil {
		fatalf("failed to open database %s: %v", cfg.DB.Path, err)
	}
	return store
}

func newAuthManager(store *db.DB, logger *log.Logger) *auth.Manager {
	return auth.New(auth.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	}, store, logger)
}

// newProvider returns the demo provider with --fake, otherwise a rate-limited
// Google client authorized from the stored token.
func newProvider(ctx context.Context, store *db.DB, logger *log.Logger) (provider.Provider, error) {
	if useFake {
		return fake.NewDemo(time.Now()), nil
	}
	ts, err := newAuthManager(store, logger).TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	client, err := google.NewFromTokenSource(ctx, ts)
	if err != nil {
		return nil, err
	}
	return provider.NewRateLimited(client, cfg.Sync.RequestsPerSecond, cfg.Sync.Burst), nil
}

func engineConfig(observers ...sync.Observer) sync.Config {
	c := sync.DefaultConfig()
	c.Concurrency = cfg.Sync.Concurrency
	c.LookBehind = time.Duration(cfg.Sync.LookBehindDays) * 24 * time.Hour
	c.MaxWindowAge = time.Duration(cfg.Sync.MaxWindowAgeDays) * 24 * time.Hour
	if len(observers) > 0 {
		c.Observer = sync.Observers(observers)
	}
	return c
}

// pipeline bundles what sync-capable commands need.
type pipeline struct {
	store    *db.DB
	registry *registry.Registry
	engine   *sync.Engine
}

func newPipeline(ctx context.Context, store *db.DB, observers ...sync.Observer) *pipeline {
	p, err := newProvider(ctx, store, componentLogger("auth"))
	if err != nil {
		checkNotConnected(err)
		fatalf("%v", err)
	}
	return &pipeline{
		store:    store,
		registry: registry.New(store, p, componentLogger("registry")),
		engine:   sync.New(store, p, engineConfig(observers...), componentLogger("sync")),
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("failed to encode JSON: %v", err)
	}
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
