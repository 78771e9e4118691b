package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/schema"
	"github.com/mschirtzinger/personal-dash/internal/sync"
)

// ErrCycleRunning is returned by RunCycle while another cycle is in progress.
var ErrCycleRunning = errors.New("sync cycle already running")

// Refresher refreshes the calendar registry. *registry.Registry implements it.
type Refresher interface {
	Refresh(ctx context.Context) ([]*schema.Calendar, error)
}

// SettingsStore supplies the refresh interval. *db.DB implements it.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*schema.Settings, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// Schedule is a cron expression. Empty means "@every <refresh interval>m"
	// using the interval stored in settings.
	Schedule string

	// ConfigPath is watched for changes; empty disables watching.
	ConfigPath string

	// DebounceInterval batches rapid config file writes together.
	DebounceInterval time.Duration

	// Reload re-reads the config file and returns its schedule. Required
	// when ConfigPath is set.
	Reload func() (string, error)

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// CycleResult describes the last completed cycle.
type CycleResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Calendars  int
	Report     *sync.Report
	Err        error
}

// Daemon runs registry refresh plus sync on a schedule.
type Daemon struct {
	registry Refresher
	syncer   sync.Syncer
	settings SettingsStore
	config   *Config
	logger   *log.Logger

	cycleMu stdsync.Mutex

	mu       stdsync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	last     *CycleResult
	cycles   int

	ctx context.Context
	wg  stdsync.WaitGroup
}

// New creates a Daemon.
func New(registry Refresher, syncer sync.Syncer, settings SettingsStore, config *Config) (*Daemon, error) {
	if registry == nil || syncer == nil || settings == nil {
		return nil, fmt.Errorf("registry, syncer and settings are required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.ConfigPath != "" && config.Reload == nil {
		return nil, fmt.Errorf("reload function is required when watching a config file")
	}

	d := &Daemon{
		registry: registry,
		syncer:   syncer,
		settings: settings,
		config:   config,
		logger:   config.Logger,
		ctx:      context.Background(),
	}
	d.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(d.logger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(d.logger)),
	))
	return d, nil
}

// RunCycle refreshes the registry and syncs every selected calendar.
// It returns ErrCycleRunning instead of waiting when a cycle is in progress.
func (d *Daemon) RunCycle(ctx context.Context) error {
	if !d.cycleMu.TryLock() {
		return ErrCycleRunning
	}
	defer d.cycleMu.Unlock()

	res := &CycleResult{StartedAt: time.Now()}
	defer func() {
		res.FinishedAt = time.Now()
		d.mu.Lock()
		d.last = res
		d.cycles++
		d.mu.Unlock()
	}()

	cals, err := d.registry.Refresh(ctx)
	if err != nil {
		res.Err = fmt.Errorf("failed to refresh calendars: %w", err)
		return res.Err
	}
	res.Calendars = len(cals)

	report, err := d.syncer.SyncAll(ctx)
	res.Report = report
	res.Err = err
	if err != nil {
		return err
	}
	d.logger.Printf("Cycle complete in %v: %d calendar(s) synced, %d event(s) upserted",
		time.Since(res.StartedAt).Round(time.Millisecond), report.CalendarsProcessed, report.EventsUpserted)
	return nil
}

// LastCycle returns the most recent cycle result, or nil.
func (d *Daemon) LastCycle() *CycleResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Cycles returns how many cycles have completed.
func (d *Daemon) Cycles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycles
}

// Schedule returns the active cron spec.
func (d *Daemon) Schedule() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schedule
}

// scheduleSpec resolves the configured or settings-derived spec.
func (d *Daemon) scheduleSpec(ctx context.Context, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	s, err := d.settings.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	return fmt.Sprintf("@every %dm", s.RefreshIntervalMinutes), nil
}

// Reschedule replaces the cron entry with spec. An unchanged spec is a no-op.
func (d *Daemon) Reschedule(spec string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if spec == d.schedule {
		return nil
	}
	id, err := d.cron.AddFunc(spec, d.tick)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if d.entry != 0 {
		d.cron.Remove(d.entry)
	}
	d.entry = id
	d.logger.Printf("Schedule set to %q (was %q)", spec, d.schedule)
	d.schedule = spec
	return nil
}

// tick is the cron job body.
func (d *Daemon) tick() {
	d.runLogged(d.ctx)

	// The refresh interval may have changed through `pd settings set`.
	d.mu.Lock()
	configured := d.config.Schedule
	d.mu.Unlock()
	if configured == "" {
		if spec, err := d.scheduleSpec(d.ctx, ""); err == nil {
			if err := d.Reschedule(spec); err != nil {
				d.logger.Printf("WARNING: %v", err)
			}
		}
	}
}

func (d *Daemon) runLogged(ctx context.Context) {
	err := d.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleRunning):
		d.logger.Printf("Previous cycle still running, skipping")
	case errors.Is(err, provider.ErrNotConnected):
		d.logger.Printf("WARNING: Calendar account not connected; run 'pd auth connect'")
	default:
		d.logger.Printf("WARNING: Cycle failed: %v", err)
	}
}

// Start runs an initial cycle, starts the scheduler and config watcher, and
// blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Println("Starting daemon")
	d.ctx = ctx

	spec, err := d.scheduleSpec(ctx, d.config.Schedule)
	if err != nil {
		return err
	}
	if err := d.Reschedule(spec); err != nil {
		return err
	}

	d.runLogged(ctx)
	d.cron.Start()

	var watcher *ConfigWatcher
	if d.config.ConfigPath != "" {
		watcher, err = NewConfigWatcher(d.config.DebounceInterval)
		if err != nil {
			return err
		}
		if err := watcher.Start(d.config.ConfigPath); err != nil {
			_ = watcher.Stop()
			return err
		}
		d.logger.Printf("Watching: %s", d.config.ConfigPath)
		d.wg.Add(1)
		go d.watchConfig(ctx, watcher)
	}

	<-ctx.Done()
	d.logger.Println("Shutdown signal received")

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			d.logger.Printf("Error closing watcher: %v", err)
		}
	}
	d.wg.Wait()
	return d.Stop()
}

// Stop halts the scheduler and waits for a running cycle to finish.
func (d *Daemon) Stop() error {
	d.logger.Println("Stopping daemon")
	<-d.cron.Stop().Done()
	d.logger.Println("Daemon stopped")
	return nil
}

func (d *Daemon) watchConfig(ctx context.Context, watcher *ConfigWatcher) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-watcher.Changes():
			if !ok {
				return
			}
			d.reloadConfig(ctx)

		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}
			d.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) reloadConfig(ctx context.Context) {
	configured, err := d.config.Reload()
	if err != nil {
		d.logger.Printf("WARNING: Failed to reload config, keeping schedule %q: %v", d.Schedule(), err)
		return
	}
	d.mu.Lock()
	d.config.Schedule = configured
	d.mu.Unlock()

	spec, err := d.scheduleSpec(ctx, configured)
	if err != nil {
		d.logger.Printf("WARNING: %v", err)
		return
	}
	if err := d.Reschedule(spec); err != nil {
		d.logger.Printf("WARNING: %v", err)
	}
}
