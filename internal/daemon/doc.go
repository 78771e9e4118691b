// Package daemon keeps the local mirror fresh in the background.
//
// # Architecture
//
// The daemon consists of two components:
//
//   - Daemon: runs a cycle (registry refresh, then sync of every selected
//     calendar) at startup and on a cron schedule
//   - ConfigWatcher: debounced fsnotify watch on the config file, so a new
//     daemon.schedule takes effect without a restart
//
// # Scheduling
//
// The schedule is daemon.schedule from the config file when set (any
// robfig/cron spec, e.g. "*/15 * * * *" or "@hourly"), otherwise
// "@every <refresh_interval_minutes>m" from the stored settings. The latter is
// re-read after every tick, so `pd settings set refresh-interval 30` is picked
// up by a running daemon.
//
// Ticks never overlap: the cron chain uses SkipIfStillRunning, and RunCycle
// itself refuses to start while another cycle holds the lock, which also
// covers manual triggers.
//
// # Errors
//
// A failed cycle is logged and the daemon keeps running. A disconnected
// account is logged once per tick with a hint to reconnect.
//
// # Logging
//
// When log.file is configured, LogWriter tees component loggers into a
// lumberjack-rotated file.
package daemon
