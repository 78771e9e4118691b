// Package config loads process configuration for pd.
//
// Configuration comes from, in increasing precedence: built-in defaults, a
// TOML file (default ~/.config/personal-dash/config.toml), and PD_*
// environment variables (PD_DB_PATH, PD_GOOGLE_CLIENT_ID, ...). Settings
// that belong to the user's data, such as the horizon, refresh interval and
// calendar selection, live in the database instead.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/mschirtzinger/personal-dash/internal/db"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PD"

// Config is the full process configuration.
type Config struct {
	DB        DBConfig        `mapstructure:"db" toml:"db"`
	Google    GoogleConfig    `mapstructure:"google" toml:"google"`
	Sync      SyncConfig      `mapstructure:"sync" toml:"sync"`
	Daemon    DaemonConfig    `mapstructure:"daemon" toml:"daemon"`
	Dashboard DashboardConfig `mapstructure:"dashboard" toml:"dashboard"`
	Log       LogConfig       `mapstructure:"log" toml:"log"`
}

// DBConfig selects the database file and driver.
type DBConfig struct {
	Path   string `mapstructure:"path" toml:"path"`
	Driver string `mapstructure:"driver" toml:"driver"`
}

// GoogleConfig is the OAuth client registration.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id" toml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" toml:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url" toml:"redirect_url"`
}

// SyncConfig tunes the reconciliation engine and provider client.
type SyncConfig struct {
	Concurrency       int     `mapstructure:"concurrency" toml:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" toml:"burst"`
	LookBehindDays    int     `mapstructure:"look_behind_days" toml:"look_behind_days"`
	MaxWindowAgeDays  int     `mapstructure:"max_window_age_days" toml:"max_window_age_days"`
}

// DaemonConfig controls the background scheduler.
type DaemonConfig struct {
	// Schedule is a cron expression; empty means every refresh interval.
	Schedule   string `mapstructure:"schedule" toml:"schedule"`
	DebounceMS int    `mapstructure:"debounce_ms" toml:"debounce_ms"`
}

// DashboardConfig controls the HTTP/WebSocket server.
type DashboardConfig struct {
	Host string `mapstructure:"host" toml:"host"`
	Port int    `mapstructure:"port" toml:"port"`
}

// LogConfig enables file logging with rotation.
type LogConfig struct {
	File       string `mapstructure:"file" toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days"`
}

// DefaultPath returns ~/.config/personal-dash/config.toml (or the platform
// equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "personal-dash", "config.toml"), nil
}

// DefaultDBPath returns the database location used when db.path is unset.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pd.db"
	}
	return filepath.Join(home, ".local", "share", "personal-dash", "pd.db")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DB: DBConfig{
			Path:   DefaultDBPath(),
			Driver: db.DriverSQLite,
		},
		Google: GoogleConfig{
			RedirectURL: "http://localhost:8080/auth/callback",
		},
		Sync: SyncConfig{
			Concurrency:       1,
			RequestsPerSecond: 5,
			Burst:             5,
			LookBehindDays:    30,
			MaxWindowAgeDays:  7,
		},
		Daemon: DaemonConfig{
			DebounceMS: 500,
		},
		Dashboard: DashboardConfig{
			Host: "localhost",
			Port: 8080,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.DB.Path == "" {
		c.DB.Path = d.DB.Path
	}
	c.DB.Path = expandHome(c.DB.Path)
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	if c.DB.Driver == "" || c.DB.Driver == "sqlite" {
		c.DB.Driver = db.DriverSQLite
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = d.Google.RedirectURL
	}
	if c.Sync.Concurrency < 1 {
		c.Sync.Concurrency = d.Sync.Concurrency
	}
	if c.Sync.Burst < 1 {
		c.Sync.Burst = d.Sync.Burst
	}
	if c.Sync.LookBehindDays <= 0 {
		c.Sync.LookBehindDays = d.Sync.LookBehindDays
	}
	if c.Sync.MaxWindowAgeDays <= 0 {
		c.Sync.MaxWindowAgeDays = d.Sync.MaxWindowAgeDays
	}
	if c.Daemon.DebounceMS <= 0 {
		c.Daemon.DebounceMS = d.Daemon.DebounceMS
	}
	c.Daemon.Schedule = strings.TrimSpace(c.Daemon.Schedule)
	if c.Dashboard.Host == "" {
		c.Dashboard.Host = d.Dashboard.Host
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = d.Dashboard.Port
	}
	if c.Log.File != "" {
		c.Log.File = expandHome(c.Log.File)
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = 0
	}
}

// Validate checks if the Config has valid field values.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case db.DriverSQLite, db.DriverLibSQL:
	default:
		return fmt.Errorf("db.driver must be %q or %q (got %q)", db.DriverSQLite, db.DriverLibSQL, c.DB.Driver)
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be between 1 and 65535 (got %d)", c.Dashboard.Port)
	}
	if c.Sync.RequestsPerSecond < 0 {
		return fmt.Errorf("sync.requests_per_second must not be negative")
	}
	return nil
}

// Addr returns the dashboard listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Dashboard.Host, c.Dashboard.Port)
}

// Load reads configuration from path (empty means DefaultPath) and the
// environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("db.path", d.DB.Path)
	v.SetDefault("db.driver", d.DB.Driver)
	v.SetDefault("google.client_id", d.Google.ClientID)
	v.SetDefault("google.client_secret", d.Google.ClientSecret)
	v.SetDefault("google.redirect_url", d.Google.RedirectURL)
	v.SetDefault("sync.concurrency", d.Sync.Concurrency)
	v.SetDefault("sync.requests_per_second", d.Sync.RequestsPerSecond)
	v.SetDefault("sync.burst", d.Sync.Burst)
	v.SetDefault("sync.look_behind_days", d.Sync.LookBehindDays)
	v.SetDefault("sync.max_window_age_days", d.Sync.MaxWindowAgeDays)
	v.SetDefault("daemon.schedule", d.Daemon.Schedule)
	v.SetDefault("daemon.debounce_ms", d.Daemon.DebounceMS)
	v.SetDefault("dashboard.host", d.Dashboard.Host)
	v.SetDefault("dashboard.port", d.Dashboard.Port)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// Write encodes cfg as TOML at path with 0600 permissions. An existing file
// is only replaced when force is set.
func Write(path string, cfg *Config, force bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
