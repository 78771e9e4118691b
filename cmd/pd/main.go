package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/config"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var (
	cfgFile string
	dbPath  string
	useFake bool
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pd",
	Short: "personal-dash keeps a local mirror of your Google calendars",
	Long: `personal-dash mirrors selected Google calendars into a local SQLite
database, classifies every event (birthday, travel, holiday, ...) and lets you
annotate events, link them to projects and track actions.

Typical first run:
  pd config init            # write ~/.config/personal-dash/config.toml
  pd auth connect           # authorize read-only calendar access
  pd sync                   # refresh calendars and mirror events
  pd events list --from today --to "in 2 weeks"

Use --fake to try everything against built-in demo calendars.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init(os.Stdout)

		c, err := config.Load(cfgFile)
		if err != nil {
			fatalf("%v", err)
		}
		if dbPath != "" {
			c.DB.Path = dbPath
		}
		cfg = c
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "calendars", Title: "Calendars:"},
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "work", Title: "Projects and actions:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.config/personal-dash/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides db.path)")
	rootCmd.PersistentFlags().BoolVar(&useFake, "fake", false, "Use built-in demo calendars instead of Google")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log component activity to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
