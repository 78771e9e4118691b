package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/config"
	"github.com/mschirtzinger/personal-dash/internal/schema"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "admin",
	Short:   "View or change stored settings",
	Long: `Settings live in the database, next to the mirror:

  horizon-days       how far ahead to mirror (14..366, default 182)
  refresh-interval   daemon refresh interval in minutes (1..240, default 10)

Calendar selection is managed with 'pd calendars select'.`,
}

// settingKeys maps CLI names to setters.
var settingKeys = map[string]func(s *schema.Settings, v int){
	"horizon-days":     func(s *schema.Settings, v int) { s.HorizonDays = v },
	"refresh-interval": func(s *schema.Settings, v int) { s.RefreshIntervalMinutes = v },
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show settings",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		s, err := store.GetSettings(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOut {
			printJSON(s)
			return
		}

		values := map[string]string{
			"horizon-days":     strconv.Itoa(s.HorizonDays),
			"refresh-interval": strconv.Itoa(s.RefreshIntervalMinutes),
			"selected":         strings.Join(s.SelectedCalendarIDs, ","),
		}
		if len(args) == 1 {
			v, ok := values[args[0]]
			if !ok {
				fatalf("unknown setting %q", args[0])
			}
			fmt.Println(v)
			return
		}
		for _, k := range []string{"horizon-days", "refresh-interval", "selected"} {
			fmt.Printf("%s = %s\n", ui.RenderAccent(k), values[k])
		}
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		set, ok := settingKeys[args[0]]
		if !ok {
			fatalf("unknown setting %q (want horizon-days or refresh-interval)", args[0])
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fatalf("%s must be a whole number", args[0])
		}

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		s, err := store.GetSettings(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		set(s, v)
		if err := store.UpdateSettings(ctx, s); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s %s = %d\n", ui.RenderPass("✓"), args[0], v)
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "admin",
	Short:   "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		path := cfgFile
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				fatalf("%v", err)
			}
			path = p
		}
		if err := config.Write(path, config.DefaultConfig(), force); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		fmt.Println("   Set google.client_id and google.client_secret, then run 'pd auth connect'")
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file + PD_* environment)",
	Run: func(cmd *cobra.Command, args []string) {
		shown := *cfg
		if shown.Google.ClientSecret != "" {
			shown.Google.ClientSecret = "********"
		}
		if err := toml.NewEncoder(os.Stdout).Encode(shown); err != nil {
			fatalf("failed to encode config: %v", err)
		}
	},
}

func init() {
	settingsGetCmd.Flags().Bool("json", false, "Output as JSON")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(settingsCmd, configCmd)
}
