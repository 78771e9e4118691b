package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/registry"
	"github.com/mschirtzinger/personal-dash/internal/schema"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var calendarsCmd = &cobra.Command{
	Use:     "calendars",
	GroupID: "calendars",
	Short:   "List, refresh and select calendars",
}

var calendarsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known calendars",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		cals, err := store.ListCalendars(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOut {
			printJSON(cals)
			return
		}
		printCalendars(cals)
	},
}

func printCalendars(cals []*schema.Calendar) {
	if len(cals) == 0 {
		fmt.Printf("%s No calendars yet. Run 'pd calendars refresh'\n", ui.RenderWarn("⚠"))
		return
	}
	mark := func(b bool) string {
		if b {
			return ui.RenderPass("✓")
		}
		return ""
	}
	rows := make([][]string, 0, len(cals))
	for _, c := range cals {
		rows = append(rows, []string{c.ID, c.Summary, mark(c.Primary), mark(c.Holiday), mark(c.Selected)})
	}
	fmt.Println(ui.Table([]string{"ID", "SUMMARY", "PRIMARY", "HOLIDAY", "SELECTED"}, rows))
}

var calendarsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Pull the calendar list from the account",
	Long: `Pull the remote calendar list and store it.

If nothing is selected yet, the primary calendar and the UK public holiday
calendar are selected. Otherwise the stored selection is kept.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()
		p := newPipeline(ctx, store)

		cals, err := p.registry.Refresh(ctx)
		if err != nil {
			checkNotConnected(err)
			fatalf("%v", err)
		}
		printCalendars(cals)
	},
}

var calendarsSelectCmd = &cobra.Command{
	Use:   "select [calendar-id...]",
	Short: "Choose which calendars are mirrored",
	Long: `Replace the selected calendar set.

With ids, exactly those calendars are selected. Without ids on a terminal, an
interactive picker is shown. --default restores the primary + holiday
selection.`,
	Run: func(cmd *cobra.Command, args []string) {
		useDefault, _ := cmd.Flags().GetBool("default")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		cals, err := store.ListCalendars(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if len(cals) == 0 {
			fatalf("no calendars known; run 'pd calendars refresh' first")
		}

		ids := args
		switch {
		case useDefault:
			ids = registry.DefaultSelection(cals)
		case len(ids) == 0 && ui.IsTerminal(os.Stdin):
			ids, err = ui.SelectCalendars(cals)
			if err != nil {
				fatalf("%v", err)
			}
		case len(ids) == 0:
			fatalf("no calendar ids given (stdin is not a terminal)")
		}

		reg := registry.New(store, nil, componentLogger("registry"))
		if err := reg.Select(ctx, ids); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Selected %d calendar(s)\n", ui.RenderPass("✓"), len(ids))
	},
}

func init() {
	calendarsListCmd.Flags().Bool("json", false, "Output as JSON")
	calendarsSelectCmd.Flags().Bool("default", false, "Select the primary and holiday calendars")

	calendarsCmd.AddCommand(calendarsListCmd, calendarsRefreshCmd, calendarsSelectCmd)
	rootCmd.AddCommand(calendarsCmd)
}
