package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/loadtest"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "admin",
	Hidden:  true,
	Short:   "Measure store latency under concurrent sync passes and edits",
	Long: `Create a scratch database, then:

  1. run concurrent dashboard-style event queries and report latency
  2. replay sync passes while editors lock random events, and verify that
     no user edit is overwritten

The scratch database is removed afterwards. Exits 1 if any edit is lost.

Examples:
  pd loadtest
  pd loadtest --events 5000 --readers 50 --editors 8 --passes 5`,
	Run: runLoadtest,
}

func init() {
	loadtestCmd.Flags().Int("events", 2000, "Number of events in the scratch database")
	loadtestCmd.Flags().Int("readers", 20, "Number of concurrent readers")
	loadtestCmd.Flags().Int("queries", 10, "Number of queries per reader")
	loadtestCmd.Flags().Int("editors", 4, "Number of concurrent editors during sync")
	loadtestCmd.Flags().Int("passes", 3, "Number of sync passes to replay")
	loadtestCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(loadtestCmd)
}

func runLoadtest(cmd *cobra.Command, args []string) {
	events, _ := cmd.Flags().GetInt("events")
	readers, _ := cmd.Flags().GetInt("readers")
	queries, _ := cmd.Flags().GetInt("queries")
	editors, _ := cmd.Flags().GetInt("editors")
	passes, _ := cmd.Flags().GetInt("passes")
	jsonOut, _ := cmd.Flags().GetBool("json")

	for name, v := range map[string]int{"events": events, "readers": readers, "queries": queries, "editors": editors, "passes": passes} {
		if v <= 0 {
			fatalf("--%s must be positive", name)
		}
	}

	dir, err := os.MkdirTemp("", "pd-loadtest-")
	if err != nil {
		fatalf("failed to create scratch directory: %v", err)
	}
	defer os.RemoveAll(dir)

	start := time.Now()
	td, err := loadtest.CreateTestDatabase(filepath.Join(dir, "loadtest.db"), events)
	if err != nil {
		fatalf("%v", err)
	}
	defer td.Close()
	populated := time.Since(start)

	reads, err := td.RunConcurrentQueries(readers, queries)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 10*time.Minute)
	defer cancelTimeout()
	contention, err := td.RunEditsDuringSync(ctx, editors, passes)
	if err != nil {
		fatalf("%v", err)
	}

	if jsonOut {
		printJSON(map[string]any{
			"events":     events,
			"populate":   populated.String(),
			"reads":      reads,
			"contention": contention,
		})
		return
	}

	fmt.Printf("Populated %d events in %v\n\n", events, populated)
	fmt.Printf("%s (%d readers x %d queries)\n", ui.RenderAccent("Event queries"), readers, queries)
	reads.PrintStats(os.Stdout)
	fmt.Printf("\n%s (%d passes, %d editors)\n", ui.RenderAccent("Page writes during edits"), passes, editors)
	contention.Pages.PrintStats(os.Stdout)
	fmt.Printf("\n%s %d edits on %d events, all locks held\n", ui.RenderPass("✓"), contention.Edits, contention.Locked)
}
