package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/export"
	"github.com/mschirtzinger/personal-dash/internal/migrate"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "admin",
	Short:   "Export mirrored events as ICS, YAML or JSON",
	Example: `  pd export --format ics --from today --to "in 3 months" -o upcoming.ics
  pd export --format yaml --category birthday --from 2026-01-01 --to 2027-01-01`,
	Run: func(cmd *cobra.Command, args []string) {
		formatName, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		format, err := export.ParseFormat(formatName)
		if err != nil {
			fatalf("%v", err)
		}
		filter := eventFilterFromFlags(cmd)

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		var w io.Writer = os.Stdout
		if output != "" && output != "-" {
			// #nosec G304 - controlled path from CLI
			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				fatalf("failed to create %s: %v", output, err)
			}
			defer f.Close()
			w = f
		}

		n, err := export.New(store).Export(ctx, w, format, filter)
		if err != nil {
			fatalf("%v", err)
		}
		if w != os.Stdout {
			fmt.Printf("%s Exported %d event(s) to %s\n", ui.RenderPass("✓"), n, output)
		}
	},
}

var annotationsCmd = &cobra.Command{
	Use:     "annotations",
	GroupID: "admin",
	Short:   "Back up or restore your annotation edits",
	Long: `Annotations you edited (locked annotations) are the only data that cannot
be re-synced from Google. Back them up as JSONL and restore them into a fresh
database; they attach to events as soon as those are synced.`,
}

var annotationsBackupCmd = &cobra.Command{
	Use:   "backup [file]",
	Short: "Write locked annotations to a JSONL file",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := filepath.Join(filepath.Dir(cfg.DB.Path), "annotations-"+time.Now().Format("20060102-150405")+".jsonl")
		if len(args) == 1 {
			path = args[0]
		}

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		n, err := migrate.Backup(ctx, store, path)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Backed up %d annotation(s) to %s\n", ui.RenderPass("✓"), n, path)
	},
}

var annotationsRestoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Apply annotations from a JSONL backup",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		keep, _ := cmd.Flags().GetBool("keep-timestamps")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		res, err := migrate.Restore(ctx, store, args[0], migrate.RestoreOptions{DryRun: dryRun, KeepTimestamps: keep})
		if err != nil {
			fatalf("%v", err)
		}
		for _, msg := range res.Errors {
			fmt.Fprintf(os.Stderr, "%s skipped %s\n", ui.RenderWarn("⚠"), msg)
		}
		verb := "Restored"
		if dryRun {
			verb = "Would restore"
		}
		fmt.Printf("%s %s %d of %d annotation(s)\n", ui.RenderPass("✓"), verb, res.Restored, res.Read)
	},
}

func init() {
	addEventFilterFlags(exportCmd)
	exportCmd.Flags().StringP("format", "f", "ics", "Output format (ics, yaml, json)")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	annotationsRestoreCmd.Flags().Bool("dry-run", false, "Validate without writing")
	annotationsRestoreCmd.Flags().Bool("keep-timestamps", false, "Keep updated_at from the backup")

	annotationsCmd.AddCommand(annotationsBackupCmd, annotationsRestoreCmd)
	rootCmd.AddCommand(exportCmd, annotationsCmd)
}
