package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	GroupID: "events",
	Short:   "Query mirrored events",
}

// eventFilterFromFlags reads --from/--to/--calendar/--category/--include-deleted.
// Dates accept natural language; --to defaults to 30 days after --from.
func eventFilterFromFlags(cmd *cobra.Command) db.EventFilter {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	calendarID, _ := cmd.Flags().GetString("calendar")
	category, _ := cmd.Flags().GetString("category")
	includeDeleted, _ := cmd.Flags().GetBool("include-deleted")

	now := time.Now()
	filter := db.EventFilter{CalendarID: calendarID, IncludeDeleted: includeDeleted}

	start, err := ui.ParseDate(from, now)
	if err != nil {
		fatalf("invalid --from: %v", err)
	}
	filter.From = ui.FormatDay(start)
	if to == "" {
		filter.To = ui.FormatDay(start.AddDate(0, 0, 30))
	} else {
		end, err := ui.ParseDate(to, now)
		if err != nil {
			fatalf("invalid --to: %v", err)
		}
		if !end.After(start) {
			fatalf("--to must be after --from")
		}
		filter.To = ui.FormatDay(end)
	}

	if category != "" {
		c, err := schema.ParseCategory(category)
		if err != nil {
			fatalf("%v", err)
		}
		filter.Category = c
	}
	return filter
}

func addEventFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "today", "Start date (YYYY-MM-DD or e.g. \"next monday\")")
	cmd.Flags().String("to", "", "End date, exclusive (default 30 days after --from)")
	cmd.Flags().String("calendar", "", "Only this calendar id")
	cmd.Flags().String("category", "", "Only this category ("+categoryList()+")")
	cmd.Flags().Bool("include-deleted", false, "Include cancelled events")
}

func categoryList() string {
	names := make([]string, len(schema.Categories))
	for i, c := range schema.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events in a date range",
	Example: `  pd events list
  pd events list --from tomorrow --to "next friday"
  pd events list --category birthday --from 2026-01-01 --to 2027-01-01`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")
		filter := eventFilterFromFlags(cmd)
		filter.Limit = limit

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		records, err := store.ListEvents(ctx, filter)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOut {
			if records == nil {
				records = []*db.EventRecord{}
			}
			printJSON(records)
			return
		}
		if len(records) == 0 {
			fmt.Printf("No events between %s and %s\n", filter.From, filter.To)
			return
		}

		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			ev := rec.Event
			category, flags := string(schema.CategoryUnknown), ""
			if a := rec.Annotation; a != nil {
				category = string(a.Category)
				if a.Locked() {
					flags += "🔒"
				}
				if a.IsMajor {
					flags += "★"
				}
			}
			title := ev.Title
			if ev.Deleted {
				title = ui.RenderMuted(title + " (cancelled)")
			}
			rows = append(rows, []string{displayStart(ev), title, category, flags, ev.Key})
		}
		fmt.Println(ui.Table([]string{"START", "TITLE", "CATEGORY", "", "KEY"}, rows))
		fmt.Printf("%d event(s)\n", len(records))
	},
}

func displayStart(ev *schema.Event) string {
	if ev.AllDay {
		return ev.Start
	}
	t, err := ev.StartTime(time.Local)
	if err != nil {
		return ev.Start
	}
	return t.Local().Format("2006-01-02 15:04")
}

var annotateCmd = &cobra.Command{
	Use:     "annotate <event-key>",
	GroupID: "events",
	Short:   "Edit an event's category, importance, project or notes",
	Long: `Edit an event's annotation. Only the given flags change; pass an empty
--project or --notes to clear it.

Any edit locks the annotation: later syncs keep the category you chose.
Use 'pd unlock' to hand it back to the classifier.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var patch schema.AnnotationPatch
		flags := cmd.Flags()
		if flags.Changed("category") {
			v, _ := flags.GetString("category")
			c, err := schema.ParseCategory(v)
			if err != nil {
				fatalf("%v", err)
			}
			patch.Category = &c
		}
		if flags.Changed("major") {
			v, _ := flags.GetBool("major")
			patch.IsMajor = &v
		}
		if flags.Changed("project") {
			v, _ := flags.GetString("project")
			patch.ProjectID = &v
		}
		if flags.Changed("notes") {
			v, _ := flags.GetString("notes")
			patch.NotesURL = &v
		}

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		if patch.ProjectID != nil && *patch.ProjectID != "" {
			if _, err := store.GetProject(ctx, *patch.ProjectID); err != nil {
				fatalf("project %s: %v", *patch.ProjectID, err)
			}
		}
		if _, err := store.GetEvent(ctx, args[0]); errors.Is(err, db.ErrNotFound) {
			fmt.Printf("%s Event %s is not mirrored yet; the annotation will apply once it syncs\n", ui.RenderWarn("⚠"), args[0])
		}

		ann, err := store.SetAnnotation(ctx, args[0], patch)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s %s: %s", ui.RenderPass("✓"), ann.EventKey, ann.Category)
		if ann.IsMajor {
			fmt.Print(", major")
		}
		if ann.ProjectID != "" {
			fmt.Printf(", project %s", ann.ProjectID)
		}
		fmt.Printf(" (%s)\n", ann.Provenance)
	},
}

var unlockCmd = &cobra.Command{
	Use:     "unlock <event-key>",
	GroupID: "events",
	Short:   "Let the classifier manage an event's category again",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		if err := store.UnlockAnnotation(ctx, args[0]); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s %s unlocked; the next sync re-classifies it\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	addEventFilterFlags(eventsListCmd)
	eventsListCmd.Flags().Int("limit", 0, fmt.Sprintf("Maximum events (default %d)", db.DefaultEventLimit))
	eventsListCmd.Flags().Bool("json", false, "Output as JSON")

	annotateCmd.Flags().String("category", "", "Category ("+categoryList()+")")
	annotateCmd.Flags().Bool("major", false, "Mark as a major event (--major=false to clear)")
	annotateCmd.Flags().String("project", "", "Link to a project id")
	annotateCmd.Flags().String("notes", "", "Notes URL")

	eventsCmd.AddCommand(eventsListCmd)
	rootCmd.AddCommand(eventsCmd, annotateCmd, unlockCmd)
}
