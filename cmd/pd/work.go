package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/schema"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	GroupID: "work",
	Short:   "Manage projects",
}

var actionsCmd = &cobra.Command{
	Use:     "actions",
	Aliases: []string{"action"},
	GroupID: "work",
	Short:   "Manage actions",
}

// parseDay reads a natural-language date flag as YYYY-MM-DD; empty stays empty.
func parseDay(flags *pflag.FlagSet, name string) string {
	v, _ := flags.GetString(name)
	if v == "" {
		return ""
	}
	t, err := ui.ParseDate(v, time.Now())
	if err != nil {
		fatalf("invalid --%s: %v", name, err)
	}
	return ui.FormatDay(t)
}

func applyProjectFlags(p *schema.Project, flags *pflag.FlagSet) {
	if flags.Changed("name") {
		p.Name, _ = flags.GetString("name")
	}
	if flags.Changed("status") {
		p.Status, _ = flags.GetString("status")
	}
	if flags.Changed("priority") {
		p.Priority, _ = flags.GetString("priority")
	}
	if flags.Changed("target") {
		p.TargetDate = parseDay(flags, "target")
	}
	if flags.Changed("description") {
		p.Description, _ = flags.GetString("description")
	}
	if flags.Changed("tag") {
		p.Tags, _ = flags.GetStringSlice("tag")
	}
	if flags.Changed("folder") {
		p.DriveFolderURL, _ = flags.GetString("folder")
	}
	if flags.Changed("doc") {
		p.KeyDocURLs, _ = flags.GetStringSlice("doc")
	}
}

func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "Status (active, paused, done)")
	cmd.Flags().String("priority", "", "Priority (high, med, low)")
	cmd.Flags().String("target", "", "Target date")
	cmd.Flags().String("description", "", "Description")
	cmd.Flags().StringSlice("tag", nil, "Tags (repeatable)")
	cmd.Flags().String("folder", "", "Drive folder URL")
	cmd.Flags().StringSlice("doc", nil, "Key document URLs (repeatable)")
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects with open action counts",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		projects, err := store.ListProjects(ctx, status)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOut {
			if projects == nil {
				projects = []*schema.Project{}
			}
			printJSON(projects)
			return
		}
		if len(projects) == 0 {
			fmt.Println("No projects")
			return
		}
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{
				p.ID, p.Name, p.Status, p.Priority, p.TargetDate,
				fmt.Sprint(p.OpenActions), strings.Join(p.Tags, ","),
			})
		}
		fmt.Println(ui.Table([]string{"ID", "NAME", "STATUS", "PRIORITY", "TARGET", "OPEN", "TAGS"}, rows))
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		p := &schema.Project{Name: args[0]}
		applyProjectFlags(p, cmd.Flags())
		if err := store.SaveProject(ctx, p); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Created project %s (%s)\n", ui.RenderPass("✓"), ui.RenderAccent(p.ID), p.Name)
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project and its open actions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		p, err := store.GetProject(ctx, args[0])
		if err != nil {
			fatalf("project %s: %v", args[0], err)
		}
		actions, err := store.ListActions(ctx, db.ActionFilter{ParentType: schema.ParentProject, ParentID: p.ID})
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOut {
			printJSON(map[string]any{"project": p, "actions": actions})
			return
		}

		fmt.Printf("\n%s %s\n", ui.RenderAccent(p.Name), ui.RenderMuted(p.ID))
		fmt.Printf("   Status: %s, priority %s\n", p.Status, p.Priority)
		if p.TargetDate != "" {
			fmt.Printf("   Target: %s\n", p.TargetDate)
		}
		if p.Description != "" {
			fmt.Printf("   %s\n", p.Description)
		}
		if p.DriveFolderURL != "" {
			fmt.Printf("   Folder: %s\n", p.DriveFolderURL)
		}
		for _, doc := range p.KeyDocURLs {
			fmt.Printf("   Doc: %s\n", doc)
		}
		fmt.Println()
		printActions(actions)
	},
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change project fields",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		p, err := store.GetProject(ctx, args[0])
		if err != nil {
			fatalf("project %s: %v", args[0], err)
		}
		applyProjectFlags(p, cmd.Flags())
		if err := store.SaveProject(ctx, p); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Updated project %s\n", ui.RenderPass("✓"), p.ID)
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project (its actions are kept)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		if err := store.DeleteProject(ctx, args[0]); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Deleted project %s\n", ui.RenderPass("✓"), args[0])
	},
}

func printActions(actions []*schema.Action) {
	if len(actions) == 0 {
		fmt.Println("No actions")
		return
	}
	rows := make([][]string, 0, len(actions))
	for _, a := range actions {
		parent := ""
		if a.ParentID != "" {
			parent = a.ParentType + ":" + a.ParentID
		}
		rows = append(rows, []string{a.ID, a.Title, a.Status, a.Priority, a.DueAt, parent})
	}
	fmt.Println(ui.Table([]string{"ID", "TITLE", "STATUS", "PRIORITY", "DUE", "PARENT"}, rows))
}

func applyActionFlags(a *schema.Action, flags *pflag.FlagSet) {
	if flags.Changed("title") {
		a.Title, _ = flags.GetString("title")
	}
	if flags.Changed("status") {
		a.Status, _ = flags.GetString("status")
	}
	if flags.Changed("priority") {
		a.Priority, _ = flags.GetString("priority")
	}
	if flags.Changed("start") {
		a.StartAt = parseDay(flags, "start")
	}
	if flags.Changed("due") {
		a.DueAt = parseDay(flags, "due")
	}
	if flags.Changed("snooze") {
		a.SnoozeUntil = parseDay(flags, "snooze")
	}
	if flags.Changed("tag") {
		a.Tags, _ = flags.GetStringSlice("tag")
	}
	if flags.Changed("url") {
		a.ReferenceURL, _ = flags.GetString("url")
	}
	if flags.Changed("check") {
		a.Checklist, _ = flags.GetStringSlice("check")
	}
	if flags.Changed("project") {
		id, _ := flags.GetString("project")
		a.ParentType, a.ParentID = "", ""
		if id != "" {
			a.ParentType, a.ParentID = schema.ParentProject, id
		}
	}
}

func addActionFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "Status (open, done, dropped)")
	cmd.Flags().String("priority", "", "Priority (high, med, low)")
	cmd.Flags().String("start", "", "Start date")
	cmd.Flags().String("due", "", "Due date")
	cmd.Flags().String("snooze", "", "Hide until this date")
	cmd.Flags().StringSlice("tag", nil, "Tags (repeatable)")
	cmd.Flags().String("url", "", "Reference URL")
	cmd.Flags().StringSlice("check", nil, "Checklist items (repeatable)")
	cmd.Flags().String("project", "", "Attach to a project id (empty to detach)")
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List actions, soonest due first",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		projectID, _ := cmd.Flags().GetString("project")
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		filter := db.ActionFilter{Status: status}
		if projectID != "" {
			filter.ParentType, filter.ParentID = schema.ParentProject, projectID
		}
		actions, err := store.ListActions(ctx, filter)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOut {
			if actions == nil {
				actions = []*schema.Action{}
			}
			printJSON(actions)
			return
		}
		printActions(actions)
	},
}

var actionsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create an action",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		a := &schema.Action{Title: args[0]}
		applyActionFlags(a, cmd.Flags())
		if a.ParentID != "" {
			if _, err := store.GetProject(ctx, a.ParentID); err != nil {
				fatalf("project %s: %v", a.ParentID, err)
			}
		}
		if err := store.SaveAction(ctx, a); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Created action %s (%s)\n", ui.RenderPass("✓"), ui.RenderAccent(a.ID), a.Title)
	},
}

var actionsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change action fields",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		updateAction(args[0], func(a *schema.Action) { applyActionFlags(a, cmd.Flags()) })
		fmt.Printf("%s Updated action %s\n", ui.RenderPass("✓"), args[0])
	},
}

var actionsDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark an action done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		updateAction(args[0], func(a *schema.Action) { a.Status = schema.ActionDone })
		fmt.Printf("%s Done: %s\n", ui.RenderPass("✓"), args[0])
	},
}

func updateAction(id string, mutate func(*schema.Action)) {
	ctx, cancel := signalContext()
	defer cancel()
	store := openStore(ctx)
	defer store.Close()

	a, err := store.GetAction(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		fatalf("action %s not found", id)
	} else if err != nil {
		fatalf("%v", err)
	}
	mutate(a)
	if err := store.SaveAction(ctx, a); err != nil {
		fatalf("%v", err)
	}
}

var actionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an action",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		if err := store.DeleteAction(ctx, args[0]); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Deleted action %s\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	projectsListCmd.Flags().String("status", "", "Status filter (active, paused, done, all; default active)")
	projectsListCmd.Flags().Bool("json", false, "Output as JSON")
	projectsShowCmd.Flags().Bool("json", false, "Output as JSON")
	addProjectFlags(projectsAddCmd)
	addProjectFlags(projectsUpdateCmd)
	projectsUpdateCmd.Flags().String("name", "", "New name")

	actionsListCmd.Flags().String("status", "", "Status filter (open, done, dropped, all; default open)")
	actionsListCmd.Flags().String("project", "", "Only actions of this project")
	actionsListCmd.Flags().Bool("json", false, "Output as JSON")
	addActionFlags(actionsAddCmd)
	addActionFlags(actionsUpdateCmd)
	actionsUpdateCmd.Flags().String("title", "", "New title")

	projectsCmd.AddCommand(projectsListCmd, projectsAddCmd, projectsShowCmd, projectsUpdateCmd, projectsDeleteCmd)
	actionsCmd.AddCommand(actionsListCmd, actionsAddCmd, actionsUpdateCmd, actionsDoneCmd, actionsDeleteCmd)
	rootCmd.AddCommand(projectsCmd, actionsCmd)
}
