package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/personal-dash/internal/dashboard"
	"github.com/mschirtzinger/personal-dash/internal/ui"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	GroupID: "admin",
	Short:   "Connect or disconnect the Google account",
}

var authConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authorize read-only calendar access",
	Long: `Authorize read-only access to your Google calendars.

A local server is started on dashboard.host:dashboard.port to receive the
OAuth redirect, so google.redirect_url must point at its /auth/callback
route. Open the printed URL, approve access, and the command returns once
the token is stored.`,
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		manager := newAuthManager(store, componentLogger("auth"))
		if !manager.Configured() {
			fatalf("google.client_id and google.client_secret are not set (see 'pd config init')")
		}

		before, err := manager.Status(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		server := dashboard.NewServer(&dashboard.Config{
			Addr:         cfg.Addr(),
			AuthStart:    manager.StartHandler(),
			AuthCallback: manager.CallbackHandler(),
			Logger:       componentLogger("dashboard"),
		})
		if err := server.Start(); err != nil {
			fatalf("failed to start callback server: %v", err)
		}
		defer server.Stop()

		fmt.Printf("%s Open this URL to authorize personal-dash:\n\n   %s\n\n", ui.RenderAccent("→"),
			manager.AuthURL(manager.NewState()))
		fmt.Printf("Or visit http://%s/auth/start. Waiting for the redirect...\n", server.GetAddr())

		waitCtx, waitCancel := context.WithTimeout(ctx, timeout)
		defer waitCancel()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-waitCtx.Done():
				server.Stop()
				fatalf("authorization not completed: %v", waitCtx.Err())
			case <-ticker.C:
				st, err := manager.Status(ctx)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
					continue
				}
				if st.Connected && !st.UpdatedAt.Equal(before.UpdatedAt) {
					fmt.Printf("%s Connected. Run 'pd sync' to mirror your calendars\n", ui.RenderPass("✓"))
					return
				}
			}
		}
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an account is connected",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		st, err := newAuthManager(store, componentLogger("auth")).Status(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOut {
			printJSON(st)
			return
		}
		if !st.Connected {
			fmt.Printf("%s Not connected. Run 'pd auth connect'\n", ui.RenderWarn("⚠"))
			return
		}
		fmt.Printf("%s Connected\n", ui.RenderPass("✓"))
		fmt.Printf("   Scope: %s\n", st.Scope)
		fmt.Printf("   Access token expires: %s\n", formatWhen(st.Expiry))
		fmt.Printf("   Updated: %s\n", formatWhen(st.UpdatedAt))
	},
}

var authDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the account and wipe every mirrored calendar",
	Long: `Delete the stored token along with all calendars, events, annotations and
sync state. Projects and actions are kept.`,
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			if !ui.IsTerminal(os.Stdin) {
				fatalf("refusing to wipe the mirror without --yes")
			}
			ok, err := ui.Confirm("Disconnect and delete all mirrored calendar data?")
			if err != nil {
				fatalf("%v", err)
			}
			if !ok {
				fmt.Println("Cancelled")
				return
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		store := openStore(ctx)
		defer store.Close()

		if err := newAuthManager(store, componentLogger("auth")).Disconnect(ctx); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Disconnected; mirrored data removed\n", ui.RenderPass("✓"))
	},
}

func init() {
	authConnectCmd.Flags().Duration("timeout", 5*time.Minute, "How long to wait for the browser redirect")
	authStatusCmd.Flags().Bool("json", false, "Output as JSON")
	authDisconnectCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	authCmd.AddCommand(authConnectCmd, authStatusCmd, authDisconnectCmd)
	rootCmd.AddCommand(authCmd)
}
