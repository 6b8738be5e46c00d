package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/datememo/datememo/internal/auth"
	"github.com/datememo/datememo/internal/daemon"
	"github.com/datememo/datememo/internal/notify"
	"github.com/datememo/datememo/internal/reconcile"
	"github.com/datememo/datememo/internal/remote"
	"github.com/datememo/datememo/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile this device with the cloud",
	Long: `Merge the data on this device with your cloud copy and write the result to
both sides.

For a person present on both sides the most recently updated version wins
as a whole; fields are never blended. People present on only one side are
kept. Afterwards edits are mirrored to the cloud automatically.

The write-back strategy is set by sync.strategy:
  replace  clear the cloud copy, then insert the merged set (default)
  diff     upsert the merged set, then delete what is no longer in it`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		fmt.Printf("%s Syncing (%s)...\n", ui.RenderAccent("🔄"), a.orch.Engine().Strategy())
		rep, err := a.orch.RequestSync(ctx)
		if err != nil {
			if reconcile.IsRemoteDegraded(err) {
				fmt.Fprintf(os.Stderr, "%s The cloud copy was cleared but could not be rewritten.\n", ui.RenderFail("✗"))
				fmt.Fprintln(os.Stderr, "   Your data on this device is intact. Run 'dm sync' again to restore the cloud copy.")
			}
			fail("%s", remote.Describe(err, "").Message)
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), rep.Duration.Round(time.Millisecond))
		fmt.Printf("   People: %d\n", len(rep.Merged))
		fmt.Printf("   Only on this device: %d\n", len(rep.LocalOnly))
		fmt.Printf("   Only in the cloud: %d\n", len(rep.RemoteOnly))
		if len(rep.Conflicts) > 0 {
			fmt.Printf("   Conflicts resolved: %d\n", len(rep.Conflicts))
			for _, c := range rep.Conflicts {
				fmt.Printf("     %s %s: kept %s version\n", ui.RenderMuted("•"), c.Name, c.Winner)
			}
		}
	},
}

var refreshCmd = &cobra.Command{
	Use:     "refresh",
	GroupID: "sync",
	Short:   "Re-download the cloud copy onto this device",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		if !a.orch.Session().Cloud() {
			fmt.Printf("%s Not in cloud mode; nothing to refresh\n", ui.RenderWarn("⚠"))
			return
		}
		if err := a.orch.Refresh(ctx, daemon.TriggerManual); err != nil {
			fail("%s", remote.Describe(err, "").Message)
		}
		fmt.Printf("%s Refreshed: %d people\n", ui.RenderPass("✓"), len(a.local.GetAll()))
	},
}

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "sync",
	Short:   "Upload the data on this device to an empty cloud copy",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		res, err := a.orch.PushLocal(ctx)
		if err != nil {
			fail("%s", remote.Describe(err, "").Message)
		}
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), res.Message)
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show account, mode and storage status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		s := a.orch.Session()
		fmt.Printf("\n%s Dating Memo Status\n\n", ui.RenderAccent("📊"))
		if s.SignedIn() {
			who := s.UserID
			if s.Email != "" {
				who = fmt.Sprintf("%s (%s)", s.Email, s.UserID)
			}
			fmt.Printf("Account: %s\n", who)
		} else {
			fmt.Printf("Account: %s\n", ui.RenderMuted("signed out"))
		}
		fmt.Printf("Mode: %s\n", s.Mode)
		fmt.Printf("Home: %s\n", a.cfg.Home)
		fmt.Printf("Local store: %s (%s)\n", a.cfg.StoreDir(), a.cfg.Store.Backend)
		fmt.Printf("People on this device: %d\n", len(a.local.GetAll()))

		if !a.remote.Configured() {
			missing := a.cfg.RemoteConfig(nil).Missing()
			fmt.Printf("Cloud: %s (missing %s)\n", ui.RenderMuted("not configured"), strings.Join(missing, ", "))
			fmt.Println()
			return
		}
		fmt.Printf("Cloud: %s\n", a.remote.Backend())
		if s.SignedIn() {
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			n, err := a.remote.Count(pctx, s.UserID)
			cancel()
			if err != nil {
				fmt.Printf("People in the cloud: %s\n", ui.RenderWarn(remote.Describe(err, "").Message))
			} else {
				fmt.Printf("People in the cloud: %d\n", n)
			}
		}
		fmt.Println()
	},
}

var modeCmd = &cobra.Command{
	Use:     "mode [local|cloud]",
	GroupID: "sync",
	Short:   "Show or switch the data mode",
	Long: `In local mode data stays on this device. In cloud mode every edit is also
written to your cloud copy. Switching to cloud mode requires 'dm login' and
runs a sync first.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd.Context())
		defer a.Close()

		if len(args) == 0 {
			fmt.Println(a.orch.Session().Mode)
			return
		}
		m, err := daemon.ParseMode(args[0])
		if err != nil {
			fail("%v", err)
		}
		if m == daemon.ModeCloud && !a.orch.Session().Cloud() {
			// Edits made in local mode reach the cloud through a full sync.
			rep, err := a.orch.RequestSync(cmd.Context())
			if err != nil {
				fail("%s", remote.Describe(err, "").Message)
			}
			fmt.Printf("%s %s\n", ui.RenderPass("✓"), rep.Summary())
		}
		if err := a.orch.SetMode(m); err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s Mode set to %s\n", ui.RenderPass("✓"), m)
	},
}

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "sync",
	Short:   "Sign in with an access token",
	Long: `Store an access token for your account. The token is a JWT whose subject
is your user id. Pass '-' to read it from stdin.

After signing in you are asked what to do with existing data: load the
cloud copy, or upload the data on this device if the cloud copy is empty.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		token, _ := cmd.Flags().GetString("token")
		if token == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fail("failed to read token: %v", err)
			}
			token = strings.TrimSpace(string(data))
		}

		a, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer a.Close()

		if token != "" {
			u, err := auth.ParseToken(token, []byte(a.cfg.Auth.JWTSecret), time.Now())
			if err != nil {
				fail("%v", err)
			}
			prev, _ := a.ident.CurrentUser(ctx)
			if err := auth.SaveToken(a.cfg.TokenPath(), token); err != nil {
				fail("%v", err)
			}
			// A different account must choose again.
			if prev == nil || prev.ID != u.ID {
				if err := a.orch.Logout(); err != nil {
					fail("%v", err)
				}
			}
			fmt.Printf("%s Signed in as %s\n", ui.RenderPass("✓"), u.ID)
		}

		if err := a.login(ctx); err != nil {
			fail("%s", remote.Describe(err, "").Message)
		}
		s := a.orch.Session()
		if !s.SignedIn() {
			fail("not signed in; pass --token")
		}
		fmt.Printf("Mode: %s\n", s.Mode)
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "sync",
	Short:   "Sign out and return to local mode",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp()
		if err != nil {
			fail("%v", err)
		}
		defer a.Close()

		if err := auth.ClearToken(a.cfg.TokenPath()); err != nil {
			fail("%v", err)
		}
		if err := a.orch.Logout(); err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s Signed out. Data on this device is kept.\n", ui.RenderPass("✓"))
	},
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "advanced",
	Short:   "Keep this device refreshed from the cloud (foreground)",
	Long: `Run in the foreground and refresh from the cloud on an interval, and shortly
after another process writes the local store. Changes are printed as they
happen.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		sub := a.broker.Subscribe()
		go printEvents(ctx, sub)

		fmt.Printf("Watching (mode %s, refresh every %s). Press Ctrl+C to stop...\n",
			a.orch.Session().Mode, a.cfg.Sync.RefreshInterval)
		if err := a.orch.Run(ctx); err != nil {
			fail("%v", err)
		}
	},
}

func printEvents(ctx context.Context, sub *notify.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			stamp := ui.RenderMuted(ev.Timestamp.Local().Format("15:04:05"))
			switch ev.Kind {
			case notify.KindRemoteFailed:
				fmt.Printf("%s %s %s\n", stamp, ui.RenderWarn("⚠"), ev.Message)
			case notify.KindLocalReplaced:
				fmt.Printf("%s %s refreshed: %d people\n", stamp, ui.RenderPass("✓"), ev.Count)
			default:
				fmt.Printf("%s %s %s %s\n", stamp, ui.RenderAccent("•"), ev.Kind, ev.PersonID+ev.Message)
			}
		}
	}
}

func init() {
	loginCmd.Flags().String("token", "", "Access token (JWT), or - to read from stdin")

	rootCmd.AddCommand(syncCmd, refreshCmd, migrateCmd, statusCmd, modeCmd, loginCmd, logoutCmd, watchCmd)
}
