// Command dm keeps private notes about dating contacts, locally or synced to the cloud.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	homeFlag    string
	yesFlag     bool
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "dm",
	Short: "Dating memo: remember the people you meet",
	Long: `dm keeps a private memo about each person you date: how you met, what you
liked, what you didn't, and how it is going.

Data lives on this machine. Sign in with 'dm login' to keep a copy in the cloud;
edits are then mirrored there and 'dm sync' reconciles both sides, newest
edit wins.

Configuration is read from config.yaml or config.toml in $DM_HOME (default
~/.datememo) and from DM_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeFlag, "home", "", "Data and config directory (default $DM_HOME or ~/.datememo)")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Accept the default answer to every question")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log activity to stderr (or log.file)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "memo", Title: "Memo Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// fail prints an error and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
