// Package cmd defines the CLI commands for the cricsync executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cricsync",
		Short: "Cricket match scraper and snapshot synchronizer",
		Long: `cricsync tracks live cricket matches on a JavaScript-rendered
score site, scrapes each match page section on a lifecycle-aware cadence,
and synchronizes versioned snapshots into storage. A read-only HTTP API
serves the current state and history of every tracked match.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute is the CLI entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
