package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Loom - capability-injected step pipeline",
		Long: `Loom runs declarative step pipelines: each step names the
capabilities it needs (http, kv, db, queue, locks, leased resources)
and the policies that should wrap them (retry, timeout, circuit
breaking, idempotency), and the engine assembles, weaves, and executes
everything per step.

Features:
  - Capability injection from declarative metadata
  - Scoped resource leasing with bracket safety
  - Retry / timeout / circuit / logging policy weaving
  - Idempotent step execution backed by KV
  - SQLite-backed persistence and execution history`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newRunCommand(version))
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newDevCommand(version))
	rootCmd.AddCommand(newHistoryCommand(version))

	return rootCmd
}
