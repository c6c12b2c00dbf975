package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(version string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent step executions",
		Long: `List the most recent step executions from the host's SQLite store,
newest first. Requires a configuration with a store path.`,
		Example: `  # Show the last 20 executions
  loom history -c ./loom.yaml --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), version)
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			store := rt.host.Store()
			if store == nil {
				return fmt.Errorf("no store configured: set host.storePath in the config file")
			}

			records, err := store.ListExecutions(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s  %-8s %-24s %6dms  %s\n",
					rec.StartedAt.Format("2006-01-02 15:04:05"),
					rec.Status, rec.Step, rec.DurationMS, rec.ExecID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of executions to show")
	return cmd
}
