package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the snapshot history",
	Long: `Manage the rolling history of configuration snapshots.

A snapshot is recorded automatically before every import, reset and
restore. The history keeps the most recent entries (ledger.retention) and
a periodic maintenance pass trims it to ledger.maintenance_retention.
Entries are numbered from 0, oldest first.`,
	Example: `  # List recorded snapshots
  siteconf history list

  # Pick a snapshot to restore interactively
  siteconf history restore

  # Restore a specific entry
  siteconf history restore 2

  # Record the current configuration
  siteconf history capture

  See Also:
    siteconf history list    - List recorded snapshots
    siteconf history restore - Restore a recorded snapshot
    siteconf history capture - Record the current configuration
    siteconf history trim    - Apply the maintenance retention now`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}
