package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/snapshot"
)

var historyCaptureReason string

func init() {
	historyCaptureCmd.Flags().StringVar(&historyCaptureReason, "reason", string(snapshot.ReasonManual),
		"reason recorded with the snapshot")
	historyCmd.AddCommand(historyCaptureCmd)
}

var historyCaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record the current configuration in the history",
	Long: `Capture records the current configuration as a new history entry. The
oldest entries are dropped once ledger.retention is exceeded.`,
	Example: `  # Record a manual snapshot
  siteconf history capture

  # Record before a planned upgrade
  siteconf history capture --reason before_upgrade

  See Also: siteconf history list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistoryCaptureWithWriter(cmd.Context(), cmd.OutOrStdout(), historyCaptureReason)
	},
}

func runHistoryCaptureWithWriter(ctx context.Context, w io.Writer, reason string) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if reason == "" {
		reason = string(snapshot.ReasonManual)
	}
	snap, err := sess.manager.Capture(ctx, snapshot.Reason(reason))
	if err != nil {
		return operationError(err)
	}

	fmt.Fprintf(w, "Recorded %s snapshot: %s\n", snap.Reason, domainList(snap.Domains.Present()))
	return nil
}
