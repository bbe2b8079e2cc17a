package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	historyCmd.AddCommand(historyTrimCmd)
}

var historyTrimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Apply the maintenance retention to the history now",
	Long: `Trim drops the oldest history entries beyond
ledger.maintenance_retention. 'siteconf serve' does this periodically.`,
	Example: `  siteconf history trim

  See Also: siteconf serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistoryTrimWithWriter(cmd.Context(), cmd.OutOrStdout())
	},
}

func runHistoryTrimWithWriter(ctx context.Context, w io.Writer) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	removed, err := sess.manager.Trim(ctx)
	if err != nil {
		return operationError(err)
	}

	fmt.Fprintf(w, "Removed %d snapshot(s); keeping at most %d\n",
		removed, sess.manager.Ledger().MaintenanceRetention())
	return nil
}
