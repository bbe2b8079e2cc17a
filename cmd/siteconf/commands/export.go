package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/backup"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".",
		"directory to write the snapshot file into")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current configuration to a snapshot file",
	Long: `Export captures the current configuration as a snapshot and writes it
to a timestamped JSON file. Exported snapshots are not added to the history.`,
	Example: `  # Export into the current directory
  siteconf export

  # Export into a backups directory
  siteconf export --output ./backups

  See Also: siteconf import, siteconf history capture`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runExportWithWriter(cmd.Context(), cmd.OutOrStdout(), exportOutput)
	},
}

func runExportWithWriter(ctx context.Context, w io.Writer, dir string) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	token, err := sess.token(backup.ActionExport)
	if err != nil {
		return err
	}

	delivery := &backup.DirDelivery{Dir: dir}
	snap, err := sess.manager.Export(ctx, backup.ExportRequest{Token: token}, delivery)
	if err != nil {
		return operationError(err)
	}

	fmt.Fprintf(w, "Exported %s to %s\n", domainList(snap.Domains.Present()), delivery.Path)
	return nil
}
