package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/backup"
)

var importNoBackup bool

func init() {
	importCmd.Flags().BoolVar(&importNoBackup, "no-backup", false,
		"do not record the current configuration before importing")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a snapshot file",
	Long: `Import reads a snapshot file and writes every configuration domain it
contains. Domains missing from the file are left untouched.

The current configuration is recorded in the history first, so an import
can be undone with 'siteconf history restore'. Use --no-backup to skip it.`,
	Example: `  # Import a snapshot
  siteconf import config-snapshot-2026-10-19T08-30-00Z.json

  # Import without recording a backup
  siteconf import snapshot.json --no-backup

  See Also: siteconf export, siteconf history restore`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImportWithWriter(cmd.Context(), cmd.OutOrStdout(), args[0], importNoBackup)
	},
}

func runImportWithWriter(ctx context.Context, w io.Writer, path string, noBackup bool) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	token, err := sess.token(backup.ActionImport)
	if err != nil {
		return err
	}

	result, err := sess.manager.Import(ctx, backup.ImportRequest{
		Token:      token,
		Upload:     backup.FileUpload(path),
		SkipBackup: noBackup,
	})
	if err != nil {
		return operationError(err)
	}

	fmt.Fprintf(w, "Imported %s from %s\n", domainList(result.Applied), path)
	if result.Backup != nil {
		fmt.Fprintf(w, "Previous configuration saved to history (%s)\n", result.Backup.Reason)
	}
	return nil
}
