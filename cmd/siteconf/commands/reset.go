package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/errors"
)

var (
	resetForce    bool
	resetNoBackup bool
)

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	resetCmd.Flags().BoolVar(&resetNoBackup, "no-backup", false,
		"do not record the current configuration before resetting")
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset every configuration domain to its defaults",
	Long: `Reset removes all customization values, empties every widget area,
clears menu assignments and removes the setup options.

The current configuration is recorded in the history first unless
--no-backup is given. A confirmation prompt is shown unless --force is
specified.`,
	Example: `  # Reset with confirmation
  siteconf reset

  # Reset without prompting
  siteconf reset --force

  See Also: siteconf history restore`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runResetWithIO(cmd.Context(), cmd.OutOrStdout(), os.Stdin, resetForce, resetNoBackup)
	},
}

// runResetWithIO allows injecting the prompt reader for testing.
func runResetWithIO(ctx context.Context, w io.Writer, r io.Reader, force, noBackup bool) error {
	if !force && !confirmReset(w, r, noBackup) {
		return errors.NewUserError(
			errors.Wrap(errors.ErrConfirmationRequired, "reset"),
			"Re-run with --force to reset without prompting")
	}

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	token, err := sess.token(backup.ActionReset)
	if err != nil {
		return err
	}

	result, err := sess.manager.Reset(ctx, backup.ResetRequest{Token: token, SkipBackup: noBackup})
	if err != nil {
		return operationError(err)
	}

	fmt.Fprintln(w, "Configuration reset to defaults")
	if result.Backup != nil {
		fmt.Fprintln(w, "Previous configuration saved to history (restore with: siteconf history restore)")
	}
	return nil
}

// confirmReset prompts the user to confirm the reset.
// Returns true if the user confirms, false otherwise.
func confirmReset(w io.Writer, r io.Reader, noBackup bool) bool {
	fmt.Fprintln(w, "This resets customization values, widgets, menus and setup options.")
	if noBackup {
		fmt.Fprintln(w, "No backup will be recorded.")
	}
	fmt.Fprint(w, "Continue? [y/N]: ")

	reader := bufio.NewReader(r)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
