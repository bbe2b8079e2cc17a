package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/logging"
	"github.com/thoreinstein/siteconf/internal/snapshot"
)

// errRestoreCancelled is returned by a picker when the user aborts.
var errRestoreCancelled = errors.New("restore cancelled")

// picker chooses a history entry and returns its index.
type picker func(history []*snapshot.Snapshot) (int, error)

func init() {
	historyCmd.AddCommand(historyRestoreCmd)
}

var historyRestoreCmd = &cobra.Command{
	Use:   "restore [index]",
	Short: "Restore a recorded snapshot",
	Long: `Restore writes every domain of a recorded snapshot back to the site.
The current configuration is recorded in the history first, so a restore
can itself be undone.

Without an index, an interactive picker lists the history.`,
	Example: `  # Pick a snapshot interactively
  siteconf history restore

  # Restore the oldest entry
  siteconf history restore 0

  See Also: siteconf history list`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryRestoreWithWriter(cmd.Context(), cmd.OutOrStdout(), args, interactivePicker)
	},
}

func runHistoryRestoreWithWriter(ctx context.Context, w io.Writer, args []string, pick picker) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	var index string
	if len(args) > 0 {
		index = args[0]
	} else {
		history, err := sess.manager.History(ctx)
		if err != nil {
			return operationError(err)
		}
		if len(history) == 0 {
			fmt.Fprintln(w, "No snapshots recorded")
			return nil
		}
		i, err := pick(history)
		if errors.Is(err, errRestoreCancelled) {
			fmt.Fprintln(w, "Restore cancelled")
			return nil
		}
		if err != nil {
			return err
		}
		index = strconv.Itoa(i)
	}

	token, err := sess.token(backup.ActionRestore)
	if err != nil {
		return err
	}

	result, err := sess.manager.Restore(ctx, backup.RestoreRequest{Token: token, Index: index})
	if err != nil {
		return operationError(err)
	}

	fmt.Fprintf(w, "Restored snapshot %d (%s, %s): %s\n",
		result.Index,
		result.Target.Reason,
		result.Target.Time().Local().Format("2006-01-02 15:04:05"),
		domainList(result.Applied))
	if result.Backup != nil {
		fmt.Fprintln(w, "Previous configuration saved to history")
	}
	return nil
}

// interactivePicker lets the user choose an entry with a fuzzy finder.
func interactivePicker(history []*snapshot.Snapshot) (int, error) {
	if !logging.IsTTY(os.Stdout) {
		return 0, errors.NewUserError(
			errors.New("no snapshot index given"),
			"Pass an index, e.g. 'siteconf history restore 0' (see 'siteconf history list')")
	}

	idx, err := fuzzyfinder.Find(
		history,
		func(i int) string {
			s := history[i]
			return fmt.Sprintf("%d: %s %s", i, s.Time().Local().Format("2006-01-02 15:04:05"), s.Reason)
		},
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			s := history[i]
			return fmt.Sprintf("Index:   %d\nCreated: %s\nReason:  %s\nVersion: %s\nOrigin:  %s\n\nDomains:\n  %s",
				i,
				s.Time().Local().Format("2006-01-02 15:04:05"),
				s.Reason,
				s.SchemaVersion,
				s.OriginSiteIdentifier,
				domainList(s.Domains.Present()))
		}),
		fuzzyfinder.WithPromptString("restore> "),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return 0, errRestoreCancelled
		}
		return 0, errors.Wrap(err, "interactive selection failed")
	}
	return idx, nil
}
