package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/snapshot"
)

var historyListJSON bool

func init() {
	historyListCmd.Flags().BoolVar(&historyListJSON, "json", false, "Output in JSON format")
	historyCmd.AddCommand(historyListCmd)
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded snapshots",
	Long: `List the snapshot history, oldest first. The INDEX column is the value
accepted by 'siteconf history restore'.`,
	Example: `  # List snapshots
  siteconf history list

  # Output as JSON
  siteconf history list --json

  See Also: siteconf history restore`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistoryListWithWriter(cmd.Context(), cmd.OutOrStdout(), historyListJSON)
	},
}

// historyEntry represents a single snapshot in JSON output.
type historyEntry struct {
	Index         int       `json:"index"`
	CreatedAt     time.Time `json:"created_at"`
	Reason        string    `json:"reason"`
	SchemaVersion string    `json:"schema_version"`
	Domains       []string  `json:"domains"`
}

func runHistoryListWithWriter(ctx context.Context, w io.Writer, asJSON bool) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	history, err := sess.manager.History(ctx)
	if err != nil {
		return operationError(err)
	}

	if asJSON {
		return outputHistoryJSON(w, history)
	}
	outputHistoryTabular(w, history)
	return nil
}

func outputHistoryJSON(w io.Writer, history []*snapshot.Snapshot) error {
	output := make([]historyEntry, len(history))
	for i, s := range history {
		domains := s.Domains.Present()
		if domains == nil {
			domains = []string{}
		}
		output[i] = historyEntry{
			Index:         i,
			CreatedAt:     s.Time(),
			Reason:        string(s.Reason),
			SchemaVersion: s.SchemaVersion,
			Domains:       domains,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(output), "encoding output")
}

func outputHistoryTabular(w io.Writer, history []*snapshot.Snapshot) {
	if len(history) == 0 {
		fmt.Fprintln(w, "No snapshots recorded")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Snapshots are recorded automatically before import, reset and restore.")
		fmt.Fprintln(w, "You can also record one manually with: siteconf history capture")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		paint(w, headerColor, "INDEX"),
		paint(w, headerColor, "CREATED"),
		paint(w, headerColor, "REASON"),
		paint(w, headerColor, "VERSION"),
		paint(w, headerColor, "DOMAINS"))

	for i, s := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			paint(w, indexColor, strconv.Itoa(i)),
			s.Time().Local().Format("2006-01-02 15:04:05"),
			s.Reason,
			s.SchemaVersion,
			domainList(s.Domains.Present()))
	}
	tw.Flush()
}
