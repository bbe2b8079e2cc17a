package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/cmd"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long: `Print the version, commit, and build date of siteconf. The version is
recorded as the schema version of every snapshot this build produces.`,
	Run: func(c *cobra.Command, _ []string) {
		runVersionWithWriter(c.OutOrStdout())
	},
}

func runVersionWithWriter(w io.Writer) {
	fmt.Fprintf(w, "siteconf version %s\n", cmd.Version)
	fmt.Fprintf(w, "  commit:    %s\n", cmd.Commit)
	fmt.Fprintf(w, "  built:     %s\n", cmd.Date)
	fmt.Fprintf(w, "  go:        %s\n", runtime.Version())
}
