package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/siteconf/internal/doctor"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/paths"
)

var (
	doctorJSON    bool
	doctorVerbose bool
	doctorFix     bool
)

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false,
		"output results as JSON")
	doctorCmd.Flags().BoolVar(&doctorVerbose, "all", false,
		"show passed and informational checks too")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false,
		"tighten loose file permissions")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration and store issues",
	Long: `Run diagnostic checks on the siteconf configuration, the store and the
snapshot history.

Checks that the configuration is valid, a signing secret is set, the store
is readable, every history entry decodes and the store and config files are
private to the current user. With --fix, loose permissions are tightened.

Exit codes:
  0 - All checks passed (no errors or warnings)
  1 - Warnings present, no errors
  2 - Errors present`,
	Example: `  siteconf doctor
  siteconf doctor --all
  siteconf doctor --fix

See Also: siteconf config show`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := doctorOptions{JSON: doctorJSON, All: doctorVerbose, Fix: doctorFix, ConfigFile: configFile}
		return runDoctorWithWriter(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

// doctorOptions selects the output mode of runDoctorWithWriter.
type doctorOptions struct {
	JSON       bool
	All        bool
	Fix        bool
	ConfigFile string
}

// errDoctorWarnings is a sentinel error for exit code 1.
var errDoctorWarnings = errors.New("warnings found")

// errDoctorErrors is a sentinel error for exit code 2.
var errDoctorErrors = errors.New("errors found")

func runDoctorWithWriter(ctx context.Context, w io.Writer, opts doctorOptions) error {
	cfg := currentConfig()
	runner := doctor.NewRunner()
	runner.AddCheck(doctor.NewConfigCheck(cfg))
	runner.AddCheck(doctor.NewSecretCheck(cfg))

	path := cfg.StorePath()
	if storePath != "" {
		path = storePath
	}

	sess, err := openSession(ctx)
	if err != nil {
		runner.AddCheck(doctor.NewUnavailableStoreCheck(cfg.Store.Driver, path, err))
	} else {
		defer sess.Close()
		runner.AddCheck(doctor.NewStoreCheck(sess.store, cfg.Store.Driver, path))
		runner.AddCheck(doctor.NewHistoryCheck(sess.store, cfg.Ledger.Key, cfg.Ledger.MaintenanceRetention))
	}

	cfgPath := opts.ConfigFile
	if cfgPath == "" {
		cfgPath = paths.ConfigFile()
	}
	perms := doctor.NewPermissionCheck(path, cfgPath)
	runner.AddCheck(perms)

	report := runner.Run(ctx)

	var fixes []doctor.FixResult
	if opts.Fix && perms.CanFix() {
		fixes = perms.Fix()
		report = runner.Run(ctx)
	}

	if opts.JSON {
		if err := outputDoctorJSON(w, report, fixes); err != nil {
			return err
		}
	} else {
		outputDoctorText(w, report, fixes, opts.All)
	}

	if report.HasErrors() {
		return errors.NewExitError(errDoctorErrors, errors.ExitSystem)
	}
	if report.HasWarnings() {
		return errors.NewExitError(errDoctorWarnings, errors.ExitUser)
	}
	return nil
}

func outputDoctorJSON(w io.Writer, report *doctor.Report, fixes []doctor.FixResult) error {
	out := struct {
		*doctor.Report
		Fixes []doctor.FixResult `json:"fixes,omitempty"`
	}{report, fixes}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "encoding JSON")
}

func outputDoctorText(w io.Writer, report *doctor.Report, fixes []doctor.FixResult, showAll bool) {
	for _, f := range fixes {
		status := "fixed"
		if !f.Fixed {
			status = "not fixed"
		}
		fmt.Fprintf(w, "%s: %s (%s)\n", status, f.Path, f.Description)
	}
	if len(fixes) > 0 {
		fmt.Fprintln(w)
	}

	hasOutput := false
	for _, result := range report.Results {
		problem := result.Status == doctor.SeverityError || result.Status == doctor.SeverityWarning
		if !showAll && !problem {
			continue
		}

		hasOutput = true
		fmt.Fprintf(w, "%s [%s] %s: %s\n", statusIcon(w, result.Status), result.Category, result.Name, result.Message)
		if result.FixHint != "" && problem {
			fmt.Fprintf(w, "  hint: %s\n", result.FixHint)
		}
	}

	if hasOutput {
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Summary: %d passed, %d info, %d warnings, %d errors\n",
		report.Summary.Passed, report.Summary.Info, report.Summary.Warnings, report.Summary.Errors)
}

func statusIcon(w io.Writer, s doctor.Severity) string {
	switch s {
	case doctor.SeverityPass:
		return paint(w, passColor, "✓")
	case doctor.SeverityInfo:
		return paint(w, infoColor, "ℹ")
	case doctor.SeverityWarning:
		return "⚠"
	case doctor.SeverityError:
		return "✗"
	default:
		return "?"
	}
}
