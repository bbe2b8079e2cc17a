package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/siteconf/internal/config"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/guard"
	"github.com/thoreinstein/siteconf/internal/logging"
	"github.com/thoreinstein/siteconf/internal/paths"
	"github.com/thoreinstein/siteconf/pkg/fileutil"
)

// Output formats for config show.
const (
	formatYAML = "yaml"
	formatTOML = "toml"
	formatJSON = "json"
)

var (
	configShowFormat  string
	configShowSecrets bool
	configInitForce   bool
)

func init() {
	configShowCmd.Flags().StringVarP(&configShowFormat, "format", "f", formatYAML,
		"output format: yaml, toml, json")
	configShowCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false,
		"print security.secret unmasked")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false,
		"overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage siteconf configuration",
	Long: `Manage siteconf configuration stored in ./config.yaml or
$XDG_CONFIG_HOME/siteconf/config.yaml. Every key can also be set through
the environment with the SITECONF_ prefix, e.g. SITECONF_STORE_DRIVER.

Without a subcommand, shows the effective configuration.`,
	Example: `  # Show the effective configuration
  siteconf config

  # Show it as TOML
  siteconf config show --format toml

  # Write a config file with a fresh signing secret
  siteconf config init`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runConfigShowWithWriter(cmd.OutOrStdout(), formatYAML, false)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after defaults, the config file and environment
overrides are merged. security.secret is masked unless --show-secrets is
given.`,
	Example: `  siteconf config show
  siteconf config show --format json

See Also: siteconf config init`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runConfigShowWithWriter(cmd.OutOrStdout(), configShowFormat, configShowSecrets)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Init writes the default configuration, including a freshly generated
security.secret, to the --config path or
$XDG_CONFIG_HOME/siteconf/config.yaml. The file is written with private
permissions.`,
	Example: `  siteconf config init
  siteconf --config ./config.yaml config init --force

See Also: siteconf config show`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configFile
		if path == "" {
			path = paths.ConfigFile()
		}
		return runConfigInitWithWriter(cmd.OutOrStdout(), path, configInitForce)
	},
}

func runConfigShowWithWriter(w io.Writer, format string, showSecrets bool) error {
	settings := currentConfig().Settings()
	if !showSecrets {
		maskSecrets(settings)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case formatYAML:
		data, err = yaml.Marshal(settings)
	case formatTOML:
		data, err = toml.Marshal(settings)
	case formatJSON:
		data, err = json.MarshalIndent(settings, "", "  ")
		data = append(data, '\n')
	default:
		return errors.NewUserError(
			errors.Newf("unknown format %q", format),
			"Use one of: yaml, toml, json")
	}
	if err != nil {
		return errors.Wrapf(err, "marshaling config as %s", format)
	}

	_, err = w.Write(data)
	return errors.Wrap(err, "writing config")
}

// maskSecrets masks security.secret in place.
func maskSecrets(settings map[string]any) {
	security, ok := settings["security"].(map[string]any)
	if !ok {
		return
	}
	if s, ok := security["secret"].(string); ok && s != "" {
		security["secret"] = logging.MaskValue(s)
	}
}

func runConfigInitWithWriter(w io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.NewUserError(
			errors.Newf("config file already exists at %s", path),
			"Use --force to overwrite it")
	}

	secret, err := guard.GenerateSecret()
	if err != nil {
		return errors.NewSystemError(err, "")
	}
	cfg := config.Default()
	cfg.Security.Secret = secret

	if err := paths.EnsureDir(filepath.Dir(path), 0); err != nil {
		return errors.NewSystemError(errors.Wrap(err, "creating config directory"), "")
	}
	if err := fileutil.AtomicWriteYAML(path, cfg.Settings(), fileutil.PrivatePerm); err != nil {
		return errors.NewSystemError(errors.Wrap(err, "writing config file"), "")
	}

	fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}
