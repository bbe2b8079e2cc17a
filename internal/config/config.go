// Package config provides configuration management for siteconf using Viper.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/paths"
)

// EnvPrefix prefixes environment overrides, e.g. SITECONF_STORE_DRIVER.
const EnvPrefix = "SITECONF"

// Default values.
const (
	DefaultDriver               = "sqlite"
	DefaultLedgerKey            = "config_snapshot_history"
	DefaultRetention            = 5
	DefaultMaintenanceRetention = 10
	DefaultMaintenanceInterval  = 24 * time.Hour
	DefaultServerAddr           = "127.0.0.1:8080"
	DefaultTokenTTL             = 15 * time.Minute
)

// Config represents the top-level configuration structure.
type Config struct {
	Version     int               `mapstructure:"version" yaml:"version"`
	Site        SiteConfig        `mapstructure:"site" yaml:"site"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Ledger      LedgerConfig      `mapstructure:"ledger" yaml:"ledger"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance" yaml:"maintenance"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Security    SecurityConfig    `mapstructure:"security" yaml:"security"`
	Reset       ResetConfig       `mapstructure:"reset" yaml:"reset"`
}

// SiteConfig identifies the site recorded in snapshots.
type SiteConfig struct {
	Identifier string `mapstructure:"identifier" yaml:"identifier"`
}

// StoreConfig selects the configuration store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// LedgerConfig controls the snapshot history.
type LedgerConfig struct {
	Key                  string `mapstructure:"key" yaml:"key"`
	Retention            int    `mapstructure:"retention" yaml:"retention"`
	MaintenanceRetention int    `mapstructure:"maintenance_retention" yaml:"maintenance_retention"`
}

// MaintenanceConfig controls the periodic history trim.
type MaintenanceConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// SecurityConfig holds the token signing secret and lifetimes.
type SecurityConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// ResetConfig controls reset semantics.
type ResetConfig struct {
	// Legacy keeps widget settings and the activation counter on reset.
	Legacy bool `mapstructure:"legacy" yaml:"legacy"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join(paths.ConfigHome(), paths.AppName))

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, value := range defaults() {
		viper.SetDefault(key, value)
	}
}

func defaults() map[string]any {
	return map[string]any{
		"version":                      1,
		"site.identifier":              "",
		"store.driver":                 DefaultDriver,
		"store.path":                   "",
		"ledger.key":                   DefaultLedgerKey,
		"ledger.retention":             DefaultRetention,
		"ledger.maintenance_retention": DefaultMaintenanceRetention,
		"maintenance.interval":         DefaultMaintenanceInterval,
		"server.addr":                  DefaultServerAddr,
		"security.secret":              "",
		"security.token_ttl":           DefaultTokenTTL,
		"reset.legacy":                 false,
	}
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Version: 1,
		Store:   StoreConfig{Driver: DefaultDriver},
		Ledger: LedgerConfig{
			Key:                  DefaultLedgerKey,
			Retention:            DefaultRetention,
			MaintenanceRetention: DefaultMaintenanceRetention,
		},
		Maintenance: MaintenanceConfig{Interval: DefaultMaintenanceInterval},
		Server:      ServerConfig{Addr: DefaultServerAddr},
		Security:    SecurityConfig{TokenTTL: DefaultTokenTTL},
	}
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations.
// Returns the loaded configuration or default values if no file is found (when path is empty).
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || isNotExist(err)
		switch {
		case missing && path != "":
			return nil, errors.Mark(errors.Wrapf(err, "config file not found at %s", path), ErrConfigNotFound)
		case missing:
			// Implicit search with no file: defaults apply.
		default:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	return &cfg, nil
}

// StorePath returns the configured store path, or the driver's default
// location under the XDG data directory.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return paths.DefaultStorePath(c.Store.Driver)
}

// Settings returns the configuration as nested maps keyed like the config
// file, with durations rendered as strings. It is the form written by
// config init and printed by config show.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"version": c.Version,
		"site": map[string]any{
			"identifier": c.Site.Identifier,
		},
		"store": map[string]any{
			"driver": c.Store.Driver,
			"path":   c.Store.Path,
		},
		"ledger": map[string]any{
			"key":                   c.Ledger.Key,
			"retention":             c.Ledger.Retention,
			"maintenance_retention": c.Ledger.MaintenanceRetention,
		},
		"maintenance": map[string]any{
			"interval": c.Maintenance.Interval.String(),
		},
		"server": map[string]any{
			"addr": c.Server.Addr,
		},
		"security": map[string]any{
			"secret":    c.Security.Secret,
			"token_ttl": c.Security.TokenTTL.String(),
		},
		"reset": map[string]any{
			"legacy": c.Reset.Legacy,
		},
	}
}
