package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName names the per-user directories siteconf owns.
const AppName = "siteconf"

// Store drivers and their default file names under DataDir.
const (
	SQLiteStoreFile = "site.db"
	JSONStoreFile   = "site.json"
)

// DefaultDirPerm is the default permission for newly created directories (private).
const DefaultDirPerm = 0o700

// EnsureDir creates the directory and any necessary parents with specified permissions.
// If perm is 0, DefaultDirPerm (0700) is used. It is a no-op for existing directories.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// ConfigHome returns the XDG config home directory.
// On Linux: ~/.config
// On macOS: ~/Library/Application Support
// On Windows: %LOCALAPPDATA%
func ConfigHome() string {
	return xdg.ConfigHome
}

// DataHome returns the XDG data home directory.
// On Linux: ~/.local/share
func DataHome() string {
	return xdg.DataHome
}

// ConfigDir returns <ConfigHome>/siteconf.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// ConfigFile returns the default config file path, <ConfigHome>/siteconf/config.yaml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns <DataHome>/siteconf, where store files live.
func DataDir() string {
	return filepath.Join(DataHome(), AppName)
}

// DefaultStorePath returns the store location for a driver.
// The memory driver has no path.
func DefaultStorePath(driver string) string {
	switch driver {
	case "sqlite":
		return filepath.Join(DataDir(), SQLiteStoreFile)
	case "file":
		return filepath.Join(DataDir(), JSONStoreFile)
	default:
		return ""
	}
}
