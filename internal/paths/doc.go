// Package paths resolves the per-user directories siteconf uses, following
// the XDG base directory conventions via github.com/adrg/xdg.
//
//	<ConfigHome>/siteconf/config.yaml   configuration
//	<DataHome>/siteconf/site.db         SQLite store (default)
//	<DataHome>/siteconf/site.json       JSON file store
package paths
