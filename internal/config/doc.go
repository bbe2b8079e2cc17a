// Package config provides configuration management for the siteconf CLI.
//
// # Configuration File
//
// The default configuration file location is
// $XDG_CONFIG_HOME/siteconf/config.yaml; ./config.yaml takes precedence.
// The file uses YAML:
//
//	version: 1
//	site:
//	  identifier: https://example.test
//	store:
//	  driver: sqlite        # sqlite, file or memory
//	  path: ""              # defaults to $XDG_DATA_HOME/siteconf/site.db
//	ledger:
//	  key: config_snapshot_history
//	  retention: 5
//	  maintenance_retention: 10
//	maintenance:
//	  interval: 24h
//	server:
//	  addr: 127.0.0.1:8080
//	security:
//	  secret: ""            # at least 32 bytes; see siteconf config init
//	  token_ttl: 15m
//	reset:
//	  legacy: false
//
// Every key can be overridden from the environment with the SITECONF_
// prefix and dots replaced by underscores, e.g. SITECONF_STORE_DRIVER.
//
// # Loading Configuration
//
// Call [Init] once, then [Load]:
//
//	config.Init()
//	cfg, err := config.Load("")
//
// An explicit path that does not exist is an error; an implicit search
// that finds nothing yields defaults.
//
// # Validation
//
//	for _, err := range config.Validate(cfg) {
//	    fmt.Println(err)
//	}
package config
