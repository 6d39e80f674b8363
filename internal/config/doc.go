// Package config loads user-level cargox settings from
// <user config dir>/cargox/config.yaml, or from an explicit --config file.
// Command-line flags bound with BindFlags take precedence over file values.
package config
