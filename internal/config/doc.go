// Package config loads, normalizes, and validates grabarr's TOML
// configuration.
//
// Load resolves the config path (explicit flag, ~/.config/grabarr, or a
// project-local grabarr.toml), overlays the file on top of Default(), expands
// ~ in every path field, and validates the result. Components receive the
// *Config by reference; nothing in this package is ambient state.
package config
