// Package config loads, normalizes, and validates the TOML configuration
// that drives delivery and republish runs.
package config
