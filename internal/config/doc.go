// Package config loads, normalizes, and validates easel's TOML configuration.
//
// Configuration resolution order: explicit --config flag path, then
// ~/.config/easel/config.toml, then built-in defaults. Environment variables
// override only secrets (REPLICATE_API_TOKEN).
package config
