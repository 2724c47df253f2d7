// Package config loads and merges margin configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (MARGIN_SIDECAR_DIR, MARGIN_AUTHOR, MARGIN_FORMAT, etc.)
//  3. Project config file (<root>/.margin/config.yaml)
//  4. User config file ($XDG_CONFIG_HOME/margin/config.yaml)
//  5. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write a config file, and
// [SetField] to update a single key.
package config
