// Package config loads, normalizes, and validates sorter configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files or the legacy YAML document, and honours the
// SORTER_LOG_LEVEL environment override. The Config type is the only source
// of the WatchSet the engine runs with.
//
// Always obtain settings through this package so downstream code receives
// absolute watch roots, normalized extensions, and clear validation errors.
package config
