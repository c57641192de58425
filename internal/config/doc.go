// Package config loads, normalizes, and validates sluice configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VDOCIPHER_API_KEY. Coordination settings are validated for every command;
// pipeline credentials are only checked by commands that actually call the
// external APIs, so split/status/reconcile work on a machine without keys.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
