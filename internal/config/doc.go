// Package config loads, normalizes, and validates DeepShield configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// JWT_SECRET and PORT. The Config type centralizes every knob the server and
// CLI need, so collaborator endpoints, deadlines and frame bounds reach the
// analysis pipeline as one explicitly passed value.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
