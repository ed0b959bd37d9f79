// Package logging assembles structured slog loggers used across DeepShield.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so handlers and analysis workers
// tag log lines with post IDs, user IDs, and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
