// Package daemon coordinates the long-running DeepShield server process.
//
// It wires configuration, the post store, the media directory, and the
// analysis workflow manager into a single lifecycle with flock-based locking
// so only one server owns a data directory. Startup releases claims left by a
// previous process and removes stale partial uploads before the workflow lanes
// start. The HTTP API, static media serving, and the status endpoint live here
// too.
//
// Keep orchestration logic here: analysis steps belong to their own packages
// while the daemon focuses on startup, shutdown, and request routing.
package daemon
