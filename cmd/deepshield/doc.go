// Package main hosts the DeepShield CLI entrypoint and command graph.
//
// The Cobra-based command tree starts the HTTP server, inspects posts and
// their analysis state straight from the store, queries a running server's
// status endpoint, and scaffolds configuration. Configuration resolution lives
// in one place so subcommands can focus on output.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through dedicated commands or flags here.
package main
