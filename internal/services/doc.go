// Package services defines shared utilities consumed by the request handlers,
// the analysis workers, and the collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp post IDs, user IDs, worker names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so the HTTP layer can map
//     failures to status codes and the analysis manager can record a failure
//     message without losing the cause.
package services
