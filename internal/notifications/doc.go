// Package notifications publishes post lifecycle events.
//
// Events go to ntfy as human-readable messages and to NATS as JSON documents
// on `<prefix>.<event>` subjects. Either sink, both, or neither may be
// configured; callers depend only on the Service interface and treat publish
// errors as non-fatal.
package notifications
