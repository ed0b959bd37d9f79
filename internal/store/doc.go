// Package store persists users, posts, likes, comments and analysis results in
// SQLite and exposes the atomic transitions that drive a post's analysis
// status.
//
// The Store manages the database connection, schema initialization, status
// counts, claim and heartbeat tracking for in-flight analyses, stale claim
// recovery, and the conditional updates that move a post from processing to
// completed or failed. Status and analysis payload are always written by the
// same statement so readers never observe one without the other.
//
// The schema version lives in PRAGMA user_version. A database stamped with a
// different version is rejected with ErrSchemaMismatch rather than migrated.
package store
