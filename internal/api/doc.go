// Package api defines the wire-format types of the HTTP API and the
// converters that build them from store records.
//
// # Key Types
//
// Post: list entry with creator profile, like and comment counts, analysis
// status, and the analysis summary once one exists.
//
// PostDetail: a Post plus its comments, liker ids, and the full
// deepfake_analysis payload.
//
// SecondaryAnalysis: the stored result of the secondary detector.
//
// DaemonStatus: server runtime information including workflow counters and
// dependency health.
//
// # Design Notes
//
// DTOs use snake_case JSON tags matching the web client. Timestamps use
// RFC3339 with milliseconds. Analysis payloads reuse store.Analysis, whose
// tags already match the wire format.
package api
