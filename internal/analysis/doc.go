// Package analysis turns a stored video into a deepfake verdict.
//
// Pipeline runs frame extraction and detection under the caller's deadline;
// Summarize applies the aggregation rules to the per-frame verdicts.
package analysis
