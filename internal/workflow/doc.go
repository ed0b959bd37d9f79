// Package workflow runs background deepfake analysis for video posts.
//
// The Manager owns a fixed number of worker lanes. Each lane claims the
// oldest processing post without a live claim, runs the analysis pipeline
// under a per-run deadline while refreshing the claim heartbeat, and writes
// the outcome with a claim-conditional update so a stale run can never
// overwrite a newer one. Lane 0 also releases claims whose heartbeat has gone
// quiet so crashed runs are retried.
//
// Post creation and re-analysis call Submit to wake an idle lane instead of
// waiting for the next poll. The manager also serves the synchronous
// secondary-detector runs and aggregates status for the daemon API.
package workflow
