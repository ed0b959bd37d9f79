// Package preflight provides readiness checks for the filesystem paths and
// remote collaborators DeepShield depends on.
//
// These checks run in two contexts:
//   - The server reports them through /api/status as workflow stage health.
//   - The CLI "deepshield deps" command calls them directly, so health can
//     be checked without a running server.
//
// Checks for collaborators that are not configured are skipped.
package preflight
