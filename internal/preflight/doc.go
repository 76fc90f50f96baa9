// Package preflight provides readiness checks for the filesystem paths and
// external binaries scribe depends on.
//
// These checks run in two contexts:
//   - The daemon reports them on GET /health and over IPC.
//   - The CLI "scribe status" command renders them next to the queue state.
//
// Checks never block processing. A failed check is reported, not enforced.
package preflight
