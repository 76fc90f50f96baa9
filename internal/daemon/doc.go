// Package daemon coordinates the long-running scribe process.
//
// It wires configuration, queue storage, the workflow manager, and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. On start it applies the startup reset policy (clear every task
// record, or fail files interrupted by the previous shutdown), then starts
// the processing loop and the API server.
//
// The HTTP API accepts multipart uploads on POST /transcribe and serves task
// status, results, queue and health reads through api.QueryService.
//
// Keep orchestration logic here: transcription and queue semantics live in
// their respective packages while the daemon focuses on startup, shutdown,
// and transport.
package daemon
