// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Task
// payloads reuse the HTTP API types so both surfaces render the same shapes.
// Enqueue only accepts files already staged in the daemon upload directory;
// the processing loop removes them once each file reaches a terminal state.
package ipc
