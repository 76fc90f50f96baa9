// Package api defines wire-format types and the read-side query service for
// the HTTP and IPC layers. It translates internal queue models into
// transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// Task / File: transport representation of a task and its files with derived
// status, overall progress and per-status counts.
//
// FileResult: the transcription of one Completed file.
//
// QueueInfo: queue length, whether a task is in flight, and that task.
//
// IncompleteError: returned by GetTaskResults while any file is still
// outstanding; it lists those files.
//
// # Query Semantics
//
// All reads are snapshot reads against the queue store and never wait on the
// processing loop. Missing tasks, out-of-range file indexes and results of
// files that have not completed are reported as absence (nil, nil), not as
// errors. Callers distinguish "no such file" from "not ready yet" with a
// separate GetFile call.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the HTTP API. Enums (queue.FileStatus,
// queue.TaskStatus) are exposed as lowercase strings. Timestamps use RFC3339
// with milliseconds.
package api
