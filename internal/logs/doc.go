// Package logs tails daemon log files for the CLI.
//
// Tail reads the last N lines or everything after a byte offset with bounded
// memory, optionally waiting for new lines in follow mode. A Filter narrows
// output to lines mentioning one task, which is how `scribe logs --task`
// isolates a single transcription run.
package logs
