// Package workflow drains the transcription queue.
//
// The Manager owns one actor goroutine. Enqueue and Clear requests reach it
// over a command channel; it persists new tasks and arms a single drain pass
// whenever there is work and none is running. The drain pass walks tasks in
// FIFO order and their files in index order, persisting every transition,
// isolating per-file failures, and removing each uploaded file once it has
// been consumed.
//
// While a file is being transcribed a progress pacer runs beside the call and
// writes estimated progress (below progress_cap) until the call returns. The
// pacer is stopped and waited on before the terminal transition is written.
//
// Readers never touch the actor's state directly: Snapshot returns the last
// published Idle/Draining state.
package workflow
