// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The transcription queue only needs media duration (for progress pacing and
// as a fallback when WhisperX reports no segments) and a stream sanity check,
// so Result exposes just those helpers. Prober binds a binary path so callers
// can pass Duration around as a plain function.
package ffprobe
