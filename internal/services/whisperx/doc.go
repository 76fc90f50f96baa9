// Package whisperx runs the WhisperX CLI (through uvx) against a media file
// and reduces its JSON output to the text, detected language, and duration
// the transcription queue records for a completed file.
//
// Configuration options (model, CUDA, VAD method, language) are passed via
// Config. Tests inject a command runner that writes the JSON payload instead
// of invoking uvx.
package whisperx
