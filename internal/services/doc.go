// Package services defines shared utilities consumed by the transcription
// workflow and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, file indexes, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (timeout, external tool, validation) after the fact.
//
// The whisperx subpackage wraps the transcription CLI behind a small
// interface the workflow manager can fake in tests.
package services
