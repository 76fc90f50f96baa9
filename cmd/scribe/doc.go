// Package main hosts the Scribe CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into IPC calls
// against the daemon: lifecycle control, queue inspection, task results,
// local file submission and configuration scaffolding. The hidden daemon
// command runs the long-lived process itself.
//
// Keep this package lean: new behavior belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
