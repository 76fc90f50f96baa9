// Package queue persists transcription tasks and their files in SQLite and
// defines the file lifecycle.
//
// A Task is a fixed-length batch of TaskFiles. Files move Pending ->
// Processing -> Completed|Failed through the methods on TaskFile; the task's
// own status is derived from its files on every read and never stored.
//
// The Store writes a task and all of its file rows in one transaction
// (UpsertTask), reads tasks back by id, and answers the pending-work queries
// the workflow manager drains from. The database is treated as transient
// storage for in-flight work. Schema changes bump schemaVersion in schema.go;
// users clear the database to adopt the new schema.
package queue
