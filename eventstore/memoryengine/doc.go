// Package memoryengine provides an in-memory implementation of the event store
// contract defined in the eventstore package.
//
// A shared Backend plays the role of the database: multiple store views bound to
// different table names share one Backend, so a single transaction can span event
// appends, tombstones, and aggregate persists across all of them. The engine is
// intended for unit tests and examples; it mirrors the Postgres engine's semantics
// including compare-and-swap version checks.
package memoryengine
