// Package eventstore provides the core types and contracts of a mutable event store:
// the StorableEvent DTO, the total order over events, the filter builder, aggregate
// state snapshots with optimistic locking, and the Store interface implemented by the
// engines in the subpackages.
//
// "Mutable" means history can be corrected: events reference the Action that produced
// them via their sequence number, and an Action can later be edited, deleted, or
// backdated. Corrections never rewrite rows in place; superseded events are tombstoned
// and replacement events are appended, while the total order
// (occurred_at, sequence_number NULLS FIRST, insertion_id) keeps every replay
// deterministic.
package eventstore
