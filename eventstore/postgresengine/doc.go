// Package postgresengine provides the PostgreSQL implementation of the event store
// contract defined in the eventstore package.
//
// The engine supports multiple database libraries (pgx.Pool, sql.DB, sqlx.DB) through
// internal adapters, builds all SQL with goqu, and offers functional options for table
// names, logging, and metrics.
//
// Expected schema (one event table per aggregate family, one shared aggregate table):
//
//	CREATE TABLE events (
//	    insertion_id    BIGSERIAL PRIMARY KEY,
//	    event_type      TEXT NOT NULL,
//	    aggregate_id    TEXT NOT NULL,
//	    occurred_at     TIMESTAMP WITH TIME ZONE NOT NULL,
//	    sequence_number TEXT NULL,
//	    payload         JSONB NOT NULL,
//	    metadata        JSONB NOT NULL,
//	    tombstoned      BOOLEAN NOT NULL DEFAULT FALSE
//	);
//	CREATE INDEX events_order_idx ON events (occurred_at, sequence_number NULLS FIRST, insertion_id);
//	CREATE INDEX events_aggregate_idx ON events (aggregate_id);
//	CREATE INDEX events_sequence_idx ON events (sequence_number) WHERE sequence_number IS NOT NULL;
//
//	CREATE TABLE aggregates (
//	    aggregate_id   TEXT PRIMARY KEY,
//	    aggregate_type TEXT NOT NULL,
//	    version        BIGINT NOT NULL,
//	    state          JSONB NOT NULL
//	);
package postgresengine
