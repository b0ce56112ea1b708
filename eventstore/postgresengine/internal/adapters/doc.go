// Package adapters provides database adapter implementations for the PostgreSQL event store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database
// libraries: pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality
// through a common DBAdapter interface, including transactions spanning multiple writes,
// allowing the event store to work seamlessly with any supported connection type.
package adapters
