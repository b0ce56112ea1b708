package eventstore

import (
	"context"
)

// Transaction is an open storage transaction shared by all writes of one unit of work.
// Implementations wrap their native transaction handle; engine methods taking a
// Transaction type-assert it back to their own handle.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionStarter begins storage transactions. The unit of work uses it to open
// one transaction spanning event appends, tombstones, and aggregate persists.
type TransactionStarter interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

// Store is the contract every event store engine fulfills for one event table.
//
// Events are immutable facts except for the Tombstoned flag which supports
// retroactive edits and deletes. Aggregate state rows are guarded by an
// optimistic-lock version (compare-and-swap on update).
type Store interface {
	TransactionStarter

	// EventTable returns the name of the event table this store is bound to.
	EventTable() string

	// Query returns all events matching the filter, sorted in total order:
	// occurred_at ASC, sequence_number ASC with NULL first, insertion_id ASC.
	// Tombstoned events are excluded unless the filter includes them.
	Query(ctx context.Context, filter Filter) (StorableEvents, error)

	// EventsForAction returns all live events produced by the Action with the given
	// sequence number, in total order. Use EventsForActionIncludingTombstoned for
	// the audit view of edited or deleted Actions.
	// Returns ErrActionNotFound if no live event carries the sequence number.
	EventsForAction(ctx context.Context, sequenceNumber string) (StorableEvents, error)

	// EventsForActionIncludingTombstoned returns all events produced by the Action
	// with the given sequence number, tombstoned ones included (audit view), in
	// total order.
	// Returns ErrActionNotFound if no event carries the sequence number.
	EventsForActionIncludingTombstoned(ctx context.Context, sequenceNumber string) (StorableEvents, error)

	// Append appends the given events in its own short transaction.
	Append(ctx context.Context, events ...StorableEvent) error

	// AppendInTx appends the given events within the supplied transaction and
	// returns the insertion IDs the store assigned, in event order.
	AppendInTx(ctx context.Context, tx Transaction, events ...StorableEvent) ([]int64, error)

	// TombstoneInTx marks the events with the given insertion IDs as tombstoned
	// within the supplied transaction. Tombstoned events stay stored for audit but
	// disappear from default queries and replays.
	TombstoneInTx(ctx context.Context, tx Transaction, insertionIDs ...int64) error

	// LoadAggregate returns the stored state row of the aggregate with the given ID.
	// Returns ErrAggregateNotFound if the aggregate has never been persisted.
	LoadAggregate(ctx context.Context, aggregateID string) (AggregateSnapshot, error)

	// SaveAggregateInTx persists the snapshot within the supplied transaction.
	// A snapshot with Version zero is inserted as version one; any other version N
	// is a compare-and-swap update against the stored version N which bumps it to N+1.
	// Returns ErrVersionConflict when the stored version does not match.
	SaveAggregateInTx(ctx context.Context, tx Transaction, snapshot AggregateSnapshot) error

	// ConfirmVersion re-reads the stored version of the aggregate and returns
	// ErrVersionConflict if it does not match the expected version, or
	// ErrAggregateNotFound if the aggregate does not exist.
	ConfirmVersion(ctx context.Context, aggregateID string, expectedVersion uint) error
}
