package memoryengine

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
)

const (
	defaultEventTableName     = "events"
	defaultAggregateTableName = "aggregates"
)

// ErrWrongTransactionType is returned when a transaction handle from another
// engine is passed to one of the ...InTx methods.
var ErrWrongTransactionType = errors.New("transaction was not started by this engine")

// ErrTransactionClosed is returned when a committed or rolled back transaction is reused.
var ErrTransactionClosed = errors.New("transaction is already closed")

// Backend holds the shared state of all in-memory stores: named event tables and one
// aggregate table per name. Multiple EventStore views bound to different tables share
// one Backend so that a single transaction can span all of them, mirroring stores that
// share one database.
type Backend struct {
	mu              sync.Mutex
	nextInsertionID int64
	events          map[string][]eventstore.StorableEvent
	aggregates      map[string]map[string]eventstore.AggregateSnapshot
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		events:     make(map[string][]eventstore.StorableEvent),
		aggregates: make(map[string]map[string]eventstore.AggregateSnapshot),
	}
}

// EventStore is a view on a Backend bound to one event table and one aggregate table.
// It implements the same contract as the Postgres engine and is intended for unit
// tests and examples.
type EventStore struct {
	backend            *Backend
	eventTableName     string
	aggregateTableName string
}

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithEventTableName sets the event table name for the EventStore.
func WithEventTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyTableNameSupplied
		}

		es.eventTableName = tableName

		return nil
	}
}

// WithAggregateTableName sets the aggregate state table name for the EventStore.
func WithAggregateTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyTableNameSupplied
		}

		es.aggregateTableName = tableName

		return nil
	}
}

// NewEventStore creates a store view on the given backend with optional configuration.
func NewEventStore(backend *Backend, options ...Option) (*EventStore, error) {
	es := &EventStore{
		backend:            backend,
		eventTableName:     defaultEventTableName,
		aggregateTableName: defaultAggregateTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// EventTable returns the name of the event table this store is bound to.
func (es *EventStore) EventTable() string {
	return es.eventTableName
}

// BeginTx starts a staged transaction on the shared backend. Writes are buffered and
// validated, then applied atomically under the backend lock on Commit.
func (es *EventStore) BeginTx(_ context.Context) (eventstore.Transaction, error) {
	return &Tx{backend: es.backend}, nil
}

// Query returns all events matching the filter, sorted in total order.
func (es *EventStore) Query(_ context.Context, filter eventstore.Filter) (eventstore.StorableEvents, error) {
	es.backend.mu.Lock()
	defer es.backend.mu.Unlock()

	result := make(eventstore.StorableEvents, 0)

	for _, event := range es.backend.events[es.eventTableName] {
		if matches(filter, event) {
			result = append(result, event)
		}
	}

	eventstore.SortInTotalOrder(result)

	return result, nil
}

// EventsForAction returns all live events produced by the Action with the given
// sequence number, in total order.
// Returns eventstore.ErrActionNotFound if no live event carries the sequence number.
func (es *EventStore) EventsForAction(ctx context.Context, sequenceNumber string) (eventstore.StorableEvents, error) {
	filter := eventstore.BuildEventFilter().
		Matching().
		AnySequenceNumberOf(sequenceNumber).
		Finalize()

	return es.eventsForAction(ctx, filter)
}

// EventsForActionIncludingTombstoned returns all events produced by the Action with
// the given sequence number, tombstoned ones included (audit view), in total order.
// Returns eventstore.ErrActionNotFound if no event carries the sequence number.
func (es *EventStore) EventsForActionIncludingTombstoned(ctx context.Context, sequenceNumber string) (eventstore.StorableEvents, error) {
	filter := eventstore.BuildEventFilter().
		Matching().
		AnySequenceNumberOf(sequenceNumber).
		IncludingTombstoned().
		Finalize()

	return es.eventsForAction(ctx, filter)
}

func (es *EventStore) eventsForAction(ctx context.Context, filter eventstore.Filter) (eventstore.StorableEvents, error) {
	events, err := es.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return nil, eventstore.ErrActionNotFound
	}

	return events, nil
}

// Append appends the given events outside any unit of work.
func (es *EventStore) Append(_ context.Context, events ...eventstore.StorableEvent) error {
	es.backend.mu.Lock()
	defer es.backend.mu.Unlock()

	es.backend.appendLocked(es.eventTableName, events)

	return nil
}

// AppendInTx stages the given events for append within the supplied transaction and
// returns the insertion IDs assigned to them, in event order. IDs are drawn from the
// backend counter at stage time, like a database sequence: a rollback burns them.
func (es *EventStore) AppendInTx(_ context.Context, tx eventstore.Transaction, events ...eventstore.StorableEvent) ([]int64, error) {
	ownTx, err := es.ownTx(tx)
	if err != nil {
		return nil, err
	}

	ownTx.mu.Lock()
	defer ownTx.mu.Unlock()

	if ownTx.closed {
		return nil, ErrTransactionClosed
	}

	insertionIDs := es.backend.allocateInsertionIDs(len(events))

	for i, event := range events {
		event.InsertionID = insertionIDs[i]
		ownTx.appends = append(ownTx.appends, stagedAppend{table: es.eventTableName, event: event})
	}

	return insertionIDs, nil
}

// TombstoneInTx stages tombstoning of the events with the given insertion IDs within
// the supplied transaction.
func (es *EventStore) TombstoneInTx(_ context.Context, tx eventstore.Transaction, insertionIDs ...int64) error {
	ownTx, err := es.ownTx(tx)
	if err != nil {
		return err
	}

	ownTx.mu.Lock()
	defer ownTx.mu.Unlock()

	if ownTx.closed {
		return ErrTransactionClosed
	}

	for _, insertionID := range insertionIDs {
		ownTx.tombstones = append(ownTx.tombstones, stagedTombstone{table: es.eventTableName, insertionID: insertionID})
	}

	return nil
}

// LoadAggregate returns the stored state row of the aggregate with the given ID.
// Returns eventstore.ErrAggregateNotFound if the aggregate has never been persisted.
func (es *EventStore) LoadAggregate(_ context.Context, aggregateID string) (eventstore.AggregateSnapshot, error) {
	es.backend.mu.Lock()
	defer es.backend.mu.Unlock()

	snapshot, found := es.backend.aggregates[es.aggregateTableName][aggregateID]
	if !found {
		return eventstore.AggregateSnapshot{}, eventstore.ErrAggregateNotFound
	}

	return snapshot, nil
}

// SaveAggregateInTx validates the snapshot version against the committed state and
// stages the persist within the supplied transaction. The version check is repeated
// on Commit so concurrent transactions cannot both win.
// Returns eventstore.ErrVersionConflict when the stored version does not match.
func (es *EventStore) SaveAggregateInTx(_ context.Context, tx eventstore.Transaction, snapshot eventstore.AggregateSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	ownTx, err := es.ownTx(tx)
	if err != nil {
		return err
	}

	es.backend.mu.Lock()
	conflictErr := es.backend.checkVersionLocked(es.aggregateTableName, snapshot)
	es.backend.mu.Unlock()

	if conflictErr != nil {
		return conflictErr
	}

	ownTx.mu.Lock()
	defer ownTx.mu.Unlock()

	if ownTx.closed {
		return ErrTransactionClosed
	}

	ownTx.saves = append(ownTx.saves, stagedSave{table: es.aggregateTableName, snapshot: snapshot})

	return nil
}

// ConfirmVersion re-reads the stored version of the aggregate and returns
// eventstore.ErrVersionConflict if it does not match the expected version, or
// eventstore.ErrAggregateNotFound if the aggregate does not exist.
func (es *EventStore) ConfirmVersion(ctx context.Context, aggregateID string, expectedVersion uint) error {
	snapshot, err := es.LoadAggregate(ctx, aggregateID)
	if err != nil {
		return err
	}

	if snapshot.Version != expectedVersion {
		return eventstore.ErrVersionConflict
	}

	return nil
}

func (es *EventStore) ownTx(tx eventstore.Transaction) (*Tx, error) {
	ownTx, ok := tx.(*Tx)
	if !ok || ownTx == nil || ownTx.backend != es.backend {
		return nil, ErrWrongTransactionType
	}

	return ownTx, nil
}

func matches(filter eventstore.Filter, event eventstore.StorableEvent) bool {
	if event.Tombstoned && !filter.IncludeTombstoned() {
		return false
	}

	if ids := filter.AggregateIDs(); len(ids) > 0 && !slices.Contains(ids, event.AggregateID) {
		return false
	}

	if types := filter.EventTypes(); len(types) > 0 && !slices.Contains(types, event.EventType) {
		return false
	}

	if sequenceNumbers := filter.SequenceNumbers(); len(sequenceNumbers) > 0 {
		if event.SequenceNumber == "" || !slices.Contains(sequenceNumbers, event.SequenceNumber) {
			return false
		}
	}

	if until := filter.OccurredUntil(); !until.IsZero() && event.OccurredAt.After(until) {
		return false
	}

	if point := filter.AtOrBeforePoint(); point != nil && !eventstore.IsAtOrBefore(event, *point) {
		return false
	}

	if point := filter.BeforePoint(); point != nil && !eventstore.IsStrictlyBefore(event, *point) {
		return false
	}

	if point := filter.AfterPoint(); point != nil && !eventstore.IsAfter(event, *point) {
		return false
	}

	return true
}

func (b *Backend) appendLocked(table string, events eventstore.StorableEvents) {
	for _, event := range events {
		if event.InsertionID == 0 {
			b.nextInsertionID++
			event.InsertionID = b.nextInsertionID
		}

		b.events[table] = append(b.events[table], event)
	}
}

func (b *Backend) allocateInsertionIDs(count int) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		b.nextInsertionID++
		ids = append(ids, b.nextInsertionID)
	}

	return ids
}

func (b *Backend) checkVersionLocked(table string, snapshot eventstore.AggregateSnapshot) error {
	stored, found := b.aggregates[table][snapshot.AggregateID]

	if snapshot.Version == 0 {
		if found {
			return eventstore.ErrVersionConflict
		}

		return nil
	}

	if !found || stored.Version != snapshot.Version {
		return eventstore.ErrVersionConflict
	}

	return nil
}

func (b *Backend) saveLocked(table string, snapshot eventstore.AggregateSnapshot) {
	if b.aggregates[table] == nil {
		b.aggregates[table] = make(map[string]eventstore.AggregateSnapshot)
	}

	snapshot.Version++
	b.aggregates[table][snapshot.AggregateID] = snapshot
}

type stagedAppend struct {
	table string
	event eventstore.StorableEvent
}

type stagedTombstone struct {
	table       string
	insertionID int64
}

type stagedSave struct {
	table    string
	snapshot eventstore.AggregateSnapshot
}

// Tx is a staged transaction on the shared backend. All writes are buffered until
// Commit, which validates every version precondition and then applies everything
// atomically under the backend lock.
type Tx struct {
	mu         sync.Mutex
	backend    *Backend
	closed     bool
	appends    []stagedAppend
	tombstones []stagedTombstone
	saves      []stagedSave
}

// Commit applies all staged writes atomically.
// Returns eventstore.ErrVersionConflict without applying anything if a staged
// aggregate persist lost against a concurrent writer.
func (t *Tx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransactionClosed
	}
	t.closed = true

	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	for _, save := range t.saves {
		if err := t.backend.checkVersionLocked(save.table, save.snapshot); err != nil {
			return err
		}
	}

	for _, staged := range t.appends {
		t.backend.appendLocked(staged.table, eventstore.StorableEvents{staged.event})
	}

	for _, staged := range t.tombstones {
		events := t.backend.events[staged.table]
		for i := range events {
			if events[i].InsertionID == staged.insertionID {
				events[i].Tombstoned = true
			}
		}
	}

	for _, save := range t.saves {
		t.backend.saveLocked(save.table, save.snapshot)
	}

	return nil
}

// Rollback discards all staged writes.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	t.appends = nil
	t.tombstones = nil
	t.saves = nil

	return nil
}
