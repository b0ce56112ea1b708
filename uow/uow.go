// Package uow provides the unit of work: an explicit, context-carried scope that
// buffers event appends, tombstones, and aggregate persists, commits them in one
// storage transaction, and dispatches the committed events to a notification sink.
package uow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/notify"
)

// ErrNoActiveUnitOfWork is returned when a write is attempted outside an Execute scope.
var ErrNoActiveUnitOfWork = errors.New("no active unit of work in context")

// ErrUnitOfWorkAlreadyActive is returned when Execute is called within an already
// active scope. Scopes never nest; compose work inside one scope instead.
var ErrUnitOfWorkAlreadyActive = errors.New("unit of work is already active in context")

const (
	logMsgCommitted         = "unit of work committed"
	logMsgDiscarded         = "unit of work discarded"
	logMsgSinkPublishFailed = "post-commit notification failed"

	logAttrError          = "error"
	logAttrEventCount     = "event_count"
	logAttrTombstoneCount = "tombstone_count"
	logAttrAggregateCount = "aggregate_count"
	logAttrDurationMS     = "duration_ms"
	logAttrEventType      = "event_type"
)

type contextKey struct{}

// Persistable is the part of an aggregate the unit of work needs to persist it:
// a snapshot of its current state and the store responsible for it.
type Persistable interface {
	Snapshot() (eventstore.AggregateSnapshot, error)
	Store() eventstore.Store
}

type recordedEvent struct {
	store eventstore.Store
	event eventstore.StorableEvent
}

type recordedTombstone struct {
	store       eventstore.Store
	insertionID int64
}

// UnitOfWork buffers all writes of one scope. It is created by Manager.Execute and
// obtained inside the scope with FromContext. Safe for concurrent use, though a scope
// normally belongs to a single goroutine.
type UnitOfWork struct {
	mu         sync.Mutex
	events     []recordedEvent
	tombstones []recordedTombstone
	aggregates []Persistable
}

// Record buffers an event for append to the given store on commit.
func (u *UnitOfWork) Record(store eventstore.Store, event eventstore.StorableEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.events = append(u.events, recordedEvent{store: store, event: event})
}

// MarkTombstoned buffers tombstoning of an already persisted event on commit.
func (u *UnitOfWork) MarkTombstoned(store eventstore.Store, insertionID int64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.tombstones = append(u.tombstones, recordedTombstone{store: store, insertionID: insertionID})
}

// Track registers an aggregate for persistence on commit. Tracking the same aggregate
// multiple times persists it once; first-seen order is kept.
func (u *UnitOfWork) Track(aggregate Persistable) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, tracked := range u.aggregates {
		if tracked == aggregate {
			return
		}
	}

	u.aggregates = append(u.aggregates, aggregate)
}

// Events returns a copy of the buffered events in recording order.
func (u *UnitOfWork) Events() eventstore.StorableEvents {
	u.mu.Lock()
	defer u.mu.Unlock()

	events := make(eventstore.StorableEvents, 0, len(u.events))
	for _, recorded := range u.events {
		events = append(events, recorded.event)
	}

	return events
}

func (u *UnitOfWork) empty() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	return len(u.events) == 0 && len(u.tombstones) == 0 && len(u.aggregates) == 0
}

// FromContext returns the active unit of work carried by the context.
// Returns ErrNoActiveUnitOfWork when called outside an Execute scope.
func FromContext(ctx context.Context) (*UnitOfWork, error) {
	scope, ok := ctx.Value(contextKey{}).(*UnitOfWork)
	if !ok {
		return nil, ErrNoActiveUnitOfWork
	}

	return scope, nil
}

// Manager opens unit-of-work scopes and commits them on one storage transaction.
type Manager struct {
	db               eventstore.TransactionStarter
	sink             notify.Sink
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
}

// Option defines a functional option for configuring a Manager.
type Option func(*Manager)

// WithSink sets the notification sink receiving committed events.
func WithSink(sink notify.Sink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithLogger sets the logger for the Manager.
func WithLogger(logger eventstore.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithContextualLogger sets a context-aware logger for the Manager.
// When configured it takes precedence over the plain logger.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(m *Manager) {
		m.contextualLogger = logger
	}
}

// NewManager creates a Manager committing on transactions of the given starter.
// All stores written inside one scope must share the starter's underlying database.
func NewManager(db eventstore.TransactionStarter, options ...Option) *Manager {
	m := &Manager{db: db}

	for _, option := range options {
		option(m)
	}

	return m
}

// Execute runs fn inside a fresh unit-of-work scope carried by the context.
//
// When fn succeeds, all buffered writes are committed in one transaction in this
// order: event appends, tombstones, aggregate persists. After a successful commit the
// recorded events are dispatched to the sink in recording order; sink errors are
// logged, never returned. When fn or the commit fails, everything buffered is
// discarded and the error is returned unchanged.
//
// Returns ErrUnitOfWorkAlreadyActive when the context already carries a scope.
func (m *Manager) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, err := FromContext(ctx); err == nil {
		return ErrUnitOfWorkAlreadyActive
	}

	scope := &UnitOfWork{}
	scopedCtx := context.WithValue(ctx, contextKey{}, scope)

	if err := fn(scopedCtx); err != nil {
		m.logDebugContext(ctx, logMsgDiscarded, logAttrError, err.Error())
		return err
	}

	if scope.empty() {
		return nil
	}

	start := time.Now()

	if err := m.commit(ctx, scope); err != nil {
		m.logDebugContext(ctx, logMsgDiscarded, logAttrError, err.Error())
		return err
	}

	m.logInfoContext(ctx, logMsgCommitted,
		logAttrEventCount, len(scope.events),
		logAttrTombstoneCount, len(scope.tombstones),
		logAttrAggregateCount, len(scope.aggregates),
		logAttrDurationMS, float64(time.Since(start).Nanoseconds())/1e6)

	m.dispatch(ctx, scope)

	return nil
}

func (m *Manager) commit(ctx context.Context, scope *UnitOfWork) error {
	scope.mu.Lock()
	defer scope.mu.Unlock()

	tx, beginErr := m.db.BeginTx(ctx)
	if beginErr != nil {
		return beginErr
	}

	if err := m.flushEvents(ctx, tx, scope); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := m.flushTombstones(ctx, tx, scope); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := m.flushAggregates(ctx, tx, scope); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		_ = tx.Rollback(ctx)
		return errors.Join(eventstore.ErrCommittingTransactionFailed, commitErr)
	}

	return nil
}

// flushEvents appends buffered events grouped per store, keeping the recording order
// within each store, and writes the assigned insertion IDs back into the buffered
// events so the sink dispatch publishes them with their final identity.
func (m *Manager) flushEvents(ctx context.Context, tx eventstore.Transaction, scope *UnitOfWork) error {
	perStore := make(map[eventstore.Store][]int)
	storeOrder := make([]eventstore.Store, 0)

	for i, recorded := range scope.events {
		if _, seen := perStore[recorded.store]; !seen {
			storeOrder = append(storeOrder, recorded.store)
		}

		perStore[recorded.store] = append(perStore[recorded.store], i)
	}

	for _, store := range storeOrder {
		indexes := perStore[store]

		events := make(eventstore.StorableEvents, 0, len(indexes))
		for _, i := range indexes {
			events = append(events, scope.events[i].event)
		}

		insertionIDs, err := store.AppendInTx(ctx, tx, events...)
		if err != nil {
			return err
		}

		for j, i := range indexes {
			scope.events[i].event.InsertionID = insertionIDs[j]
		}
	}

	return nil
}

func (m *Manager) flushTombstones(ctx context.Context, tx eventstore.Transaction, scope *UnitOfWork) error {
	perStore := make(map[eventstore.Store][]int64)
	storeOrder := make([]eventstore.Store, 0)

	for _, recorded := range scope.tombstones {
		if _, seen := perStore[recorded.store]; !seen {
			storeOrder = append(storeOrder, recorded.store)
		}

		perStore[recorded.store] = append(perStore[recorded.store], recorded.insertionID)
	}

	for _, store := range storeOrder {
		if err := store.TombstoneInTx(ctx, tx, perStore[store]...); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) flushAggregates(ctx context.Context, tx eventstore.Transaction, scope *UnitOfWork) error {
	for _, aggregate := range scope.aggregates {
		snapshot, snapshotErr := aggregate.Snapshot()
		if snapshotErr != nil {
			return snapshotErr
		}

		if err := aggregate.Store().SaveAggregateInTx(ctx, tx, snapshot); err != nil {
			return err
		}
	}

	return nil
}

// dispatch publishes the committed events to the sink, best-effort.
func (m *Manager) dispatch(ctx context.Context, scope *UnitOfWork) {
	if m.sink == nil {
		return
	}

	for _, recorded := range scope.events {
		if err := m.sink.Publish(ctx, recorded.event); err != nil {
			m.logErrorContext(ctx, logMsgSinkPublishFailed,
				logAttrError, err.Error(),
				logAttrEventType, recorded.event.EventType)
		}
	}
}

func (m *Manager) logDebugContext(ctx context.Context, msg string, args ...any) {
	switch {
	case m.contextualLogger != nil:
		m.contextualLogger.DebugContext(ctx, msg, args...)
	case m.logger != nil:
		m.logger.Debug(msg, args...)
	}
}

func (m *Manager) logInfoContext(ctx context.Context, msg string, args ...any) {
	switch {
	case m.contextualLogger != nil:
		m.contextualLogger.InfoContext(ctx, msg, args...)
	case m.logger != nil:
		m.logger.Info(msg, args...)
	}
}

func (m *Manager) logErrorContext(ctx context.Context, msg string, args ...any) {
	switch {
	case m.contextualLogger != nil:
		m.contextualLogger.ErrorContext(ctx, msg, args...)
	case m.logger != nil:
		m.logger.Error(msg, args...)
	}
}
