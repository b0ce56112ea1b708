package uow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/testutil"
	"github.com/cellarstreams/mutable-eventstore-go/uow"
)

type recordingSink struct {
	published eventstore.StorableEvents
	failWith  error
}

func (s *recordingSink) Publish(_ context.Context, event eventstore.StorableEvent) error {
	s.published = append(s.published, event)
	return s.failWith
}

type fakePersistable struct {
	store       eventstore.Store
	snapshot    eventstore.AggregateSnapshot
	snapshotErr error
}

func (p *fakePersistable) Snapshot() (eventstore.AggregateSnapshot, error) {
	return p.snapshot, p.snapshotErr
}

func (p *fakePersistable) Store() eventstore.Store {
	return p.store
}

func Test_FromContext_Returns_Error_Outside_A_Scope(t *testing.T) {
	// act
	_, err := uow.FromContext(context.Background())

	// assert
	assert.ErrorIs(t, err, uow.ErrNoActiveUnitOfWork)
}

func Test_Execute_Rejects_Nested_Scopes(t *testing.T) {
	// setup
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)

	// act
	err := manager.Execute(context.Background(), func(ctx context.Context) error {
		return manager.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	})

	// assert
	assert.ErrorIs(t, err, uow.ErrUnitOfWorkAlreadyActive)
}

func Test_Execute_Commits_Buffered_Events_On_Success(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.Record(es, testutil.FixtureStorableEvent(t, "TypeA", "agg-1", occurredAt, ""))
		scope.Record(es, testutil.FixtureStorableEvent(t, "TypeB", "agg-1", occurredAt.Add(time.Second), ""))

		return nil
	})

	// assert
	require.NoError(t, err)

	events, err := es.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func Test_Execute_Discards_Everything_When_Fn_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)
	expectedErr := errors.New("volume may not go negative")

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.Record(es, testutil.FixtureStorableEvent(t, "TypeA", "agg-1", time.Now().UTC(), ""))

		return expectedErr
	})

	// assert
	assert.ErrorIs(t, err, expectedErr)

	events, queryErr := es.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, queryErr)
	assert.Empty(t, events, "nothing buffered in a failed scope may reach the store")
}

func Test_Execute_With_Empty_Scope_Is_A_NoOp(t *testing.T) {
	// setup
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)

	// act
	err := manager.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	// assert
	assert.NoError(t, err)
}

func Test_Execute_Persists_Tracked_Aggregates_And_Tombstones(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, es.Append(ctx,
		testutil.FixtureStorableEvent(t, "TypeA", "agg-1", occurredAt, "01AAAA")))

	snapshot, err := eventstore.BuildAggregateSnapshot("wine_lot", "agg-1", 0, []byte(`{"volume":"10"}`))
	require.NoError(t, err)

	persistable := &fakePersistable{store: es, snapshot: snapshot}

	// act
	err = manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.MarkTombstoned(es, 1)
		scope.Track(persistable)
		scope.Track(persistable) // tracking twice persists once

		return nil
	})

	// assert
	require.NoError(t, err)

	live, err := es.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, err)
	assert.Empty(t, live, "the tombstoned event is hidden")

	stored, err := es.LoadAggregate(ctx, "agg-1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), stored.Version)
}

func Test_Execute_Dispatches_Committed_Events_To_The_Sink_In_Recording_Order(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	sink := &recordingSink{}
	manager := uow.NewManager(es, uow.WithSink(sink))
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.Record(es, testutil.FixtureStorableEvent(t, "First", "agg-1", occurredAt, ""))
		scope.Record(es, testutil.FixtureStorableEvent(t, "Second", "agg-1", occurredAt.Add(time.Second), ""))

		return nil
	})

	// assert
	require.NoError(t, err)
	require.Len(t, sink.published, 2)
	assert.Equal(t, "First", sink.published[0].EventType)
	assert.Equal(t, "Second", sink.published[1].EventType)
}

func Test_Execute_Dispatches_Events_With_Their_Assigned_Insertion_IDs(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	sink := &recordingSink{}
	manager := uow.NewManager(es, uow.WithSink(sink))
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.Record(es, testutil.FixtureStorableEvent(t, "First", "agg-1", occurredAt, ""))
		scope.Record(es, testutil.FixtureStorableEvent(t, "Second", "agg-1", occurredAt.Add(time.Second), ""))

		return nil
	})

	// assert: published events carry the stored identity, not the zero value
	require.NoError(t, err)
	require.Len(t, sink.published, 2)
	assert.Equal(t, int64(1), sink.published[0].InsertionID)
	assert.Equal(t, int64(2), sink.published[1].InsertionID)
}

func Test_Execute_Does_Not_Dispatch_When_The_Scope_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	sink := &recordingSink{}
	manager := uow.NewManager(es, uow.WithSink(sink))

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.Record(es, testutil.FixtureStorableEvent(t, "TypeA", "agg-1", time.Now().UTC(), ""))

		return errors.New("boom")
	})

	// assert
	require.Error(t, err)
	assert.Empty(t, sink.published)
}

func Test_Execute_Returns_Success_Even_When_The_Sink_Fails(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	sink := &recordingSink{failWith: errors.New("broker unavailable")}
	manager := uow.NewManager(es, uow.WithSink(sink))

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.Record(es, testutil.FixtureStorableEvent(t, "TypeA", "agg-1", time.Now().UTC(), ""))

		return nil
	})

	// assert: the commit already happened, notification is best-effort
	require.NoError(t, err)

	events, queryErr := es.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, queryErr)
	assert.Len(t, events, 1)
}

func Test_Execute_Returns_VersionConflict_When_A_Tracked_Persist_Loses(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)

	snapshot, err := eventstore.BuildAggregateSnapshot("wine_lot", "agg-1", 0, []byte(`{"volume":"0"}`))
	require.NoError(t, err)

	// arrange: the aggregate is persisted concurrently before our scope commits
	tx, err := es.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, es.SaveAggregateInTx(ctx, tx, snapshot))
	require.NoError(t, tx.Commit(ctx))

	// act
	err = manager.Execute(ctx, func(ctx context.Context) error {
		scope, scopeErr := uow.FromContext(ctx)
		require.NoError(t, scopeErr)

		scope.Track(&fakePersistable{store: es, snapshot: snapshot})

		return nil
	})

	// assert
	assert.ErrorIs(t, err, eventstore.ErrVersionConflict)
}
