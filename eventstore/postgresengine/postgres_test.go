package postgresengine_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore/memoryengine"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore/postgresengine"
	"github.com/cellarstreams/mutable-eventstore-go/example/shared/config"
	"github.com/cellarstreams/mutable-eventstore-go/testutil"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	insertion_id    BIGSERIAL PRIMARY KEY,
	event_type      TEXT        NOT NULL,
	aggregate_id    TEXT        NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL,
	sequence_number TEXT,
	payload         JSONB       NOT NULL,
	metadata        JSONB       NOT NULL,
	tombstoned      BOOLEAN     NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS aggregates (
	aggregate_id   TEXT   PRIMARY KEY,
	aggregate_type TEXT   NOT NULL,
	version        BIGINT NOT NULL,
	state          JSONB  NOT NULL
);`

// givenPostgresStore connects to the database named by POSTGRES_DSN and ensures
// the schema. The integration tests are skipped when the variable is unset.
func givenPostgresStore(t *testing.T) (*postgresengine.EventStore, *pgxpool.Pool) {
	t.Helper()

	if os.Getenv("POSTGRES_DSN") == "" {
		t.Skip("set POSTGRES_DSN to run the postgres integration tests")
	}

	cfg, err := config.LoadPostgres()
	require.NoError(t, err)

	pool, err := cfg.PGXPool(context.Background())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(), eventsSchema)
	require.NoError(t, err)

	es, err := postgresengine.NewEventStoreFromPGXPool(pool)
	require.NoError(t, err)

	return es, pool
}

func Test_Append_And_Query_Roundtrip_In_Total_Order(t *testing.T) {
	// setup
	ctx := context.Background()
	es, _ := givenPostgresStore(t)

	aggregateID := uuid.NewString()
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// arrange: appended out of order on purpose
	require.NoError(t, es.Append(ctx,
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(time.Minute), "01BBBB"),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(time.Minute), ""),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(time.Minute), "01AAAA"),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt, "01CCCC"),
	))

	// act
	events, err := es.Query(ctx, eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		Finalize())

	// assert
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "01CCCC", events[0].SequenceNumber, "earlier timestamp first")
	assert.Equal(t, "", events[1].SequenceNumber, "NULL sequence number sorts first within the timestamp")
	assert.Equal(t, "01AAAA", events[2].SequenceNumber)
	assert.Equal(t, "01BBBB", events[3].SequenceNumber)
	assert.Positive(t, events[0].InsertionID)
}

func Test_Point_Windows_Split_The_Stream_Exactly(t *testing.T) {
	// setup
	ctx := context.Background()
	es, _ := givenPostgresStore(t)

	aggregateID := uuid.NewString()
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	point := eventstore.Point{OccurredAt: occurredAt.Add(time.Minute), SequenceNumber: "01BBBB"}

	require.NoError(t, es.Append(ctx,
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt, "01AAAA"),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(time.Minute), ""),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(time.Minute), "01BBBB"),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(time.Minute), "01CCCC"),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(2*time.Minute), "01AAAA"),
	))

	// act
	prefix, err := es.Query(ctx, eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		AndOccurredAtOrBeforePoint(point).
		Finalize())
	require.NoError(t, err)

	suffix, err := es.Query(ctx, eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		AndOccurredAfterPoint(point).
		Finalize())
	require.NoError(t, err)

	strictPrefix, err := es.Query(ctx, eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		AndOccurredBeforePoint(point).
		Finalize())
	require.NoError(t, err)

	// assert: prefix and suffix partition the stream, the point's own event
	// belongs to the prefix but not to the strict prefix
	assert.Len(t, prefix, 3)
	assert.Len(t, suffix, 2)
	assert.Len(t, strictPrefix, 2)
}

func Test_TombstoneInTx_Hides_Events_From_Default_Queries(t *testing.T) {
	// setup
	ctx := context.Background()
	es, _ := givenPostgresStore(t)

	aggregateID := uuid.NewString()
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, es.Append(ctx,
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt, "01AAAA"),
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt.Add(time.Second), "01BBBB"),
	))

	stored, err := es.EventsForAction(ctx, "01AAAA")
	require.NoError(t, err)
	victims := make([]int64, 0, len(stored))
	for _, event := range stored {
		if event.AggregateID == aggregateID {
			victims = append(victims, event.InsertionID)
		}
	}
	require.NotEmpty(t, victims)

	// act
	tx, err := es.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, es.TombstoneInTx(ctx, tx, victims...))
	require.NoError(t, tx.Commit(ctx))

	// assert
	live, err := es.Query(ctx, eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		Finalize())
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "01BBBB", live[0].SequenceNumber)

	audit, err := es.Query(ctx, eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		IncludingTombstoned().
		Finalize())
	require.NoError(t, err)
	assert.Len(t, audit, 2)
}

func Test_SaveAggregateInTx_CAS_Semantics(t *testing.T) {
	// setup
	ctx := context.Background()
	es, _ := givenPostgresStore(t)

	aggregateID := uuid.NewString()

	fresh, err := eventstore.BuildAggregateSnapshot("wine_lot", aggregateID, 0, []byte(`{"volume":"0"}`))
	require.NoError(t, err)

	// act: the first persist inserts version 1
	tx, err := es.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, es.SaveAggregateInTx(ctx, tx, fresh))
	require.NoError(t, tx.Commit(ctx))

	stored, err := es.LoadAggregate(ctx, aggregateID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), stored.Version)

	// act: a second insert of the same aggregate conflicts
	tx, err = es.BeginTx(ctx)
	require.NoError(t, err)
	err = es.SaveAggregateInTx(ctx, tx, fresh)
	assert.ErrorIs(t, err, eventstore.ErrVersionConflict)
	require.NoError(t, tx.Rollback(ctx))

	// act: an update with the stored version wins, a stale one conflicts
	next, err := eventstore.BuildAggregateSnapshot("wine_lot", aggregateID, 1, []byte(`{"volume":"10"}`))
	require.NoError(t, err)

	tx, err = es.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, es.SaveAggregateInTx(ctx, tx, next))
	require.NoError(t, tx.Commit(ctx))

	tx, err = es.BeginTx(ctx)
	require.NoError(t, err)
	err = es.SaveAggregateInTx(ctx, tx, next)
	assert.ErrorIs(t, err, eventstore.ErrVersionConflict)
	require.NoError(t, tx.Rollback(ctx))

	// assert
	require.NoError(t, es.ConfirmVersion(ctx, aggregateID, 2))
	assert.ErrorIs(t, es.ConfirmVersion(ctx, aggregateID, 1), eventstore.ErrVersionConflict)
}

func Test_Rollback_Discards_Appends(t *testing.T) {
	// setup
	ctx := context.Background()
	es, _ := givenPostgresStore(t)

	aggregateID := uuid.NewString()

	// act
	tx, err := es.BeginTx(ctx)
	require.NoError(t, err)
	insertionIDs, appendErr := es.AppendInTx(ctx, tx,
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, time.Now().UTC(), ""))
	require.NoError(t, appendErr)
	assert.Len(t, insertionIDs, 1)
	require.NoError(t, tx.Rollback(ctx))

	// assert
	events, err := es.Query(ctx, eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		Finalize())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func Test_Constructors_Reject_Nil_Connections(t *testing.T) {
	// act
	_, pgxErr := postgresengine.NewEventStoreFromPGXPool(nil)
	_, sqlErr := postgresengine.NewEventStoreFromSQLDB(nil)
	_, sqlxErr := postgresengine.NewEventStoreFromSQLX(nil)

	// assert
	assert.ErrorIs(t, pgxErr, postgresengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, postgresengine.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, postgresengine.ErrNilDatabaseConnection)
}

func Test_Foreign_Transactions_Are_Rejected(t *testing.T) {
	// setup
	ctx := context.Background()
	es, _ := givenPostgresStore(t)

	memStore, err := memoryengine.NewEventStore(memoryengine.NewBackend())
	require.NoError(t, err)

	foreign, err := memStore.BeginTx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = foreign.Rollback(ctx) })

	// act
	_, appendErr := es.AppendInTx(ctx, foreign,
		testutil.FixtureStorableEvent(t, "SomethingHappened", uuid.NewString(), time.Now().UTC(), ""))

	// assert
	assert.ErrorIs(t, appendErr, postgresengine.ErrWrongTransactionType)
}

func Test_Stores_From_All_Database_Adapters_Read_The_Same_Events(t *testing.T) {
	// setup
	ctx := context.Background()
	pgxStore, _ := givenPostgresStore(t)

	cfg, err := config.LoadPostgres()
	require.NoError(t, err)

	sqlDB, err := cfg.SQLDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	sqlxDB, err := cfg.SQLX()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlxDB.Close() })

	sqlStore, err := postgresengine.NewEventStoreFromSQLDB(sqlDB)
	require.NoError(t, err)

	sqlxStore, err := postgresengine.NewEventStoreFromSQLX(sqlxDB)
	require.NoError(t, err)

	aggregateID := uuid.NewString()
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// arrange
	require.NoError(t, pgxStore.Append(ctx,
		testutil.FixtureStorableEvent(t, "SomethingHappened", aggregateID, occurredAt, "01AAAA")))

	filter := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(aggregateID).
		Finalize()

	// act + assert
	for _, es := range []interface {
		Query(context.Context, eventstore.Filter) (eventstore.StorableEvents, error)
	}{pgxStore, sqlStore, sqlxStore} {
		events, queryErr := es.Query(ctx, filter)
		require.NoError(t, queryErr)
		require.Len(t, events, 1)
		assert.Equal(t, "01AAAA", events[0].SequenceNumber)
	}
}
