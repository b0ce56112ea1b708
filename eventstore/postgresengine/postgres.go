package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventTableName     = "events"
	defaultAggregateTableName = "aggregates"

	logMsgBuildSelectQueryFailed   = "failed to build select query"
	logMsgBuildInsertQueryFailed   = "failed to build insert query"
	logMsgBuildUpdateQueryFailed   = "failed to build update query"
	logMsgDBQueryFailed            = "database query execution failed"
	logMsgDBExecFailed             = "database execution failed"
	logMsgCloseRowsFailed          = "failed to close database rows"
	logMsgScanRowFailed            = "failed to scan database row"
	logMsgBuildStorableEventFailed = "failed to build storable event from database row"
	logMsgRowsAffectedFailed       = "failed to get rows affected count"
	logMsgQueryCompleted           = "query completed"
	logMsgEventsAppended           = "events appended"
	logMsgEventsTombstoned         = "events tombstoned"
	logMsgAggregateSaved           = "aggregate saved"
	logMsgVersionConflict          = "version conflict detected"
	logMsgSQLExecuted              = "executed sql for: "
	logMsgOperation                = "eventstore operation: "

	logAttrError          = "error"
	logAttrQuery          = "query"
	logAttrEventType      = "event_type"
	logAttrEventCount     = "event_count"
	logAttrDurationMS     = "duration_ms"
	logAttrAggregateID    = "aggregate_id"
	logAttrVersion        = "version"
	logAttrSequenceNumber = "sequence_number"
	logAttrRowsAffected   = "rows_affected"

	logActionQuery         = "query"
	logActionAppend        = "append"
	logActionTombstone     = "tombstone"
	logActionSaveAggregate = "save_aggregate"
	logActionLoadAggregate = "load_aggregate"

	colInsertionID    = "insertion_id"
	colEventType      = "event_type"
	colAggregateID    = "aggregate_id"
	colOccurredAt     = "occurred_at"
	colSequenceNumber = "sequence_number"
	colPayload        = "payload"
	colMetadata       = "metadata"
	colTombstoned     = "tombstoned"

	colAggregateType = "aggregate_type"
	colVersion       = "version"
	colState         = "state"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
)

type sqlQueryString = string

// ErrWrongTransactionType is returned when a transaction handle from another
// engine is passed to one of the ...InTx methods.
var ErrWrongTransactionType = errors.New("transaction was not started by this engine")

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")

var errAppendReturnedWrongRowCount = errors.New("append returned a different number of insertion ids than events")

// EventStore is a Postgres-backed store for one event table plus the shared aggregate
// state table. It leverages a database adapter and supports customizable logging,
// metrics, and table configuration.
type EventStore struct {
	db                 adapters.DBAdapter
	eventTableName     string
	aggregateTableName string
	logger             eventstore.Logger
	contextualLogger   eventstore.ContextualLogger
	metricsCollector   eventstore.MetricsCollector
}

// Tx wraps an open database transaction so that event appends, tombstones, and
// aggregate persists of one unit of work commit or roll back together.
type Tx struct {
	db adapters.DBTx
}

// Commit commits the wrapped transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.db.Commit(ctx)
}

// Rollback rolls the wrapped transaction back.
func (t *Tx) Rollback(ctx context.Context) error {
	return t.db.Rollback(ctx)
}

// executor is the subset of adapter operations shared by pools and open transactions.
type executor interface {
	Query(ctx context.Context, query string) (adapters.DBRows, error)
	Exec(ctx context.Context, query string) (adapters.DBResult, error)
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:                 db,
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

// BeginTx starts a storage transaction spanning event appends, tombstones, and
// aggregate persists.
func (es *EventStore) BeginTx(ctx context.Context) (eventstore.Transaction, error) {
	tx, err := es.db.BeginTx(ctx)
	if err != nil {
		return nil, errors.Join(eventstore.ErrBeginningTransactionFailed, err)
	}

	return &Tx{db: tx}, nil
}

// Query retrieves events matching the provided eventstore.Filter criteria, sorted in
// total order: occurred_at ASC, sequence_number ASC NULLS FIRST, insertion_id ASC.
func (es *EventStore) Query(ctx context.Context, filter eventstore.Filter) (eventstore.StorableEvents, error) {
	var empty eventstore.StorableEvents

	sqlQuery, buildQueryErr := es.buildSelectQuery(filter)
	if buildQueryErr != nil {
		es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, logAttrError, buildQueryErr.Error())
		return empty, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionQuery, duration)
	es.recordDuration(metricQueryDuration, logActionQuery, duration)

	if queryErr != nil {
		es.logErrorContext(ctx, logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return empty, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	eventStream, scanErr := es.processQueryResults(ctx, rows)
	if scanErr != nil {
		return empty, scanErr
	}

	es.logOperation(ctx, logMsgQueryCompleted,
		logAttrEventCount, len(eventStream),
		logAttrDurationMS, durationToMilliseconds(duration))

	return eventStream, nil
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

// Append appends the given events in a single insert statement outside any unit of work.
func (es *EventStore) Append(ctx context.Context, events ...eventstore.StorableEvent) error {
	_, err := es.append(ctx, es.db, events)

	return err
}

// AppendInTx appends the given events within the supplied transaction and returns
// the insertion IDs the database assigned, in event order.
func (es *EventStore) AppendInTx(ctx context.Context, tx eventstore.Transaction, events ...eventstore.StorableEvent) ([]int64, error) {
	dbTx, err := es.ownTx(tx)
	if err != nil {
		return nil, err
	}

	return es.append(ctx, dbTx, events)
}

func (es *EventStore) append(ctx context.Context, exec executor, events eventstore.StorableEvents) ([]int64, error) {
	if len(events) == 0 {
		return nil, nil
	}

	sqlQuery, buildQueryErr := es.buildInsertQuery(events)
	if buildQueryErr != nil {
		es.logErrorContext(ctx, logMsgBuildInsertQueryFailed, logAttrError, buildQueryErr.Error(), logAttrEventCount, len(events))
		return nil, buildQueryErr
	}

	start := time.Now()
	rows, queryErr := exec.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, duration)
	es.recordDuration(metricAppendDuration, logActionAppend, duration)

	if queryErr != nil {
		es.logErrorContext(ctx, logMsgDBExecFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(eventstore.ErrAppendingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	insertionIDs := make([]int64, 0, len(events))

	for rows.Next() {
		var insertionID int64
		if scanErr := rows.Scan(&insertionID); scanErr != nil {
			es.logErrorContext(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
			return nil, errors.Join(eventstore.ErrAppendingEventsFailed, scanErr)
		}

		insertionIDs = append(insertionIDs, insertionID)
	}

	if len(insertionIDs) != len(events) {
		es.logErrorContext(ctx, logMsgDBExecFailed, logAttrError, errAppendReturnedWrongRowCount.Error(), logAttrQuery, sqlQuery)
		return nil, errors.Join(eventstore.ErrAppendingEventsFailed, errAppendReturnedWrongRowCount)
	}

	es.logOperation(ctx, logMsgEventsAppended,
		logAttrEventCount, len(events),
		logAttrDurationMS, durationToMilliseconds(duration))

	return insertionIDs, nil
}

// TombstoneInTx marks the events with the given insertion IDs as tombstoned within the
// supplied transaction. Tombstoned events stay stored for audit but disappear from
// default queries and replays.
func (es *EventStore) TombstoneInTx(ctx context.Context, tx eventstore.Transaction, insertionIDs ...int64) error {
	if len(insertionIDs) == 0 {
		return nil
	}

	dbTx, err := es.ownTx(tx)
	if err != nil {
		return err
	}

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(es.eventTableName).
		Set(goqu.Record{colTombstoned: true}).
		Where(goqu.C(colInsertionID).In(insertionIDs))

	sqlQuery, _, toSQLErr := updateStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorContext(ctx, logMsgBuildUpdateQueryFailed, logAttrError, toSQLErr.Error())
		return errors.Join(eventstore.ErrTombstoningEventsFailed, toSQLErr)
	}

	start := time.Now()
	result, execErr := dbTx.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionTombstone, duration)
	es.recordDuration(metricTombstoneDuration, logActionTombstone, duration)

	if execErr != nil {
		es.logErrorContext(ctx, logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return errors.Join(eventstore.ErrTombstoningEventsFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		es.logErrorContext(ctx, logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())
		return errors.Join(eventstore.ErrTombstoningEventsFailed, rowsAffectedErr)
	}

	es.logOperation(ctx, logMsgEventsTombstoned,
		logAttrEventCount, rowsAffected,
		logAttrDurationMS, durationToMilliseconds(duration))

	return nil
}

// LoadAggregate returns the stored state row of the aggregate with the given ID.
// Returns eventstore.ErrAggregateNotFound if the aggregate has never been persisted.
func (es *EventStore) LoadAggregate(ctx context.Context, aggregateID string) (eventstore.AggregateSnapshot, error) {
	var empty eventstore.AggregateSnapshot

	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.aggregateTableName).
		Select(colAggregateType, colAggregateID, colVersion, colState).
		Where(goqu.C(colAggregateID).Eq(aggregateID))

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		es.logErrorContext(ctx, logMsgBuildSelectQueryFailed, logAttrError, toSQLErr.Error())
		return empty, errors.Join(eventstore.ErrLoadingAggregateFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionLoadAggregate, duration)
	es.recordDuration(metricAggregateDuration, logActionLoadAggregate, duration)

	if queryErr != nil {
		es.logErrorContext(ctx, logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return empty, errors.Join(eventstore.ErrLoadingAggregateFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	if !rows.Next() {
		return empty, eventstore.ErrAggregateNotFound
	}

	var snapshot eventstore.AggregateSnapshot
	if scanErr := rows.Scan(&snapshot.AggregateType, &snapshot.AggregateID, &snapshot.Version, &snapshot.StateJSON); scanErr != nil {
		es.logErrorContext(ctx, logMsgScanRowFailed, logAttrError, scanErr.Error())
		return empty, errors.Join(eventstore.ErrRowScanFailed, scanErr)
	}

	return snapshot, nil
}

// SaveAggregateInTx persists the snapshot within the supplied transaction.
// A snapshot with Version zero is inserted as version one; any other version N is a
// compare-and-swap update against the stored version N which bumps it to N+1.
// Returns eventstore.ErrVersionConflict when the stored row does not match.
func (es *EventStore) SaveAggregateInTx(ctx context.Context, tx eventstore.Transaction, snapshot eventstore.AggregateSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	dbTx, err := es.ownTx(tx)
	if err != nil {
		return err
	}

	sqlQuery, buildQueryErr := es.buildSaveAggregateQuery(snapshot)
	if buildQueryErr != nil {
		return buildQueryErr
	}

	start := time.Now()
	result, execErr := dbTx.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionSaveAggregate, duration)
	es.recordDuration(metricAggregateDuration, logActionSaveAggregate, duration)

	if execErr != nil {
		es.logErrorContext(ctx, logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		return errors.Join(eventstore.ErrSavingAggregateFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		es.logErrorContext(ctx, logMsgRowsAffectedFailed, logAttrError, rowsAffectedErr.Error())
		return errors.Join(eventstore.ErrSavingAggregateFailed, rowsAffectedErr)
	}

	if rowsAffected == 0 {
		es.logOperation(ctx, logMsgVersionConflict,
			logAttrAggregateID, snapshot.AggregateID,
			logAttrVersion, snapshot.Version,
			logAttrRowsAffected, rowsAffected)
		es.incrementCounter(metricVersionConflicts, logActionSaveAggregate)

		return eventstore.ErrVersionConflict
	}

	es.logOperation(ctx, logMsgAggregateSaved,
		logAttrAggregateID, snapshot.AggregateID,
		logAttrVersion, snapshot.Version+1,
		logAttrDurationMS, durationToMilliseconds(duration))

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
		es.incrementCounter(metricVersionConflicts, logActionLoadAggregate)
		return eventstore.ErrVersionConflict
	}

	return nil
}

func (es *EventStore) ownTx(tx eventstore.Transaction) (adapters.DBTx, error) {
	ownTx, ok := tx.(*Tx)
	if !ok || ownTx == nil {
		return nil, ErrWrongTransactionType
	}

	return ownTx.db, nil
}

func (es *EventStore) buildSelectQuery(filter eventstore.Filter) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(colInsertionID, colEventType, colAggregateID, colOccurredAt, colSequenceNumber, colPayload, colMetadata, colTombstoned).
		Order(
			goqu.I(colOccurredAt).Asc(),
			goqu.I(colSequenceNumber).Asc().NullsFirst(),
			goqu.I(colInsertionID).Asc(),
		)

	selectStmt = addWhereClause(filter, selectStmt)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrQueryingEventsFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildInsertQuery(events eventstore.StorableEvents) (sqlQueryString, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.eventTableName).
		Cols(colEventType, colAggregateID, colOccurredAt, colSequenceNumber, colPayload, colMetadata, colTombstoned)

	for _, event := range events {
		var sequenceNumber any
		if event.SequenceNumber != "" {
			sequenceNumber = event.SequenceNumber
		}

		insertStmt = insertStmt.Vals(goqu.Vals{
			event.EventType,
			event.AggregateID,
			event.OccurredAt,
			sequenceNumber,
			goqu.L(castJsonb, string(event.PayloadJSON)),
			goqu.L(castJsonb, string(event.MetadataJSON)),
			event.Tombstoned,
		})
	}

	sqlQuery, _, toSQLErr := insertStmt.Returning(goqu.C(colInsertionID)).ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrAppendingEventsFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildSaveAggregateQuery(snapshot eventstore.AggregateSnapshot) (sqlQueryString, error) {
	builder := goqu.Dialect(dialectPostgres)

	var stmt interface{ ToSQL() (string, []any, error) }

	if snapshot.Version == 0 {
		// First persist: the row must not exist yet. A concurrent first writer makes
		// the insert affect zero rows, which surfaces as a version conflict.
		stmt = builder.
			Insert(es.aggregateTableName).
			Cols(colAggregateType, colAggregateID, colVersion, colState).
			Vals(goqu.Vals{
				snapshot.AggregateType,
				snapshot.AggregateID,
				1,
				goqu.L(castJsonb, string(snapshot.StateJSON)),
			}).
			OnConflict(goqu.DoNothing())
	} else {
		stmt = builder.
			Update(es.aggregateTableName).
			Set(goqu.Record{
				colVersion: snapshot.Version + 1,
				colState:   goqu.L(castJsonb, string(snapshot.StateJSON)),
			}).
			Where(goqu.And(
				goqu.C(colAggregateID).Eq(snapshot.AggregateID),
				goqu.C(colVersion).Eq(snapshot.Version),
			))
	}

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrSavingAggregateFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func addWhereClause(filter eventstore.Filter, selectStmt *goqu.SelectDataset) *goqu.SelectDataset {
	expressions := make([]goqu.Expression, 0)

	if ids := filter.AggregateIDs(); len(ids) > 0 {
		expressions = append(expressions, goqu.C(colAggregateID).In(ids))
	}

	if types := filter.EventTypes(); len(types) > 0 {
		expressions = append(expressions, goqu.C(colEventType).In(types))
	}

	if sequenceNumbers := filter.SequenceNumbers(); len(sequenceNumbers) > 0 {
		expressions = append(expressions, goqu.C(colSequenceNumber).In(sequenceNumbers))
	}

	if until := filter.OccurredUntil(); !until.IsZero() {
		expressions = append(expressions, goqu.C(colOccurredAt).Lte(until))
	}

	if point := filter.AtOrBeforePoint(); point != nil {
		expressions = append(expressions, atOrBeforePointExpression(*point))
	}

	if point := filter.BeforePoint(); point != nil {
		expressions = append(expressions, beforePointExpression(*point))
	}

	if point := filter.AfterPoint(); point != nil {
		expressions = append(expressions, afterPointExpression(*point))
	}

	if !filter.IncludeTombstoned() {
		expressions = append(expressions, goqu.C(colTombstoned).IsFalse())
	}

	if len(expressions) > 0 {
		selectStmt = selectStmt.Where(goqu.And(expressions...))
	}

	return selectStmt
}

// atOrBeforePointExpression matches the rewind prefix of a point: everything earlier
// in time, and at the exact timestamp the NULL-sequence events plus the sequenced
// events up to and including the point's own sequence number.
func atOrBeforePointExpression(point eventstore.Point) goqu.Expression {
	atTimestamp := goqu.C(colOccurredAt).Eq(point.OccurredAt)

	if point.SequenceNumber == "" {
		return goqu.Or(
			goqu.C(colOccurredAt).Lt(point.OccurredAt),
			goqu.And(atTimestamp, goqu.C(colSequenceNumber).IsNull()),
		)
	}

	return goqu.Or(
		goqu.C(colOccurredAt).Lt(point.OccurredAt),
		goqu.And(
			atTimestamp,
			goqu.Or(
				goqu.C(colSequenceNumber).IsNull(),
				goqu.C(colSequenceNumber).Lte(point.SequenceNumber),
			),
		),
	)
}

func beforePointExpression(point eventstore.Point) goqu.Expression {
	if point.SequenceNumber == "" {
		return goqu.C(colOccurredAt).Lt(point.OccurredAt)
	}

	return goqu.Or(
		goqu.C(colOccurredAt).Lt(point.OccurredAt),
		goqu.And(
			goqu.C(colOccurredAt).Eq(point.OccurredAt),
			goqu.Or(
				goqu.C(colSequenceNumber).IsNull(),
				goqu.C(colSequenceNumber).Lt(point.SequenceNumber),
			),
		),
	)
}

// afterPointExpression matches the downstream suffix of a point: the exact complement
// of atOrBeforePointExpression with the same point.
func afterPointExpression(point eventstore.Point) goqu.Expression {
	atTimestamp := goqu.C(colOccurredAt).Eq(point.OccurredAt)

	if point.SequenceNumber == "" {
		return goqu.Or(
			goqu.C(colOccurredAt).Gt(point.OccurredAt),
			goqu.And(atTimestamp, goqu.C(colSequenceNumber).IsNotNull()),
		)
	}

	return goqu.Or(
		goqu.C(colOccurredAt).Gt(point.OccurredAt),
		goqu.And(
			atTimestamp,
			goqu.C(colSequenceNumber).IsNotNull(),
			goqu.C(colSequenceNumber).Gt(point.SequenceNumber),
		),
	)
}

// processQueryResults processes database rows and converts them to storable events.
func (es *EventStore) processQueryResults(ctx context.Context, rows adapters.DBRows) (eventstore.StorableEvents, error) {
	var empty eventstore.StorableEvents

	eventStream := make(eventstore.StorableEvents, 0)

	for rows.Next() {
		var (
			insertionID    int64
			eventType      string
			aggregateID    string
			occurredAt     time.Time
			sequenceNumber sql.NullString
			payload        []byte
			metadata       []byte
			tombstoned     bool
		)

		rowScanErr := rows.Scan(&insertionID, &eventType, &aggregateID, &occurredAt, &sequenceNumber, &payload, &metadata, &tombstoned)
		if rowScanErr != nil {
			es.logErrorContext(ctx, logMsgScanRowFailed, logAttrError, rowScanErr.Error())
			return empty, errors.Join(eventstore.ErrRowScanFailed, rowScanErr)
		}

		event, buildStorableErr := eventstore.BuildStorableEvent(
			eventType, aggregateID, occurredAt, sequenceNumber.String, payload, metadata)
		if buildStorableErr != nil {
			es.logErrorContext(ctx, logMsgBuildStorableEventFailed, logAttrError, buildStorableErr.Error(), logAttrEventType, eventType)
			return empty, errors.Join(eventstore.ErrQueryingEventsFailed, buildStorableErr)
		}

		event.InsertionID = insertionID
		event.Tombstoned = tombstoned

		eventStream = append(eventStream, event)
	}

	return eventStream, nil
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarnContext(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if a logger is configured.
func (es *EventStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	es.logDebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
}

// logOperation logs operational information at info level if a logger is configured.
func (es *EventStore) logOperation(ctx context.Context, action string, args ...any) {
	es.logInfoContext(ctx, logMsgOperation+action, args...)
}
