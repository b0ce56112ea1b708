package eventstore

import (
	"errors"
)

var ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

// ErrVersionConflict signals that a compare-and-swap persist or a version confirmation
// lost against a concurrent writer. Callers should reload and retry or abort.
var ErrVersionConflict = errors.New("version conflict, no rows were affected")

// ErrAggregateNotFound signals that no state row exists for the requested aggregate ID.
var ErrAggregateNotFound = errors.New("aggregate not found")

// ErrActionNotFound signals that no event carries the requested sequence number.
var ErrActionNotFound = errors.New("no events found for the given action")

var ErrAppendingEventsFailed = errors.New("appending events failed")
var ErrQueryingEventsFailed = errors.New("querying events failed")
var ErrTombstoningEventsFailed = errors.New("tombstoning events failed")
var ErrSavingAggregateFailed = errors.New("saving aggregate failed")
var ErrLoadingAggregateFailed = errors.New("loading aggregate failed")
var ErrBeginningTransactionFailed = errors.New("beginning transaction failed")
var ErrCommittingTransactionFailed = errors.New("committing transaction failed")
var ErrRowScanFailed = errors.New("scanning row failed")
