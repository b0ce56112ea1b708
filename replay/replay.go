// Package replay implements the mutable-replay engine: rewinding aggregates to the
// position of an Action, tombstoning the events being corrected, and reapplying the
// downstream suffix so that edits, deletes, and backdated inserts keep history
// consistent.
//
// All functions that change what will be persisted must run inside a unit-of-work
// scope (uow.Execute); they buffer tombstones and track rebuilt aggregates there.
package replay

import (
	"context"
	"errors"

	"github.com/cellarstreams/mutable-eventstore-go/aggregate"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/uow"
)

// ErrReplayInconsistency signals that folding stored history back onto an aggregate
// failed: a stored event could not be decoded or no longer passes context validation
// against the corrected upstream state.
var ErrReplayInconsistency = errors.New("replaying stored events produced an inconsistency")

// LoadEditableAggregatesAtTimeAndPoint rewinds the given aggregates to the position
// of one Action, keyed by aggregate ID.
//
// Events produced by the Action at the point itself are not folded; they are marked
// for tombstoning in the active unit of work, ready to be replaced or dropped.
// All earlier events (including events without a sequence number at the exact
// timestamp) are folded into blank copies of the persisted aggregates.
//
// Aggregates that have never been persisted are marked for backdating and returned
// as-is. Persisted aggregates with no events before the point get their first stored
// event folded and are marked for backdating too.
//
// Every returned aggregate is tracked in the unit of work, so its recomputed state
// persists on commit even if no new events are applied to it.
func LoadEditableAggregatesAtTimeAndPoint(
	ctx context.Context,
	store eventstore.Store,
	aggregates []aggregate.Editable,
	point eventstore.Point,
) (map[string]aggregate.Editable, error) {

	scope, scopeErr := uow.FromContext(ctx)
	if scopeErr != nil {
		return nil, scopeErr
	}

	byID := prepareEditables(aggregates)
	if len(byID) == 0 {
		return byID, nil
	}

	ids := aggregateIDs(byID)
	filter := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(ids[0], ids[1:]...).
		AndOccurredAtOrBeforePoint(point).
		Finalize()

	events, queryErr := store.Query(ctx, filter)
	if queryErr != nil {
		return nil, queryErr
	}

	rebuilt := make(map[string]bool)

	for _, event := range events {
		if event.SequenceNumber == point.SequenceNumber {
			scope.MarkTombstoned(store, event.InsertionID)
			continue
		}

		rebuilt[event.AggregateID] = true

		if err := fold(byID[event.AggregateID], event); err != nil {
			return nil, err
		}
	}

	if err := foldFirstEventForUnrebuilt(ctx, store, byID, rebuilt, point.SequenceNumber); err != nil {
		return nil, err
	}

	for _, editable := range byID {
		scope.Track(editable.Root())
	}

	return byID, nil
}

// LoadEditableAggregatesAtTime rewinds the given aggregates to the end of a moment in
// time, keyed by aggregate ID: every event with occurred_at at or before the time is
// folded, nothing is tombstoned. This is the rewind used when inserting a backdated
// Action between existing ones.
//
// Every returned aggregate is tracked in the unit of work.
func LoadEditableAggregatesAtTime(
	ctx context.Context,
	store eventstore.Store,
	aggregates []aggregate.Editable,
	occurredAt eventstore.Point,
) (map[string]aggregate.Editable, error) {

	scope, scopeErr := uow.FromContext(ctx)
	if scopeErr != nil {
		return nil, scopeErr
	}

	byID := prepareEditables(aggregates)
	if len(byID) == 0 {
		return byID, nil
	}

	ids := aggregateIDs(byID)
	filter := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(ids[0], ids[1:]...).
		AndOccurredUntil(occurredAt.OccurredAt).
		Finalize()

	events, queryErr := store.Query(ctx, filter)
	if queryErr != nil {
		return nil, queryErr
	}

	rebuilt := make(map[string]bool)

	for _, event := range events {
		rebuilt[event.AggregateID] = true

		if err := fold(byID[event.AggregateID], event); err != nil {
			return nil, err
		}
	}

	if err := foldFirstEventForUnrebuilt(ctx, store, byID, rebuilt, ""); err != nil {
		return nil, err
	}

	for _, editable := range byID {
		scope.Track(editable.Root())
	}

	return byID, nil
}

// ReapplyDownstreamEventsFrom folds all stored events of the aggregate that come
// strictly after the given point back onto its (corrected) state. Context validators
// run again on every event, so corrections that would invalidate later history
// surface here.
func ReapplyDownstreamEventsFrom(
	ctx context.Context,
	store eventstore.Store,
	editable aggregate.Editable,
	point eventstore.Point,
) error {

	filter := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(editable.Root().AggregateID()).
		AndOccurredAfterPoint(point).
		Finalize()

	events, queryErr := store.Query(ctx, filter)
	if queryErr != nil {
		return queryErr
	}

	for _, event := range events {
		if err := fold(editable, event); err != nil {
			return err
		}
	}

	return nil
}

// RebuildAggregates refolds every live event of each aggregate from scratch onto a
// blank copy and tracks the copies in the active unit of work, so the recomputed
// state rows persist on commit. Returns the rebuilt aggregates keyed by ID.
func RebuildAggregates(
	ctx context.Context,
	store eventstore.Store,
	aggregates []aggregate.Editable,
) (map[string]aggregate.Editable, error) {

	scope, scopeErr := uow.FromContext(ctx)
	if scopeErr != nil {
		return nil, scopeErr
	}

	byID := prepareEditables(aggregates)
	if len(byID) == 0 {
		return byID, nil
	}

	ids := aggregateIDs(byID)
	filter := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(ids[0], ids[1:]...).
		Finalize()

	events, queryErr := store.Query(ctx, filter)
	if queryErr != nil {
		return nil, queryErr
	}

	for _, event := range events {
		if err := fold(byID[event.AggregateID], event); err != nil {
			return nil, err
		}
	}

	for _, editable := range byID {
		scope.Track(editable.Root())
	}

	return byID, nil
}

// LoadAggregateStatesBefore reconstructs read-only states of the aggregates strictly
// before the given point. When the point carries no sequence number, the cutoff is
// simply "before the timestamp". The returned aggregates are excluded from
// persistence and nothing is tracked, so no unit of work is required.
//
// Aggregates with no events before the point get their first stored event folded and
// are marked for backdating, mirroring the editable loaders.
func LoadAggregateStatesBefore(
	ctx context.Context,
	store eventstore.Store,
	aggregates []aggregate.Editable,
	point eventstore.Point,
) (map[string]aggregate.Editable, error) {

	byID := make(map[string]aggregate.Editable, len(aggregates))
	for _, editable := range aggregates {
		identity := editable.Identity()
		identity.Root().MarkNonPersistable()
		byID[identity.Root().AggregateID()] = identity
	}

	if len(byID) == 0 {
		return byID, nil
	}

	ids := aggregateIDs(byID)
	filter := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(ids[0], ids[1:]...).
		AndOccurredBeforePoint(point).
		Finalize()

	events, queryErr := store.Query(ctx, filter)
	if queryErr != nil {
		return nil, queryErr
	}

	rebuilt := make(map[string]bool)

	for _, event := range events {
		rebuilt[event.AggregateID] = true

		if err := fold(byID[event.AggregateID], event); err != nil {
			return nil, err
		}
	}

	if err := foldFirstEventForUnrebuilt(ctx, store, byID, rebuilt, ""); err != nil {
		return nil, err
	}

	return byID, nil
}

// prepareEditables keys the aggregates by ID. Never persisted aggregates are kept
// as-is and marked for backdating; persisted ones are replaced by blank copies.
func prepareEditables(aggregates []aggregate.Editable) map[string]aggregate.Editable {
	byID := make(map[string]aggregate.Editable, len(aggregates))

	for _, editable := range aggregates {
		if editable.Root().Version() == 0 {
			editable.Root().MarkForBackdating()
			byID[editable.Root().AggregateID()] = editable
			continue
		}

		byID[editable.Root().AggregateID()] = editable.Identity()
	}

	return byID
}

// foldFirstEventForUnrebuilt folds the first stored event of every aggregate that got
// no events within the cutoff and marks it for backdating. Events carrying the
// excluded sequence number are skipped.
func foldFirstEventForUnrebuilt(
	ctx context.Context,
	store eventstore.Store,
	byID map[string]aggregate.Editable,
	rebuilt map[string]bool,
	excludedSequenceNumber string,
) error {

	notRebuilt := make([]string, 0)
	for id := range byID {
		if !rebuilt[id] {
			notRebuilt = append(notRebuilt, id)
		}
	}

	if len(notRebuilt) == 0 {
		return nil
	}

	filter := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(notRebuilt[0], notRebuilt[1:]...).
		Finalize()

	events, queryErr := store.Query(ctx, filter)
	if queryErr != nil {
		return queryErr
	}

	folded := make(map[string]bool)

	for _, event := range events {
		if excludedSequenceNumber != "" && event.SequenceNumber == excludedSequenceNumber {
			continue
		}

		if folded[event.AggregateID] {
			continue
		}

		folded[event.AggregateID] = true

		editable := byID[event.AggregateID]
		if err := fold(editable, event); err != nil {
			return err
		}

		editable.Root().MarkForBackdating()
	}

	return nil
}

func aggregateIDs(byID map[string]aggregate.Editable) []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	return ids
}

// fold decodes one stored event and loads it onto the aggregate, wrapping every
// failure as a replay inconsistency so callers can match both the sentinel and the
// underlying domain error.
func fold(editable aggregate.Editable, storable eventstore.StorableEvent) error {
	event, decodeErr := editable.Root().DecodeStorable(storable)
	if decodeErr != nil {
		return errors.Join(ErrReplayInconsistency, decodeErr)
	}

	if err := editable.Root().Load(event); err != nil {
		return errors.Join(ErrReplayInconsistency, err)
	}

	return nil
}
