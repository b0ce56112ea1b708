// Package testutil provides fixtures and helpers shared by the test suites.
package testutil

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore/memoryengine"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/core"
	"github.com/cellarstreams/mutable-eventstore-go/uow"
)

// Table names of the two example stores sharing one backend.
const (
	LotEventsTable    = "wine_lot_events"
	LotStatesTable    = "wine_lots"
	ActionEventsTable = "action_events"
	ActionStatesTable = "actions"
)

// GivenMemoryStore creates an in-memory store on a fresh backend with the
// default table names.
func GivenMemoryStore(t *testing.T) *memoryengine.EventStore {
	t.Helper()

	store, err := memoryengine.NewEventStore(memoryengine.NewBackend())
	require.NoError(t, err)

	return store
}

// GivenWinemakingStores creates the lots store and the actions store on one
// shared in-memory backend, plus a unit-of-work manager committing on it.
func GivenWinemakingStores(t *testing.T, options ...uow.Option) (lots, actions *memoryengine.EventStore, manager *uow.Manager) {
	t.Helper()

	backend := memoryengine.NewBackend()

	lots, err := memoryengine.NewEventStore(backend,
		memoryengine.WithEventTableName(LotEventsTable),
		memoryengine.WithAggregateTableName(LotStatesTable))
	require.NoError(t, err)

	actions, err = memoryengine.NewEventStore(backend,
		memoryengine.WithEventTableName(ActionEventsTable),
		memoryengine.WithAggregateTableName(ActionStatesTable))
	require.NoError(t, err)

	manager = uow.NewManager(lots, options...)

	return lots, actions, manager
}

// FixtureStorableEvent builds a minimal valid event for store-level tests.
func FixtureStorableEvent(
	t *testing.T,
	eventType string,
	aggregateID string,
	occurredAt time.Time,
	sequenceNumber string,
) eventstore.StorableEvent {

	t.Helper()

	event, err := eventstore.BuildStorableEventWithEmptyMetadata(
		eventType, aggregateID, occurredAt, sequenceNumber, []byte(`{"fixture":true}`))
	require.NoError(t, err)

	return event
}

// FixtureComposition builds a valid single-varietal composition.
func FixtureComposition(variety string) core.Composition {
	return core.BuildComposition([]core.ComponentAmount{
		{
			Component: core.LotComponent{Variety: variety, Appellation: "Willamette Valley", Vintage: 2023},
			Percent:   decimal.RequireFromString("1"),
		},
	})
}

// FixtureBlendedComposition builds a valid two-varietal composition.
func FixtureBlendedComposition(varietyA, varietyB string, percentA string) core.Composition {
	pctA := decimal.RequireFromString(percentA)
	pctB := decimal.NewFromInt(1).Sub(pctA)

	return core.BuildComposition([]core.ComponentAmount{
		{
			Component: core.LotComponent{Variety: varietyA, Appellation: "Willamette Valley", Vintage: 2023},
			Percent:   pctA,
		},
		{
			Component: core.LotComponent{Variety: varietyB, Appellation: "Willamette Valley", Vintage: 2023},
			Percent:   pctB,
		},
	})
}
