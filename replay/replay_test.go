package replay_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarstreams/mutable-eventstore-go/aggregate"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore/memoryengine"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/domain"
	"github.com/cellarstreams/mutable-eventstore-go/replay"
	"github.com/cellarstreams/mutable-eventstore-go/testutil"
	"github.com/cellarstreams/mutable-eventstore-go/uow"
)

// givenLotWithHistory persists a wine lot that received 100 at receivedAt and
// bottled 30 one hour later, and returns the lot ID and the two action IDs.
func givenLotWithHistory(
	t *testing.T,
	lots *memoryengine.EventStore,
	manager *uow.Manager,
	receivedAt time.Time,
) (lotID, receiveActionID, bottleActionID string) {

	t.Helper()

	ctx := context.Background()
	receiveActionID = "01RECEIVE"
	bottleActionID = "01BOTTLE"

	err := manager.Execute(ctx, func(ctx context.Context) error {
		lot, createErr := domain.CreateWineLot(ctx, lots, "PINOT-23", testutil.FixtureComposition("Pinot Noir"))
		if createErr != nil {
			return createErr
		}

		lotID = lot.ID()

		if receiveErr := lot.ReceiveVolume(ctx, receiveActionID, receivedAt, decimal.NewFromInt(100)); receiveErr != nil {
			return receiveErr
		}

		return lot.Bottle(ctx, bottleActionID, receivedAt.Add(time.Hour), decimal.NewFromInt(30))
	})
	require.NoError(t, err)

	return lotID, receiveActionID, bottleActionID
}

func loadLot(t *testing.T, lots *memoryengine.EventStore, lotID string) *domain.WineLot {
	t.Helper()

	lot, err := domain.LoadWineLot(context.Background(), lots, lotID)
	require.NoError(t, err)

	return lot
}

func Test_LoadEditableAggregatesAtTimeAndPoint_Tombstones_The_Point_And_Folds_The_Prefix(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)
	receivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lotID, _, bottleActionID := givenLotWithHistory(t, lots, manager, receivedAt)

	// act: rewind to the bottling action without replacing its events
	err := manager.Execute(ctx, func(ctx context.Context) error {
		lot := loadLot(t, lots, lotID)

		byID, loadErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, lots,
			[]aggregate.Editable{lot},
			eventstore.Point{OccurredAt: receivedAt.Add(time.Hour), SequenceNumber: bottleActionID})
		if loadErr != nil {
			return loadErr
		}

		// assert: the state is as of right before the bottling
		rewound, ok := byID[lotID].(*domain.WineLot)
		require.True(t, ok)
		assert.Equal(t, "100", rewound.Volume().String())

		return nil
	})
	require.NoError(t, err)

	// assert: the bottling events are tombstoned, the recomputed state persisted
	events, err := lots.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, err)
	for _, event := range events {
		assert.NotEqual(t, bottleActionID, event.SequenceNumber, "the point's events must be gone")
	}

	assert.Equal(t, "100", loadLot(t, lots, lotID).Volume().String())
}

func Test_LoadEditableAggregatesAtTime_Folds_Everything_At_Or_Before_The_Time(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)
	receivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lotID, _, _ := givenLotWithHistory(t, lots, manager, receivedAt)

	// act: rewind to 30 minutes after the receipt, before the bottling
	err := manager.Execute(ctx, func(ctx context.Context) error {
		lot := loadLot(t, lots, lotID)

		byID, loadErr := replay.LoadEditableAggregatesAtTime(ctx, lots,
			[]aggregate.Editable{lot},
			eventstore.Point{OccurredAt: receivedAt.Add(30 * time.Minute)})
		if loadErr != nil {
			return loadErr
		}

		rewound, ok := byID[lotID].(*domain.WineLot)
		require.True(t, ok)

		// assert: the receipt is folded, the bottling is not, nothing tombstoned
		assert.Equal(t, "100", rewound.Volume().String())

		return nil
	})
	require.NoError(t, err)

	events, err := lots.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, err)
	assert.Len(t, events, 3, "a rewind at a time tombstones nothing")
}

func Test_ReapplyDownstreamEventsFrom_Restores_The_Suffix(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)
	receivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lotID, receiveActionID, _ := givenLotWithHistory(t, lots, manager, receivedAt)
	point := eventstore.Point{OccurredAt: receivedAt, SequenceNumber: receiveActionID}

	// act: rewind to the receipt, replace it with a larger one, reapply the bottling
	err := manager.Execute(ctx, func(ctx context.Context) error {
		lot := loadLot(t, lots, lotID)

		byID, loadErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, lots, []aggregate.Editable{lot}, point)
		if loadErr != nil {
			return loadErr
		}

		rewound := byID[lotID].(*domain.WineLot)
		if receiveErr := rewound.ReceiveVolume(ctx, receiveActionID, receivedAt, decimal.NewFromInt(200)); receiveErr != nil {
			return receiveErr
		}

		return replay.ReapplyDownstreamEventsFrom(ctx, lots, rewound, point)
	})

	// assert: 200 received minus the reapplied 30 bottled
	require.NoError(t, err)
	assert.Equal(t, "170", loadLot(t, lots, lotID).Volume().String())
}

func Test_ReapplyDownstreamEventsFrom_Fails_When_A_Correction_Invalidates_Later_History(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)
	receivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lotID, receiveActionID, _ := givenLotWithHistory(t, lots, manager, receivedAt)
	point := eventstore.Point{OccurredAt: receivedAt, SequenceNumber: receiveActionID}

	// act: shrink the receipt below the 30 bottled later
	err := manager.Execute(ctx, func(ctx context.Context) error {
		lot := loadLot(t, lots, lotID)

		byID, loadErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, lots, []aggregate.Editable{lot}, point)
		if loadErr != nil {
			return loadErr
		}

		rewound := byID[lotID].(*domain.WineLot)
		if receiveErr := rewound.ReceiveVolume(ctx, receiveActionID, receivedAt, decimal.NewFromInt(10)); receiveErr != nil {
			return receiveErr
		}

		return replay.ReapplyDownstreamEventsFrom(ctx, lots, rewound, point)
	})

	// assert: the reapplied bottling no longer passes validation, nothing committed
	assert.ErrorIs(t, err, replay.ErrReplayInconsistency)
	assert.ErrorIs(t, err, domain.ErrVolumeExceedsCurrent)
	assert.Equal(t, "70", loadLot(t, lots, lotID).Volume().String())
}

func Test_LoadEditableAggregatesAtTimeAndPoint_Marks_Never_Persisted_Aggregates_For_Backdating(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		fresh := domain.NewWineLot("lot-unborn", lots)

		byID, loadErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, lots,
			[]aggregate.Editable{fresh},
			eventstore.Point{OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)})
		if loadErr != nil {
			return loadErr
		}

		// assert
		assert.True(t, byID["lot-unborn"].Root().Backdated())

		return nil
	})
	require.NoError(t, err)
}

func Test_LoadEditableAggregatesAtTimeAndPoint_Folds_The_First_Event_When_Nothing_Precedes_The_Point(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)
	receivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lotID, _, _ := givenLotWithHistory(t, lots, manager, receivedAt)

	// act: rewind to a point before every event, including the epoch-pinned creation
	err := manager.Execute(ctx, func(ctx context.Context) error {
		lot := loadLot(t, lots, lotID)

		byID, loadErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, lots,
			[]aggregate.Editable{lot},
			eventstore.Point{OccurredAt: time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)})
		if loadErr != nil {
			return loadErr
		}

		rewound := byID[lotID].(*domain.WineLot)

		// assert: the creation event is folded so the lot has an identity
		assert.Equal(t, "PINOT-23", rewound.Code())
		assert.True(t, rewound.Root().Backdated())
		assert.True(t, rewound.Volume().IsZero())

		return nil
	})
	require.NoError(t, err)
}

func Test_RebuildAggregates_Refolds_The_Live_History_From_Scratch(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)
	receivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lotID, _, _ := givenLotWithHistory(t, lots, manager, receivedAt)

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		lot := loadLot(t, lots, lotID)

		byID, rebuildErr := replay.RebuildAggregates(ctx, lots, []aggregate.Editable{lot})
		if rebuildErr != nil {
			return rebuildErr
		}

		// assert
		rebuilt := byID[lotID].(*domain.WineLot)
		assert.Equal(t, "70", rebuilt.Volume().String())

		return nil
	})
	require.NoError(t, err)
}

func Test_LoadAggregateStatesBefore_Reconstructs_ReadOnly_States(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, manager := testutil.GivenWinemakingStores(t)
	receivedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	lotID, _, bottleActionID := givenLotWithHistory(t, lots, manager, receivedAt)

	// act: no unit of work required for a read-only reconstruction
	lot := loadLot(t, lots, lotID)

	byID, err := replay.LoadAggregateStatesBefore(ctx, lots,
		[]aggregate.Editable{lot},
		eventstore.Point{OccurredAt: receivedAt.Add(time.Hour), SequenceNumber: bottleActionID})

	// assert
	require.NoError(t, err)

	before := byID[lotID].(*domain.WineLot)
	assert.Equal(t, "100", before.Volume().String(), "the bottling is after the cutoff")
}

func Test_Replay_Functions_Require_An_Active_Scope(t *testing.T) {
	// setup
	ctx := context.Background()
	lots, _, _ := testutil.GivenWinemakingStores(t)
	lot := domain.NewWineLot("lot-1", lots)

	// act + assert
	_, err := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, lots,
		[]aggregate.Editable{lot}, eventstore.Point{OccurredAt: time.Now().UTC()})
	assert.ErrorIs(t, err, uow.ErrNoActiveUnitOfWork)

	_, err = replay.LoadEditableAggregatesAtTime(ctx, lots,
		[]aggregate.Editable{lot}, eventstore.Point{OccurredAt: time.Now().UTC()})
	assert.ErrorIs(t, err, uow.ErrNoActiveUnitOfWork)

	_, err = replay.RebuildAggregates(ctx, lots, []aggregate.Editable{lot})
	assert.ErrorIs(t, err, uow.ErrNoActiveUnitOfWork)
}
