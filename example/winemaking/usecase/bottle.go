package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cellarstreams/mutable-eventstore-go/aggregate"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/core"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/domain"
	"github.com/cellarstreams/mutable-eventstore-go/replay"
)

// RecordBottle records a bottling run drawn from a wine lot. A past effectiveAt
// inserts the bottling between existing actions and reapplies everything after
// it. Returns the ID of the recorded action.
func (w *Workflows) RecordBottle(
	ctx context.Context,
	lotID string,
	volumeBottled decimal.Decimal,
	bottles int,
	effectiveAt time.Time,
) (string, error) {

	var actionID string

	err := w.manager.Execute(ctx, func(ctx context.Context) error {
		effective, backdated, normErr := normalizeEffectiveAt(effectiveAt)
		if normErr != nil {
			return normErr
		}

		lot, loadErr := w.loadLot(ctx, lotID)
		if loadErr != nil {
			return loadErr
		}

		if backdated {
			byID, rewindErr := replay.LoadEditableAggregatesAtTime(
				ctx, w.lots, []aggregate.Editable{lot}, rewindCutoff(effective))
			if rewindErr != nil {
				return rewindErr
			}

			lot = byID[lotID].(*domain.WineLot)
		}

		action, recordErr := domain.RecordBottle(ctx, w.actions, lotID, volumeBottled, bottles, effective)
		if recordErr != nil {
			return recordErr
		}
		actionID = action.ID()

		if err := lot.Bottle(ctx, action.ID(), action.EffectiveAt(), volumeBottled); err != nil {
			return err
		}

		if backdated {
			return replay.ReapplyDownstreamEventsFrom(ctx, w.lots, lot, action.Point())
		}

		return nil
	})

	return actionID, err
}

// EditBottle corrects a recorded bottling run: the lot's history is rewound to
// the action's position, the old bottling events are tombstoned, the corrected
// bottling is applied, and all downstream events are reapplied. When the
// bottling moves to a different lot, the old lot is rewound and reapplied too.
func (w *Workflows) EditBottle(
	ctx context.Context,
	actionID string,
	lotID string,
	volumeBottled decimal.Decimal,
	bottles int,
) error {

	return w.manager.Execute(ctx, func(ctx context.Context) error {
		action, loadErr := w.loadActionOfType(ctx, actionID, core.ActionTypeBottle)
		if loadErr != nil {
			return loadErr
		}

		lot, lotErr := w.loadLot(ctx, lotID)
		if lotErr != nil {
			return lotErr
		}

		editables := []aggregate.Editable{lot}

		previousLotID := action.Details().Bottle.WineLotID
		if previousLotID != lotID {
			previousLot, previousErr := w.loadLot(ctx, previousLotID)
			if previousErr != nil {
				return previousErr
			}

			editables = append(editables, previousLot)
		}

		byID, rewindErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, w.lots, editables, action.Point())
		if rewindErr != nil {
			return rewindErr
		}

		if err := action.EditBottle(ctx, lotID, volumeBottled, bottles); err != nil {
			return err
		}

		target := byID[lotID].(*domain.WineLot)
		if err := target.Bottle(ctx, action.ID(), action.EffectiveAt(), volumeBottled); err != nil {
			return err
		}

		for _, editable := range byID {
			if err := replay.ReapplyDownstreamEventsFrom(ctx, w.lots, editable, action.Point()); err != nil {
				return err
			}
		}

		return nil
	})
}
