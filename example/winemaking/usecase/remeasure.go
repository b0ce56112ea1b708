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

// RecordRemeasure records a fresh volume measurement of a wine lot. A past
// effectiveAt inserts the measurement between existing actions and reapplies
// everything after it. Returns the ID of the recorded action.
func (w *Workflows) RecordRemeasure(
	ctx context.Context,
	lotID string,
	volume decimal.Decimal,
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

		action, recordErr := domain.RecordRemeasure(ctx, w.actions, lotID, volume, effective)
		if recordErr != nil {
			return recordErr
		}
		actionID = action.ID()

		if err := lot.Remeasure(ctx, action.ID(), action.EffectiveAt(), volume); err != nil {
			return err
		}

		if backdated {
			return replay.ReapplyDownstreamEventsFrom(ctx, w.lots, lot, action.Point())
		}

		return nil
	})

	return actionID, err
}

// EditRemeasure corrects a recorded volume measurement: the lot's history is
// rewound to the action's position, the old measurement events are tombstoned,
// the corrected measurement is applied, and all downstream events are
// reapplied. When the measurement moves to a different lot, the old lot is
// rewound and reapplied too.
func (w *Workflows) EditRemeasure(ctx context.Context, actionID string, lotID string, volume decimal.Decimal) error {
	return w.manager.Execute(ctx, func(ctx context.Context) error {
		action, loadErr := w.loadActionOfType(ctx, actionID, core.ActionTypeRemeasure)
		if loadErr != nil {
			return loadErr
		}

		lot, lotErr := w.loadLot(ctx, lotID)
		if lotErr != nil {
			return lotErr
		}

		editables := []aggregate.Editable{lot}

		previousLotID := action.Details().Remeasure.WineLotID
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

		if err := action.EditRemeasure(ctx, lotID, volume); err != nil {
			return err
		}

		target := byID[lotID].(*domain.WineLot)
		if err := target.Remeasure(ctx, action.ID(), action.EffectiveAt(), volume); err != nil {
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
