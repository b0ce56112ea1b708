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

// RecordBlend records a blend of several source lots into the receiving lot.
// blendVolumes maps each source lot to what it gives up; blendedVolume is what
// actually arrives in the receiving lot. A past effectiveAt inserts the blend
// between existing actions and reapplies everything after it on every involved
// lot. Returns the ID of the recorded action.
func (w *Workflows) RecordBlend(
	ctx context.Context,
	receivingLotID string,
	blendVolumes map[string]decimal.Decimal,
	blendedVolume decimal.Decimal,
	effectiveAt time.Time,
) (string, error) {

	var actionID string

	err := w.manager.Execute(ctx, func(ctx context.Context) error {
		effective, backdated, normErr := normalizeEffectiveAt(effectiveAt)
		if normErr != nil {
			return normErr
		}

		lotIDs := append([]string{receivingLotID}, mapKeys(blendVolumes)...)
		lots, loadErr := w.loadLots(ctx, lotIDs)
		if loadErr != nil {
			return loadErr
		}

		byID := lotsByID(lots)

		if backdated {
			rewound, rewindErr := replay.LoadEditableAggregatesAtTime(ctx, w.lots, editablesOf(lots), rewindCutoff(effective))
			if rewindErr != nil {
				return rewindErr
			}

			byID = wineLotsOf(rewound)
		}

		action, recordErr := domain.RecordBlend(ctx, w.actions, blendVolumes, receivingLotID, blendedVolume, effective)
		if recordErr != nil {
			return recordErr
		}
		actionID = action.ID()

		if err := w.processBlend(ctx, action, byID); err != nil {
			return err
		}

		if backdated {
			for _, lot := range byID {
				if err := replay.ReapplyDownstreamEventsFrom(ctx, w.lots, lot, action.Point()); err != nil {
					return err
				}
			}
		}

		return nil
	})

	return actionID, err
}

// EditBlend corrects a recorded blend. Every lot the blend touched before or
// after the correction is rewound to the action's position, the old blend
// events are tombstoned, the corrected blend is applied, and downstream history
// is reapplied on all of them.
func (w *Workflows) EditBlend(
	ctx context.Context,
	actionID string,
	receivingLotID string,
	blendVolumes map[string]decimal.Decimal,
	blendedVolume decimal.Decimal,
) error {

	return w.manager.Execute(ctx, func(ctx context.Context) error {
		action, loadErr := w.loadActionOfType(ctx, actionID, core.ActionTypeBlend)
		if loadErr != nil {
			return loadErr
		}

		lotIDs := union(
			append([]string{receivingLotID}, mapKeys(blendVolumes)...),
			action.InvolvedWineLotIDs(),
		)

		lots, lotsErr := w.loadLots(ctx, lotIDs)
		if lotsErr != nil {
			return lotsErr
		}

		rewound, rewindErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, w.lots, editablesOf(lots), action.Point())
		if rewindErr != nil {
			return rewindErr
		}

		byID := wineLotsOf(rewound)

		if err := action.EditBlend(ctx, blendVolumes, receivingLotID, blendedVolume); err != nil {
			return err
		}

		if err := w.processBlend(ctx, action, byID); err != nil {
			return err
		}

		for _, lot := range byID {
			if err := replay.ReapplyDownstreamEventsFrom(ctx, w.lots, lot, action.Point()); err != nil {
				return err
			}
		}

		return nil
	})
}

// processBlend applies a blend action to the involved lots: each source lot
// moves its contribution to the receiver, then the receiver takes in the
// blended volume.
func (w *Workflows) processBlend(ctx context.Context, action *domain.Action, byID map[string]*domain.WineLot) error {
	data := action.Details().Blend

	for sourceLotID, volume := range data.BlendVolumes {
		source := byID[sourceLotID]
		if err := source.MoveVolume(ctx, action.ID(), action.EffectiveAt(), volume, data.ReceivingWineLotID); err != nil {
			return err
		}
	}

	receiver := byID[data.ReceivingWineLotID]

	return receiver.BlendInVolume(ctx, action.ID(), action.EffectiveAt(), data.BlendedVolume, data.BlendVolumes)
}

func mapKeys(volumes map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(volumes))
	for key := range volumes {
		keys = append(keys, key)
	}

	return keys
}

func union(a []string, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))

	for _, id := range append(a, b...) {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}

	return merged
}

func lotsByID(lots []*domain.WineLot) map[string]*domain.WineLot {
	byID := make(map[string]*domain.WineLot, len(lots))
	for _, lot := range lots {
		byID[lot.ID()] = lot
	}

	return byID
}

func editablesOf(lots []*domain.WineLot) []aggregate.Editable {
	editables := make([]aggregate.Editable, 0, len(lots))
	for _, lot := range lots {
		editables = append(editables, lot)
	}

	return editables
}

func wineLotsOf(byID map[string]aggregate.Editable) map[string]*domain.WineLot {
	lots := make(map[string]*domain.WineLot, len(byID))
	for id, editable := range byID {
		lots[id] = editable.(*domain.WineLot)
	}

	return lots
}
