package usecase

import (
	"context"

	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/domain"
	"github.com/cellarstreams/mutable-eventstore-go/replay"
)

// DeleteAction removes a recorded action from history: every involved lot is
// rewound to the action's position, the action's events are tombstoned, and
// downstream history is reapplied without them. The action aggregate itself is
// kept, marked deleted, for the audit trail.
func (w *Workflows) DeleteAction(ctx context.Context, actionID string) error {
	return w.manager.Execute(ctx, func(ctx context.Context) error {
		action, loadErr := domain.LoadAction(ctx, w.actions, actionID)
		if loadErr != nil {
			return loadErr
		}

		lots, lotsErr := w.loadLots(ctx, action.InvolvedWineLotIDs())
		if lotsErr != nil {
			return lotsErr
		}

		byID, rewindErr := replay.LoadEditableAggregatesAtTimeAndPoint(ctx, w.lots, editablesOf(lots), action.Point())
		if rewindErr != nil {
			return rewindErr
		}

		if err := action.Destroy(ctx); err != nil {
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
