package usecase

import (
	"context"

	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/core"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/domain"
	"github.com/cellarstreams/mutable-eventstore-go/replay"
)

// CreateLot creates a new wine lot with the given code and initial composition.
// Returns the ID of the created lot.
func (w *Workflows) CreateLot(ctx context.Context, code string, composition core.Composition) (string, error) {
	var lotID string

	err := w.manager.Execute(ctx, func(ctx context.Context) error {
		lot, createErr := domain.CreateWineLot(ctx, w.lots, code, composition)
		if createErr != nil {
			return createErr
		}

		lotID = lot.ID()

		return nil
	})

	return lotID, err
}

// UpdateLotCode changes the code of a wine lot.
func (w *Workflows) UpdateLotCode(ctx context.Context, lotID string, code string) error {
	return w.manager.Execute(ctx, func(ctx context.Context) error {
		lot, loadErr := w.loadLot(ctx, lotID)
		if loadErr != nil {
			return loadErr
		}

		return lot.UpdateCode(ctx, code)
	})
}

// DeleteLot soft-deletes a wine lot, freeing its code for reuse.
func (w *Workflows) DeleteLot(ctx context.Context, lotID string) error {
	return w.manager.Execute(ctx, func(ctx context.Context) error {
		lot, loadErr := w.loadLot(ctx, lotID)
		if loadErr != nil {
			return loadErr
		}

		return lot.Destroy(ctx)
	})
}

// RebuildLots refolds the given lots from their full event streams and persists
// the recomputed state rows, repairing state that drifted from history.
func (w *Workflows) RebuildLots(ctx context.Context, lotIDs ...string) error {
	return w.manager.Execute(ctx, func(ctx context.Context) error {
		lots, loadErr := w.loadLots(ctx, lotIDs)
		if loadErr != nil {
			return loadErr
		}

		_, rebuildErr := replay.RebuildAggregates(ctx, w.lots, editablesOf(lots))

		return rebuildErr
	})
}
