package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/domain"
	"github.com/cellarstreams/mutable-eventstore-go/uow"
)

var jsonCodec = jsoniter.ConfigFastest

// Backdated actions must predate "now" by at least this much, so they can never
// race the recording timestamps of concurrent writes.
const backdateSafetyMargin = 2 * time.Second

var (
	// ErrEffectiveDateNotInPast is returned when a supplied effective date is not
	// functionally in the past.
	ErrEffectiveDateNotInPast = errors.New("effective date must be functionally in the past")

	// ErrWineLotNotFound is returned when a workflow references an unknown wine lot.
	ErrWineLotNotFound = errors.New("wine lot does not exist")

	// ErrWrongActionType is returned when an edit workflow targets an action of a
	// different kind.
	ErrWrongActionType = errors.New("action is not of the expected type")

	// ErrCutoffWithoutEffectiveAt is returned when a composition cutoff names an
	// action but no effective time.
	ErrCutoffWithoutEffectiveAt = errors.New("effective time must be provided when an action ID is specified")
)

// Workflows bundles the winemaking use cases around their two event stores and
// the unit-of-work manager. Both stores must share the manager's database.
type Workflows struct {
	lots    eventstore.Store
	actions eventstore.Store
	manager *uow.Manager
}

// NewWorkflows creates the winemaking workflows.
func NewWorkflows(lots eventstore.Store, actions eventstore.Store, manager *uow.Manager) *Workflows {
	return &Workflows{
		lots:    lots,
		actions: actions,
		manager: manager,
	}
}

// normalizeEffectiveAt truncates a supplied effective time to whole seconds,
// matching storage precision, and rejects times that are not functionally in
// the past. A zero time means "effective now" and is not a backdate.
func normalizeEffectiveAt(effectiveAt time.Time) (time.Time, bool, error) {
	if effectiveAt.IsZero() {
		return time.Time{}, false, nil
	}

	effectiveAt = effectiveAt.UTC().Truncate(time.Second)

	if effectiveAt.After(time.Now().UTC().Add(-backdateSafetyMargin)) {
		return time.Time{}, false, ErrEffectiveDateNotInPast
	}

	return effectiveAt, true, nil
}

// rewindCutoff is the rewind cutoff for inserting a backdated action: everything
// up to and including the effective second is the rewound prefix. Sequence
// numbers stored at the effective time are ULIDs issued earlier, so they all sort
// before a freshly issued action ID; the downstream reapply from the new action's
// point therefore picks up each later event exactly once.
func rewindCutoff(effective time.Time) eventstore.Point {
	return eventstore.Point{OccurredAt: effective}
}

func (w *Workflows) loadLot(ctx context.Context, lotID string) (*domain.WineLot, error) {
	lot, err := domain.LoadWineLot(ctx, w.lots, lotID)
	if err != nil {
		if errors.Is(err, eventstore.ErrAggregateNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWineLotNotFound, lotID)
		}

		return nil, err
	}

	return lot, nil
}

func (w *Workflows) loadLots(ctx context.Context, lotIDs []string) ([]*domain.WineLot, error) {
	lots := make([]*domain.WineLot, 0, len(lotIDs))

	for _, lotID := range lotIDs {
		lot, err := w.loadLot(ctx, lotID)
		if err != nil {
			return nil, err
		}

		lots = append(lots, lot)
	}

	return lots, nil
}

func (w *Workflows) loadActionOfType(ctx context.Context, actionID string, actionType string) (*domain.Action, error) {
	action, err := domain.LoadAction(ctx, w.actions, actionID)
	if err != nil {
		return nil, err
	}

	if action.ActionType() != actionType {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrWrongActionType, actionID, action.ActionType(), actionType)
	}

	return action, nil
}
