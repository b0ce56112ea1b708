package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/example/winemaking/core"
)

// CalculateComposition computes the composition of a wine lot by replaying its
// blending history: it discovers every lot that ever contributed volume to the
// target through blends, then folds all their events in total order, volume
// weighting each blend's contribution.
//
// A non-zero effectiveAt evaluates the composition as of that time. When
// actionID is set as well, events before the cutoff time are all included and
// events at exactly the cutoff time are included up to the matching action.
// The calculation is read-only and needs no unit of work.
func (w *Workflows) CalculateComposition(
	ctx context.Context,
	lotID string,
	effectiveAt time.Time,
	actionID string,
) (core.Composition, error) {

	if actionID != "" && effectiveAt.IsZero() {
		return core.Composition{}, ErrCutoffWithoutEffectiveAt
	}

	if !effectiveAt.IsZero() {
		// Stored timestamps carry no sub-second precision.
		effectiveAt = effectiveAt.UTC().Truncate(time.Second)
	}

	if _, err := w.loadLot(ctx, lotID); err != nil {
		return core.Composition{}, err
	}

	lotIDs, err := w.contributingLotIDs(ctx, lotID, effectiveAt, actionID)
	if err != nil {
		return core.Composition{}, err
	}

	compositions, err := w.foldCompositions(ctx, lotIDs, effectiveAt, actionID)
	if err != nil {
		return core.Composition{}, err
	}

	return compositions[lotID], nil
}

// contributingLotIDs finds all lots involved in the target's composition with a
// breadth-first search through blend events, because lots blended into the
// target may have received blends themselves.
func (w *Workflows) contributingLotIDs(
	ctx context.Context,
	lotID string,
	effectiveAt time.Time,
	actionID string,
) ([]string, error) {

	discovered := map[string]bool{lotID: true}
	queue := []string{lotID}
	ids := []string{lotID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		builder := eventstore.BuildEventFilter().
			Matching().
			AnyAggregateIDOf(current).
			AndAnyEventTypeOf(core.VolumeBlendedEventType)

		events, queryErr := w.lots.Query(ctx, withCutoff(builder, effectiveAt, actionID).Finalize())
		if queryErr != nil {
			return nil, queryErr
		}

		for _, storable := range events {
			var blended core.VolumeBlended
			if err := jsonCodec.Unmarshal(storable.PayloadJSON, &blended); err != nil {
				return nil, err
			}

			for sourceLotID := range blended.Volumes {
				if !discovered[sourceLotID] {
					discovered[sourceLotID] = true
					queue = append(queue, sourceLotID)
					ids = append(ids, sourceLotID)
				}
			}
		}
	}

	return ids, nil
}

// foldCompositions replays all events of the given lots in total order, keeping
// per-lot volume and composition up to date as it goes.
func (w *Workflows) foldCompositions(
	ctx context.Context,
	lotIDs []string,
	effectiveAt time.Time,
	actionID string,
) (map[string]core.Composition, error) {

	builder := eventstore.BuildEventFilter().
		Matching().
		AnyAggregateIDOf(lotIDs[0], lotIDs[1:]...)

	events, queryErr := w.lots.Query(ctx, withCutoff(builder, effectiveAt, actionID).Finalize())
	if queryErr != nil {
		return nil, queryErr
	}

	volumes := make(map[string]decimal.Decimal)
	compositions := make(map[string]core.Composition)

	for _, storable := range events {
		switch storable.EventType {
		case core.WineLotCreatedEventType:
			var created core.WineLotCreated
			if err := jsonCodec.Unmarshal(storable.PayloadJSON, &created); err != nil {
				return nil, err
			}

			compositions[storable.AggregateID] = created.Composition()
			volumes[storable.AggregateID] = decimal.Zero

		case core.VolumeBlendedEventType:
			var blended core.VolumeBlended
			if err := jsonCodec.Unmarshal(storable.PayloadJSON, &blended); err != nil {
				return nil, err
			}

			blendComposition(storable.AggregateID, blended, volumes, compositions)

		case core.VolumeReceivedEventType:
			var received core.VolumeReceived
			if err := jsonCodec.Unmarshal(storable.PayloadJSON, &received); err != nil {
				return nil, err
			}

			volumes[storable.AggregateID] = volumes[storable.AggregateID].Add(received.Volume)

		case core.VolumeRemeasuredEventType:
			var remeasured core.VolumeRemeasured
			if err := jsonCodec.Unmarshal(storable.PayloadJSON, &remeasured); err != nil {
				return nil, err
			}

			volumes[storable.AggregateID] = remeasured.Volume

		case core.VolumeBottledEventType:
			var bottled core.VolumeBottled
			if err := jsonCodec.Unmarshal(storable.PayloadJSON, &bottled); err != nil {
				return nil, err
			}

			volumes[storable.AggregateID] = volumes[storable.AggregateID].Sub(bottled.Volume)

		case core.VolumeMovedEventType:
			var moved core.VolumeMoved
			if err := jsonCodec.Unmarshal(storable.PayloadJSON, &moved); err != nil {
				return nil, err
			}

			volumes[storable.AggregateID] = volumes[storable.AggregateID].Sub(moved.Volume)
		}
	}

	return compositions, nil
}

// blendComposition volume-weights the contributions of the lot's existing
// contents and each blended-in lot. Weights use the volumes given up by the
// sources; the lot's tracked volume grows only by what actually arrived.
func blendComposition(
	lotID string,
	blended core.VolumeBlended,
	volumes map[string]decimal.Decimal,
	compositions map[string]core.Composition,
) {

	currentVolume := volumes[lotID]

	blendedTotal := decimal.Zero
	for _, volume := range blended.Volumes {
		blendedTotal = blendedTotal.Add(volume)
	}

	newTotal := currentVolume.Add(blendedTotal)
	newComponents := make(map[core.LotComponent]decimal.Decimal)

	if currentVolume.IsPositive() {
		currentWeight := currentVolume.Div(newTotal)
		for component, percent := range compositions[lotID].Components {
			newComponents[component] = newComponents[component].Add(percent.Mul(currentWeight))
		}
	}

	for sourceLotID, blendVolume := range blended.Volumes {
		if !blendVolume.IsPositive() {
			continue
		}

		blendWeight := blendVolume.Div(newTotal)
		for component, percent := range compositions[sourceLotID].Components {
			newComponents[component] = newComponents[component].Add(percent.Mul(blendWeight))
		}
	}

	compositions[lotID] = core.Composition{Components: newComponents}
	volumes[lotID] = currentVolume.Add(blended.VolumeReceived)
}

func withCutoff(
	builder eventstore.WindowedFilterBuilder,
	effectiveAt time.Time,
	actionID string,
) eventstore.WindowedFilterBuilder {

	switch {
	case actionID != "":
		return builder.AndOccurredAtOrBeforePoint(eventstore.Point{OccurredAt: effectiveAt, SequenceNumber: actionID})
	case !effectiveAt.IsZero():
		return builder.AndOccurredUntil(effectiveAt)
	default:
		return builder
	}
}
