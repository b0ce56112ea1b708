package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeMovedEventType is the event type identifier.
const VolumeMovedEventType = "VOLUME_MOVED"

// VolumeMoved represents volume leaving a wine lot towards another lot,
// typically as one side of a blend.
type VolumeMoved struct {
	AggregateID string          `json:"aggregate_id"`
	ActionID    string          `json:"action_id"`
	Volume      decimal.Decimal `json:"volume"`
	ToWineLotID string          `json:"to_wine_lot_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// BuildVolumeMoved creates a new VolumeMoved event.
func BuildVolumeMoved(
	aggregateID string,
	actionID string,
	volume decimal.Decimal,
	toWineLotID string,
	occurredAt time.Time,
) VolumeMoved {

	event := VolumeMoved{
		AggregateID: aggregateID,
		ActionID:    actionID,
		Volume:      volume,
		ToWineLotID: toWineLotID,
		OccurredAt:  occurredAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e VolumeMoved) IsEventType() string {
	return VolumeMovedEventType
}

// HasAggregateID returns the ID of the wine lot the volume leaves.
func (e VolumeMoved) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e VolumeMoved) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the ID of the action that produced this event.
func (e VolumeMoved) HasSequenceNumber() string {
	return e.ActionID
}
