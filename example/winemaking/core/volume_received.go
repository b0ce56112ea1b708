package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeReceivedEventType is the event type identifier.
const VolumeReceivedEventType = "VOLUME_RECEIVED"

// VolumeReceived represents volume arriving into a wine lot from outside,
// such as a harvest delivery or a purchase.
type VolumeReceived struct {
	AggregateID string          `json:"aggregate_id"`
	ActionID    string          `json:"action_id"`
	Volume      decimal.Decimal `json:"volume"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// BuildVolumeReceived creates a new VolumeReceived event.
func BuildVolumeReceived(aggregateID string, actionID string, volume decimal.Decimal, occurredAt time.Time) VolumeReceived {
	event := VolumeReceived{
		AggregateID: aggregateID,
		ActionID:    actionID,
		Volume:      volume,
		OccurredAt:  occurredAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e VolumeReceived) IsEventType() string {
	return VolumeReceivedEventType
}

// HasAggregateID returns the ID of the wine lot.
func (e VolumeReceived) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e VolumeReceived) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the ID of the action that produced this event.
func (e VolumeReceived) HasSequenceNumber() string {
	return e.ActionID
}
