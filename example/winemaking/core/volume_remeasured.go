package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeRemeasuredEventType is the event type identifier.
const VolumeRemeasuredEventType = "VOLUME_REMEASURED"

// VolumeRemeasured represents a fresh measurement replacing the tracked volume
// of a wine lot, for example after topping or evaporation.
type VolumeRemeasured struct {
	AggregateID string          `json:"aggregate_id"`
	ActionID    string          `json:"action_id"`
	Volume      decimal.Decimal `json:"volume"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// BuildVolumeRemeasured creates a new VolumeRemeasured event.
func BuildVolumeRemeasured(aggregateID string, actionID string, volume decimal.Decimal, occurredAt time.Time) VolumeRemeasured {
	event := VolumeRemeasured{
		AggregateID: aggregateID,
		ActionID:    actionID,
		Volume:      volume,
		OccurredAt:  occurredAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e VolumeRemeasured) IsEventType() string {
	return VolumeRemeasuredEventType
}

// HasAggregateID returns the ID of the wine lot.
func (e VolumeRemeasured) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e VolumeRemeasured) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the ID of the action that produced this event.
func (e VolumeRemeasured) HasSequenceNumber() string {
	return e.ActionID
}
