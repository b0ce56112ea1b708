package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeBottledEventType is the event type identifier.
const VolumeBottledEventType = "VOLUME_BOTTLED"

// VolumeBottled represents volume leaving a wine lot into bottles.
type VolumeBottled struct {
	AggregateID string          `json:"aggregate_id"`
	ActionID    string          `json:"action_id"`
	Volume      decimal.Decimal `json:"volume"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// BuildVolumeBottled creates a new VolumeBottled event.
func BuildVolumeBottled(aggregateID string, actionID string, volume decimal.Decimal, occurredAt time.Time) VolumeBottled {
	event := VolumeBottled{
		AggregateID: aggregateID,
		ActionID:    actionID,
		Volume:      volume,
		OccurredAt:  occurredAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e VolumeBottled) IsEventType() string {
	return VolumeBottledEventType
}

// HasAggregateID returns the ID of the wine lot.
func (e VolumeBottled) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e VolumeBottled) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the ID of the action that produced this event.
func (e VolumeBottled) HasSequenceNumber() string {
	return e.ActionID
}
