package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeBlendedEventType is the event type identifier.
const VolumeBlendedEventType = "VOLUME_BLENDED"

// VolumeBlended represents volume arriving into a wine lot from other lots.
// Volumes maps each contributing lot ID to the amount it gave up; VolumeReceived
// is what actually arrived, which can be less than the sum due to blending losses.
type VolumeBlended struct {
	AggregateID    string                     `json:"aggregate_id"`
	ActionID       string                     `json:"action_id"`
	Volumes        map[string]decimal.Decimal `json:"volumes"`
	VolumeReceived decimal.Decimal            `json:"volume_received"`
	OccurredAt     time.Time                  `json:"occurred_at"`
}

// BuildVolumeBlended creates a new VolumeBlended event.
func BuildVolumeBlended(
	aggregateID string,
	actionID string,
	volumes map[string]decimal.Decimal,
	volumeReceived decimal.Decimal,
	occurredAt time.Time,
) VolumeBlended {

	event := VolumeBlended{
		AggregateID:    aggregateID,
		ActionID:       actionID,
		Volumes:        volumes,
		VolumeReceived: volumeReceived,
		OccurredAt:     occurredAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e VolumeBlended) IsEventType() string {
	return VolumeBlendedEventType
}

// HasAggregateID returns the ID of the receiving wine lot.
func (e VolumeBlended) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e VolumeBlended) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the ID of the action that produced this event.
func (e VolumeBlended) HasSequenceNumber() string {
	return e.ActionID
}
