package core

import "time"

// WineLotUpdatedEventType is the event type identifier.
const WineLotUpdatedEventType = "WINE_LOT_UPDATED"

// WineLotUpdated represents a change of a wine lot's code.
type WineLotUpdated struct {
	AggregateID string              `json:"aggregate_id"`
	Code        ValueChange[string] `json:"code"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// BuildWineLotUpdated creates a new WineLotUpdated event.
func BuildWineLotUpdated(aggregateID string, code ValueChange[string], occurredAt time.Time) WineLotUpdated {
	event := WineLotUpdated{
		AggregateID: aggregateID,
		Code:        code,
		OccurredAt:  occurredAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e WineLotUpdated) IsEventType() string {
	return WineLotUpdatedEventType
}

// HasAggregateID returns the ID of the wine lot.
func (e WineLotUpdated) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e WineLotUpdated) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the empty sequence number; code updates belong to no action.
func (e WineLotUpdated) HasSequenceNumber() string {
	return ""
}
