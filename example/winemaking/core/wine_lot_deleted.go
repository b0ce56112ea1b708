package core

import "time"

// WineLotDeletedEventType is the event type identifier.
const WineLotDeletedEventType = "WINE_LOT_DELETED"

// WineLotDeleted represents the soft deletion of a wine lot. Code carries the
// replacement code with the deletion marker already appended, so every fold of
// the event yields the same state.
type WineLotDeleted struct {
	AggregateID string    `json:"aggregate_id"`
	Code        string    `json:"code"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BuildWineLotDeleted creates a new WineLotDeleted event.
func BuildWineLotDeleted(aggregateID string, code string, occurredAt time.Time) WineLotDeleted {
	event := WineLotDeleted{
		AggregateID: aggregateID,
		Code:        code,
		OccurredAt:  occurredAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e WineLotDeleted) IsEventType() string {
	return WineLotDeletedEventType
}

// HasAggregateID returns the ID of the wine lot.
func (e WineLotDeleted) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e WineLotDeleted) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the empty sequence number; deletion belongs to no action.
func (e WineLotDeleted) HasSequenceNumber() string {
	return ""
}
