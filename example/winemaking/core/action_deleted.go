package core

import "time"

// ActionDeletedEventType is the event type identifier.
const ActionDeletedEventType = "ACTION_DELETED"

// ActionDeleted represents the removal of a recorded action from history.
type ActionDeleted struct {
	AggregateID string    `json:"aggregate_id"`
	DeletedAt   time.Time `json:"deleted_at"`
}

// BuildActionDeleted creates a new ActionDeleted event.
func BuildActionDeleted(aggregateID string, deletedAt time.Time) ActionDeleted {
	event := ActionDeleted{
		AggregateID: aggregateID,
		DeletedAt:   deletedAt,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e ActionDeleted) IsEventType() string {
	return ActionDeletedEventType
}

// HasAggregateID returns the ID of the action.
func (e ActionDeleted) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e ActionDeleted) HasOccurredAt() time.Time {
	return e.DeletedAt
}

// HasSequenceNumber returns the empty sequence number.
func (e ActionDeleted) HasSequenceNumber() string {
	return ""
}
