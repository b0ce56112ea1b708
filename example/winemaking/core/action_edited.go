package core

import "time"

// ActionEditedEventType is the event type identifier.
const ActionEditedEventType = "ACTION_EDITED"

// ActionEdited represents a correction of a recorded action, carrying every
// changed field as a before/after pair.
type ActionEdited struct {
	AggregateID string            `json:"aggregate_id"`
	EditedAt    time.Time         `json:"edited_at"`
	Details     ActionEditDetails `json:"details"`
}

// BuildActionEdited creates a new ActionEdited event.
func BuildActionEdited(aggregateID string, editedAt time.Time, details ActionEditDetails) ActionEdited {
	event := ActionEdited{
		AggregateID: aggregateID,
		EditedAt:    editedAt,
		Details:     details,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e ActionEdited) IsEventType() string {
	return ActionEditedEventType
}

// HasAggregateID returns the ID of the action.
func (e ActionEdited) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e ActionEdited) HasOccurredAt() time.Time {
	return e.EditedAt
}

// HasSequenceNumber returns the empty sequence number.
func (e ActionEdited) HasSequenceNumber() string {
	return ""
}
