package core

import "time"

// ActionRecordedEventType is the event type identifier.
const ActionRecordedEventType = "ACTION_RECORDED"

// ActionRecorded represents a cellar action being written down: what happened
// (Details), when it took effect (EffectiveAt), and when it was entered
// (RecordedAt). The two differ when the action is backdated.
type ActionRecorded struct {
	AggregateID string        `json:"aggregate_id"`
	EffectiveAt time.Time     `json:"effective_at"`
	RecordedAt  time.Time     `json:"recorded_at"`
	Details     ActionDetails `json:"details"`
}

// BuildActionRecorded creates a new ActionRecorded event.
func BuildActionRecorded(aggregateID string, effectiveAt time.Time, recordedAt time.Time, details ActionDetails) ActionRecorded {
	event := ActionRecorded{
		AggregateID: aggregateID,
		EffectiveAt: effectiveAt,
		RecordedAt:  recordedAt,
		Details:     details,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e ActionRecorded) IsEventType() string {
	return ActionRecordedEventType
}

// HasAggregateID returns the ID of the action.
func (e ActionRecorded) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred, which is the recording time.
// The action's effect on wine lots is dated by EffectiveAt instead.
func (e ActionRecorded) HasOccurredAt() time.Time {
	return e.RecordedAt
}

// HasSequenceNumber returns the empty sequence number. Action bookkeeping events
// are never produced by an action themselves, so they are never rewound.
func (e ActionRecorded) HasSequenceNumber() string {
	return ""
}
