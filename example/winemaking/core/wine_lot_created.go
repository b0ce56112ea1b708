package core

import "time"

// WineLotCreatedEventType is the event type identifier.
const WineLotCreatedEventType = "WINE_LOT_CREATED"

// WineLotCreationTime is the forced timestamp of every creation event. Pinning
// creation to the epoch keeps it at the front of the stream no matter how far
// back later actions are dated.
var WineLotCreationTime = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// WineLotCreated represents the creation of a wine lot with its initial composition.
type WineLotCreated struct {
	AggregateID string            `json:"aggregate_id"`
	Code        string            `json:"code"`
	Components  []ComponentAmount `json:"components"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// BuildWineLotCreated creates a new WineLotCreated event.
func BuildWineLotCreated(aggregateID string, code string, components []ComponentAmount) WineLotCreated {
	event := WineLotCreated{
		AggregateID: aggregateID,
		Code:        code,
		Components:  components,
		OccurredAt:  WineLotCreationTime,
	}

	return event
}

// IsEventType returns the event type identifier.
func (e WineLotCreated) IsEventType() string {
	return WineLotCreatedEventType
}

// HasAggregateID returns the ID of the wine lot.
func (e WineLotCreated) HasAggregateID() string {
	return e.AggregateID
}

// HasOccurredAt returns when this event occurred.
func (e WineLotCreated) HasOccurredAt() time.Time {
	return e.OccurredAt
}

// HasSequenceNumber returns the empty sequence number; creation belongs to no action.
func (e WineLotCreated) HasSequenceNumber() string {
	return ""
}

// Composition returns the initial composition of the wine lot.
func (e WineLotCreated) Composition() Composition {
	return BuildComposition(e.Components)
}
