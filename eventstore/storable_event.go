package eventstore

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidPayloadJSON = errors.New("payload json is not valid")
var ErrInvalidMetadataJSON = errors.New("metadata json is not valid")
var ErrEmptyEventType = errors.New("empty event type supplied")
var ErrEmptyAggregateID = errors.New("empty aggregate id supplied")

// StorableEvents is an alias type for a slice of StorableEvent.
type StorableEvents = []StorableEvent

// StorableEvent is a DTO (data transfer object) used by the EventStore to append events and to query them back.
//
// It is built on scalars to be completely agnostic of the implementation of Domain Events in the client code.
//
// InsertionID is assigned by the store at write time and is zero until the event is persisted.
// SequenceNumber carries the ID of the Action that produced the event; an empty SequenceNumber
// is stored as NULL and marks an event that can never be targeted by an edit or a delete.
// Tombstoned events stay in storage for audit purposes but are excluded from default queries.
//
// While its properties are exported, it should only be constructed with the supplied factory methods:
//   - BuildStorableEvent
//   - BuildStorableEventWithEmptyMetadata
type StorableEvent struct {
	InsertionID    int64
	EventType      string
	AggregateID    string
	OccurredAt     time.Time
	SequenceNumber string
	PayloadJSON    []byte
	MetadataJSON   []byte
	Tombstoned     bool
}

// BuildStorableEvent is a factory method to create a StorableEvent with full metadata support.
//
// Returns an error if eventType or aggregateID are empty, or if payloadJSON or metadataJSON
// contain invalid JSON.
func BuildStorableEvent(
	eventType string,
	aggregateID string,
	occurredAt time.Time,
	sequenceNumber string,
	payloadJSON []byte,
	metadataJSON []byte,
) (StorableEvent, error) {

	if eventType == "" {
		return StorableEvent{}, ErrEmptyEventType
	}

	if aggregateID == "" {
		return StorableEvent{}, ErrEmptyAggregateID
	}

	if !json.Valid(payloadJSON) {
		return StorableEvent{}, ErrInvalidPayloadJSON
	}

	if !json.Valid(metadataJSON) {
		return StorableEvent{}, ErrInvalidMetadataJSON
	}

	return StorableEvent{
		EventType:      eventType,
		AggregateID:    aggregateID,
		OccurredAt:     occurredAt,
		SequenceNumber: sequenceNumber,
		PayloadJSON:    payloadJSON,
		MetadataJSON:   metadataJSON,
	}, nil
}

// BuildStorableEventWithEmptyMetadata is a factory method to create a StorableEvent with empty metadata.
//
// Returns an error if eventType or aggregateID are empty, or if payloadJSON contains invalid JSON.
func BuildStorableEventWithEmptyMetadata(
	eventType string,
	aggregateID string,
	occurredAt time.Time,
	sequenceNumber string,
	payloadJSON []byte,
) (StorableEvent, error) {

	return BuildStorableEvent(eventType, aggregateID, occurredAt, sequenceNumber, payloadJSON, []byte(`{}`))
}
