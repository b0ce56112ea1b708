package eventstore

import (
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidStateJSON is returned when aggregate state JSON is malformed or invalid.
	ErrInvalidStateJSON = errors.New("aggregate state json is not valid")

	// ErrEmptyAggregateType is returned when an empty aggregate type is provided.
	ErrEmptyAggregateType = errors.New("aggregate type must not be empty")
)

// AggregateSnapshot is the stored current state of one aggregate, guarded by an
// optimistic-lock version. Version is the number of successful persists so far;
// zero means the aggregate has never been persisted.
type AggregateSnapshot struct {
	AggregateType string
	AggregateID   string
	Version       uint
	StateJSON     json.RawMessage
}

// BuildAggregateSnapshot creates a new AggregateSnapshot with validation.
func BuildAggregateSnapshot(
	aggregateType string,
	aggregateID string,
	version uint,
	stateJSON json.RawMessage,
) (AggregateSnapshot, error) {

	snapshot := AggregateSnapshot{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       version,
		StateJSON:     stateJSON,
	}

	if err := snapshot.Validate(); err != nil {
		return AggregateSnapshot{}, err
	}

	return snapshot, nil
}

// Validate ensures the snapshot has valid data for storage operations.
func (s AggregateSnapshot) Validate() error {
	if s.AggregateType == "" {
		return ErrEmptyAggregateType
	}

	if s.AggregateID == "" {
		return ErrEmptyAggregateID
	}

	if !json.Valid(s.StateJSON) {
		return ErrInvalidStateJSON
	}

	return nil
}
