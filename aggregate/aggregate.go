// Package aggregate provides the event-sourced aggregate root: an explicit handler
// registry per instance, a pure Load fold for replays, and an Apply write path that
// records events and state snapshots into the active unit of work.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/uow"
)

var marshal = jsoniter.ConfigFastest

// ErrUnhandledEventKind is returned when an event type reaches an aggregate that has
// no handler or decoder registered for it.
var ErrUnhandledEventKind = errors.New("no handler registered for event kind")

// Event is implemented by all domain events of an aggregate.
type Event interface {
	IsEventType() string
	HasAggregateID() string
	HasOccurredAt() time.Time
	HasSequenceNumber() string
}

// Handler folds one event into the aggregate state. Handlers must be pure state
// transitions; they run on the write path and on every replay.
type Handler func(event Event) error

// Validator checks the context of an event against the current aggregate state before
// it is folded. Any check that can be invalidated by editing an upstream action MUST
// live in a validator, not in the command, so that downstream reapply re-runs it.
type Validator func(event Event) error

// Decoder rebuilds a typed domain event from its stored form.
type Decoder func(storable eventstore.StorableEvent) (Event, error)

// Snapshotter is the part of the owning aggregate the Root needs for persistence:
// the serialized current state.
type Snapshotter interface {
	StateJSON() (json.RawMessage, error)
}

// Root carries the event-sourcing machinery of one aggregate instance: identity,
// optimistic-lock version, the handler/validator/decoder registry, and the store
// responsible for the aggregate's events and state.
//
// Concrete aggregates embed a *Root and register their handlers at construction.
type Root struct {
	owner         Snapshotter
	aggregateType string
	aggregateID   string
	version       uint
	store         eventstore.Store
	handlers      map[string]Handler
	validators    map[string]Validator
	decoders      map[string]Decoder
	backdated     bool
	persistable   bool
}

// NewRoot creates the root for one aggregate instance.
// The owner provides the state snapshot persisted by the unit of work.
func NewRoot(owner Snapshotter, aggregateType string, aggregateID string, store eventstore.Store) *Root {
	return &Root{
		owner:         owner,
		aggregateType: aggregateType,
		aggregateID:   aggregateID,
		store:         store,
		handlers:      make(map[string]Handler),
		validators:    make(map[string]Validator),
		decoders:      make(map[string]Decoder),
		persistable:   true,
	}
}

// RegisterHandler registers the state transition for one event type.
func (r *Root) RegisterHandler(eventType string, handler Handler) {
	r.handlers[eventType] = handler
}

// RegisterValidator registers the context validation for one event type.
func (r *Root) RegisterValidator(eventType string, validator Validator) {
	r.validators[eventType] = validator
}

// RegisterDecoder registers the decoder rebuilding typed events of one event type
// from their stored form.
func (r *Root) RegisterDecoder(eventType string, decoder Decoder) {
	r.decoders[eventType] = decoder
}

// AggregateType returns the aggregate's type name.
func (r *Root) AggregateType() string {
	return r.aggregateType
}

// AggregateID returns the aggregate's identity.
func (r *Root) AggregateID() string {
	return r.aggregateID
}

// Version returns the optimistic-lock version: the number of successful persists so
// far, zero for a never persisted aggregate.
func (r *Root) Version() uint {
	return r.version
}

// SetVersion sets the optimistic-lock version, used when reconstructing an aggregate
// from its stored state row.
func (r *Root) SetVersion(version uint) {
	r.version = version
}

// Store returns the event store responsible for this aggregate.
func (r *Root) Store() eventstore.Store {
	return r.store
}

// MarkForBackdating flags the aggregate as acted upon before its recorded creation.
// Validators can consult Backdated to relax checks that assume a fully created state.
func (r *Root) MarkForBackdating() {
	r.backdated = true
}

// Backdated reports whether the aggregate was marked for backdating.
func (r *Root) Backdated() bool {
	return r.backdated
}

// MarkNonPersistable excludes the aggregate from unit-of-work persistence. Used for
// read-only point-in-time reconstructions.
func (r *Root) MarkNonPersistable() {
	r.persistable = false
}

// Load folds one event into the aggregate state without recording anything: the
// registered validator (if any) runs first, then the handler.
// Returns ErrUnhandledEventKind when no handler is registered for the event's type.
func (r *Root) Load(event Event) error {
	eventType := event.IsEventType()

	handler, found := r.handlers[eventType]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnhandledEventKind, eventType)
	}

	if validator, hasValidator := r.validators[eventType]; hasValidator {
		if err := validator(event); err != nil {
			return err
		}
	}

	return handler(event)
}

// Apply folds one event into the aggregate state and records it, together with the
// aggregate itself, into the active unit of work.
// Returns uow.ErrNoActiveUnitOfWork when called outside an Execute scope.
func (r *Root) Apply(ctx context.Context, event Event) error {
	scope, scopeErr := uow.FromContext(ctx)
	if scopeErr != nil {
		return scopeErr
	}

	if err := r.Load(event); err != nil {
		return err
	}

	storable, buildErr := r.buildStorable(event)
	if buildErr != nil {
		return buildErr
	}

	scope.Record(r.store, storable)

	if r.persistable {
		scope.Track(r)
	}

	return nil
}

// DecodeStorable rebuilds the typed domain event from its stored form using the
// registered decoder.
// Returns ErrUnhandledEventKind when no decoder is registered for the event's type.
func (r *Root) DecodeStorable(storable eventstore.StorableEvent) (Event, error) {
	decoder, found := r.decoders[storable.EventType]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEventKind, storable.EventType)
	}

	return decoder(storable)
}

// Snapshot builds the aggregate's current state row for persistence.
func (r *Root) Snapshot() (eventstore.AggregateSnapshot, error) {
	stateJSON, stateErr := r.owner.StateJSON()
	if stateErr != nil {
		return eventstore.AggregateSnapshot{}, stateErr
	}

	return eventstore.BuildAggregateSnapshot(r.aggregateType, r.aggregateID, r.version, stateJSON)
}

func (r *Root) buildStorable(event Event) (eventstore.StorableEvent, error) {
	payloadJSON, marshalErr := marshal.Marshal(event)
	if marshalErr != nil {
		return eventstore.StorableEvent{}, marshalErr
	}

	return eventstore.BuildStorableEventWithEmptyMetadata(
		event.IsEventType(),
		event.HasAggregateID(),
		event.HasOccurredAt(),
		event.HasSequenceNumber(),
		payloadJSON,
	)
}

// Editable is what the mutable-replay engine needs from an aggregate: access to its
// root machinery and the ability to produce a blank copy for rebuilding.
type Editable interface {
	// Root returns the aggregate's event-sourcing root.
	Root() *Root

	// Identity returns a fresh instance with the same ID, version, and store but
	// blank state, ready to be refolded from events.
	Identity() Editable
}

var _ uow.Persistable = (*Root)(nil)
