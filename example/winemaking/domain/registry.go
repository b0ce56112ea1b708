package domain

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/cellarstreams/mutable-eventstore-go/aggregate"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
)

var jsonCodec = jsoniter.ConfigFastest

// ErrUnexpectedEventType is returned when a handler receives an event value of a
// different type than the one it was registered for.
var ErrUnexpectedEventType = errors.New("unexpected event type for registered handler")

// handlerFor adapts a typed apply func to the aggregate handler signature.
func handlerFor[E aggregate.Event](apply func(E) error) aggregate.Handler {
	return func(event aggregate.Event) error {
		typed, ok := event.(E)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnexpectedEventType, event)
		}

		return apply(typed)
	}
}

// validatorFor adapts a typed context check to the aggregate validator signature.
func validatorFor[E aggregate.Event](validate func(E) error) aggregate.Validator {
	return func(event aggregate.Event) error {
		typed, ok := event.(E)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnexpectedEventType, event)
		}

		return validate(typed)
	}
}

// decoderFor rebuilds a typed event from the stored JSON payload.
func decoderFor[E aggregate.Event]() aggregate.Decoder {
	return func(storable eventstore.StorableEvent) (aggregate.Event, error) {
		var event E
		if err := jsonCodec.Unmarshal(storable.PayloadJSON, &event); err != nil {
			return nil, err
		}

		return event, nil
	}
}
