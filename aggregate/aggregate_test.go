package aggregate_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarstreams/mutable-eventstore-go/aggregate"
	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/testutil"
	"github.com/cellarstreams/mutable-eventstore-go/uow"
)

var codec = jsoniter.ConfigFastest

const counterIncrementedEventType = "COUNTER_INCREMENTED"

var errCounterLimitReached = errors.New("counter limit reached")

type counterIncremented struct {
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	By          int       `json:"by"`
}

func (e counterIncremented) IsEventType() string       { return counterIncrementedEventType }
func (e counterIncremented) HasAggregateID() string    { return e.AggregateID }
func (e counterIncremented) HasOccurredAt() time.Time  { return e.OccurredAt }
func (e counterIncremented) HasSequenceNumber() string { return "" }

// counter is a minimal aggregate exercising the root machinery.
type counter struct {
	root  *aggregate.Root
	value int
	limit int
}

func newCounter(id string, limit int, store eventstore.Store) *counter {
	c := &counter{limit: limit}
	c.root = aggregate.NewRoot(c, "counter", id, store)

	c.root.RegisterHandler(counterIncrementedEventType, func(event aggregate.Event) error {
		incremented, ok := event.(counterIncremented)
		if !ok {
			return errors.New("unexpected event type")
		}

		c.value += incremented.By

		return nil
	})

	c.root.RegisterValidator(counterIncrementedEventType, func(event aggregate.Event) error {
		incremented, ok := event.(counterIncremented)
		if !ok {
			return errors.New("unexpected event type")
		}

		if c.value+incremented.By > c.limit {
			return errCounterLimitReached
		}

		return nil
	})

	c.root.RegisterDecoder(counterIncrementedEventType, func(storable eventstore.StorableEvent) (aggregate.Event, error) {
		var event counterIncremented
		if err := codec.Unmarshal(storable.PayloadJSON, &event); err != nil {
			return nil, err
		}

		return event, nil
	})

	return c
}

func (c *counter) StateJSON() (json.RawMessage, error) {
	return codec.Marshal(map[string]int{"value": c.value})
}

func (c *counter) increment(ctx context.Context, by int) error {
	return c.root.Apply(ctx, counterIncremented{
		AggregateID: c.root.AggregateID(),
		OccurredAt:  time.Now().UTC(),
		By:          by,
	})
}

func Test_Load_Folds_Registered_Events(t *testing.T) {
	// setup
	c := newCounter("counter-1", 100, testutil.GivenMemoryStore(t))

	// act
	err := c.root.Load(counterIncremented{AggregateID: "counter-1", By: 3})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, c.value)
}

func Test_Load_Returns_UnhandledEventKind_For_Unknown_Types(t *testing.T) {
	// setup
	c := newCounter("counter-1", 100, testutil.GivenMemoryStore(t))

	// act
	err := c.root.Load(unknownEvent{})

	// assert
	assert.ErrorIs(t, err, aggregate.ErrUnhandledEventKind)
}

type unknownEvent struct{}

func (e unknownEvent) IsEventType() string       { return "UNKNOWN" }
func (e unknownEvent) HasAggregateID() string    { return "agg-1" }
func (e unknownEvent) HasOccurredAt() time.Time  { return time.Time{} }
func (e unknownEvent) HasSequenceNumber() string { return "" }

func Test_Load_Runs_The_Validator_Before_The_Handler(t *testing.T) {
	// setup
	c := newCounter("counter-1", 5, testutil.GivenMemoryStore(t))

	// act
	err := c.root.Load(counterIncremented{AggregateID: "counter-1", By: 10})

	// assert: the handler never ran
	assert.ErrorIs(t, err, errCounterLimitReached)
	assert.Equal(t, 0, c.value)
}

func Test_Apply_Outside_A_UnitOfWork_Scope_Fails(t *testing.T) {
	// setup
	c := newCounter("counter-1", 100, testutil.GivenMemoryStore(t))

	// act
	err := c.increment(context.Background(), 1)

	// assert
	assert.ErrorIs(t, err, uow.ErrNoActiveUnitOfWork)
}

func Test_Apply_Records_The_Event_And_Persists_The_Aggregate_On_Commit(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)
	c := newCounter("counter-1", 100, es)

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		if incErr := c.increment(ctx, 2); incErr != nil {
			return incErr
		}

		return c.increment(ctx, 3)
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 5, c.value)

	events, err := es.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, err)
	assert.Len(t, events, 2)

	stored, err := es.LoadAggregate(ctx, "counter-1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), stored.Version, "two applies in one scope persist the state once")
	assert.JSONEq(t, `{"value":5}`, string(stored.StateJSON))
}

func Test_Apply_Of_A_NonPersistable_Aggregate_Records_Events_But_No_State(t *testing.T) {
	// setup
	ctx := context.Background()
	es := testutil.GivenMemoryStore(t)
	manager := uow.NewManager(es)
	c := newCounter("counter-1", 100, es)
	c.root.MarkNonPersistable()

	// act
	err := manager.Execute(ctx, func(ctx context.Context) error {
		return c.increment(ctx, 1)
	})

	// assert
	require.NoError(t, err)

	events, err := es.Query(ctx, eventstore.BuildEventFilter().MatchingAnyEvent())
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = es.LoadAggregate(ctx, "counter-1")
	assert.ErrorIs(t, err, eventstore.ErrAggregateNotFound)
}

func Test_DecodeStorable_Roundtrips_Registered_Events(t *testing.T) {
	// setup
	c := newCounter("counter-1", 100, testutil.GivenMemoryStore(t))

	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	original := counterIncremented{AggregateID: "counter-1", OccurredAt: occurredAt, By: 7}

	payload, err := codec.Marshal(original)
	require.NoError(t, err)

	storable, err := eventstore.BuildStorableEventWithEmptyMetadata(
		counterIncrementedEventType, "counter-1", occurredAt, "", payload)
	require.NoError(t, err)

	// act
	decoded, err := c.root.DecodeStorable(storable)

	// assert
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	// act + assert: unknown types are rejected
	storable.EventType = "UNKNOWN"
	_, err = c.root.DecodeStorable(storable)
	assert.ErrorIs(t, err, aggregate.ErrUnhandledEventKind)
}

func Test_Backdating_And_Persistence_Flags(t *testing.T) {
	// setup
	c := newCounter("counter-1", 100, testutil.GivenMemoryStore(t))

	// assert defaults
	assert.False(t, c.root.Backdated())

	// act
	c.root.MarkForBackdating()

	// assert
	assert.True(t, c.root.Backdated())
}
