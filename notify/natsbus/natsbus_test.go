package natsbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarstreams/mutable-eventstore-go/notify/natsbus"
	"github.com/cellarstreams/mutable-eventstore-go/testutil"
)

func Test_Sink_Publishes_Committed_Events_To_JetStream(t *testing.T) {
	// setup
	embedded, err := natsbus.StartEmbeddedServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(embedded.Shutdown)

	config := natsbus.DefaultConfig()
	config.URL = embedded.URL()

	sink, err := natsbus.NewSink(config)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	// arrange: an independent JetStream subscription on the event subject
	nc, err := nats.Connect(embedded.URL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)

	subscription, err := js.SubscribeSync("events.VolumeReceived")
	require.NoError(t, err)

	// act
	occurredAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	event := testutil.FixtureStorableEvent(t, "VolumeReceived", "agg-1", occurredAt, "01AAAA")
	event.InsertionID = 42

	require.NoError(t, sink.Publish(context.Background(), event))

	// assert
	msg, err := subscription.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "events.VolumeReceived", msg.Subject)
	assert.Contains(t, string(msg.Data), `"aggregate_id":"agg-1"`)
	assert.Contains(t, string(msg.Data), `"sequence_number":"01AAAA"`)
}

func Test_Sink_Deduplicates_Redeliveries_By_InsertionID(t *testing.T) {
	// setup
	embedded, err := natsbus.StartEmbeddedServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(embedded.Shutdown)

	config := natsbus.DefaultConfig()
	config.URL = embedded.URL()

	sink, err := natsbus.NewSink(config)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	nc, err := nats.Connect(embedded.URL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)

	subscription, err := js.SubscribeSync("events.VolumeBottled")
	require.NoError(t, err)

	// act: publish the same committed event twice
	event := testutil.FixtureStorableEvent(t, "VolumeBottled", "agg-1", time.Now().UTC(), "01BBBB")
	event.InsertionID = 7

	require.NoError(t, sink.Publish(context.Background(), event))
	require.NoError(t, sink.Publish(context.Background(), event))

	// assert: JetStream keeps one copy
	_, err = subscription.NextMsg(5 * time.Second)
	require.NoError(t, err)

	_, err = subscription.NextMsg(500 * time.Millisecond)
	assert.Error(t, err, "the redelivery must be deduplicated")
}

func Test_NewSink_Fails_When_The_Server_Is_Unreachable(t *testing.T) {
	// arrange
	config := natsbus.DefaultConfig()
	config.URL = "nats://127.0.0.1:1"

	// act
	_, err := natsbus.NewSink(config)

	// assert
	assert.ErrorIs(t, err, natsbus.ErrConnectFailed)
}
