// Package natsbus provides a NATS JetStream implementation of the notify.Sink
// interface, for durable fan-out of committed events to external consumers.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"

	"github.com/cellarstreams/mutable-eventstore-go/eventstore"
	"github.com/cellarstreams/mutable-eventstore-go/notify"
)

var json = jsoniter.ConfigFastest

var ErrConnectFailed = errors.New("connecting to nats failed")
var ErrEnsureStreamFailed = errors.New("ensuring jetstream stream failed")
var ErrPublishFailed = errors.New("publishing event failed")

// Config holds configuration for the NATS sink.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream name for events.
	StreamName string

	// StreamSubjects are the subjects the stream captures (default: "events.>").
	StreamSubjects []string

	// MaxAge is how long to retain events in the stream.
	MaxAge time.Duration

	// MaxBytes is the maximum bytes the stream can store.
	MaxBytes int64
}

// DefaultConfig returns sensible defaults for the NATS sink.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		StreamName:     "EVENTS",
		StreamSubjects: []string{"events.>"},
		MaxAge:         7 * 24 * time.Hour,
		MaxBytes:       1024 * 1024 * 1024, // 1 GB
	}
}

// Sink publishes committed events to NATS JetStream. Subjects are derived from the
// event type ("events.<event_type>") and message IDs from the insertion ID, so
// redeliveries deduplicate on the JetStream side.
type Sink struct {
	nc         *nats.Conn
	js         nats.JetStreamContext
	streamName string
}

// NewSink connects to NATS and creates or updates the JetStream stream.
func NewSink(config Config) (*Sink, error) {
	nc, err := nats.Connect(config.URL)
	if err != nil {
		return nil, errors.Join(ErrConnectFailed, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Join(ErrConnectFailed, err)
	}

	sink := &Sink{
		nc:         nc,
		js:         js,
		streamName: config.StreamName,
	}

	if err := sink.ensureStream(config); err != nil {
		nc.Close()
		return nil, err
	}

	return sink, nil
}

// ensureStream creates or updates the JetStream stream.
func (s *Sink) ensureStream(config Config) error {
	streamConfig := &nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  config.StreamSubjects,
		Retention: nats.LimitsPolicy,
		MaxAge:    config.MaxAge,
		MaxBytes:  config.MaxBytes,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}

	stream, err := s.js.StreamInfo(config.StreamName)
	if err != nil {
		if _, addErr := s.js.AddStream(streamConfig); addErr != nil {
			return errors.Join(ErrEnsureStreamFailed, addErr)
		}

		return nil
	}

	if stream.Config.MaxAge != config.MaxAge || stream.Config.MaxBytes != config.MaxBytes {
		if _, updateErr := s.js.UpdateStream(streamConfig); updateErr != nil {
			return errors.Join(ErrEnsureStreamFailed, updateErr)
		}
	}

	return nil
}

// wireEvent is the JSON envelope published to JetStream.
type wireEvent struct {
	InsertionID    int64               `json:"insertion_id"`
	EventType      string              `json:"event_type"`
	AggregateID    string              `json:"aggregate_id"`
	OccurredAt     time.Time           `json:"occurred_at"`
	SequenceNumber string              `json:"sequence_number,omitempty"`
	Payload        jsoniter.RawMessage `json:"payload"`
	Metadata       jsoniter.RawMessage `json:"metadata"`
	Tombstoned     bool                `json:"tombstoned,omitempty"`
}

// Publish publishes one committed event to JetStream.
func (s *Sink) Publish(ctx context.Context, event eventstore.StorableEvent) error {
	data, marshalErr := json.Marshal(wireEvent{
		InsertionID:    event.InsertionID,
		EventType:      event.EventType,
		AggregateID:    event.AggregateID,
		OccurredAt:     event.OccurredAt,
		SequenceNumber: event.SequenceNumber,
		Payload:        jsoniter.RawMessage(event.PayloadJSON),
		Metadata:       jsoniter.RawMessage(event.MetadataJSON),
		Tombstoned:     event.Tombstoned,
	})
	if marshalErr != nil {
		return errors.Join(ErrPublishFailed, marshalErr)
	}

	subject := fmt.Sprintf("events.%s", event.EventType)

	opts := []nats.PubOpt{nats.Context(ctx)}
	if event.InsertionID > 0 {
		opts = append(opts, nats.MsgId(fmt.Sprintf("%d", event.InsertionID)))
	}

	_, publishErr := s.js.Publish(subject, data, opts...)
	if publishErr != nil {
		return errors.Join(ErrPublishFailed, publishErr)
	}

	return nil
}

// Close closes the NATS connection.
func (s *Sink) Close() {
	s.nc.Close()
}

var _ notify.Sink = (*Sink)(nil)
