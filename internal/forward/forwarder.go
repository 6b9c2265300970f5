// Package forward publishes dispatched activity events to a Kafka topic.
package forward

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/motion/internal/broker"
	"example.com/motion/internal/domain"
	"example.com/motion/internal/wire"
)

// EventTypeActivityChanged marks forwarded event records.
const EventTypeActivityChanged = "activity.changed"

const (
	defaultBufferSize = 256
	defaultBatchSize  = 64
)

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithLogger overrides the forwarder logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithBufferSize bounds the number of events waiting to be written.
func WithBufferSize(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.buffer = make(chan domain.ActivityChangeEvent, n)
		}
	}
}

// WithSchemaID overrides the schema id framed into each record, e.g. one resolved from a registry.
func WithSchemaID(id int) Option {
	return func(f *Forwarder) {
		f.schemaID = id
	}
}

// Forwarder buffers events handed to Listen and writes them in batches from Run. Listen never
// blocks: when the buffer is full the event is dropped and counted.
type Forwarder struct {
	writer   broker.MessageWriter
	topic    string
	deviceID string
	schemaID int
	buffer   chan domain.ActivityChangeEvent
	logger   zerolog.Logger
}

// New returns a Forwarder writing to topic.
func New(writer broker.MessageWriter, topic, deviceID string, opts ...Option) *Forwarder {
	f := &Forwarder{
		writer:   writer,
		topic:    topic,
		deviceID: deviceID,
		schemaID: wire.SchemaActivityEvent,
		buffer:   make(chan domain.ActivityChangeEvent, defaultBufferSize),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Listen is a dispatch listener.
func (f *Forwarder) Listen(event domain.ActivityChangeEvent) {
	select {
	case f.buffer <- event:
	default:
		droppedCounter.Inc()
		f.logger.Warn().Str("activity_type", string(event.ActivityType)).Msg("forward buffer full, event dropped")
	}
}

// Run writes buffered events until ctx ends.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-f.buffer:
			batch := f.drain(event)
			if err := f.write(ctx, batch); err != nil {
				failedCounter.Add(float64(len(batch)))
				f.logger.Error().Err(err).Int("events", len(batch)).Msg("forwarding events failed")
				continue
			}
			forwardedCounter.Add(float64(len(batch)))
		}
	}
}

func (f *Forwarder) drain(first domain.ActivityChangeEvent) []domain.ActivityChangeEvent {
	batch := []domain.ActivityChangeEvent{first}
	for len(batch) < defaultBatchSize {
		select {
		case event := <-f.buffer:
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (f *Forwarder) write(ctx context.Context, events []domain.ActivityChangeEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(f.deviceID),
			Value: wire.Encode(f.schemaID, payload),
			Time:  domain.FromEpochSeconds(event.Timestamp).UTC(),
			Headers: []kafka.Header{
				{Key: wire.HeaderEventType, Value: []byte(EventTypeActivityChanged)},
				{Key: wire.HeaderDeviceID, Value: []byte(f.deviceID)},
				{Key: wire.HeaderSchemaSubject, Value: []byte(f.topic + "-value")},
			},
		})
	}

	start := time.Now()
	defer func() { writeLatency.Observe(time.Since(start).Seconds()) }()
	return f.writer.WriteMessages(ctx, f.topic, msgs...)
}
