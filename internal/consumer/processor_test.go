package consumer

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/wire"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"transitions":[{"activity_type":7,"transition_type":0}]}`)
	msg := kafka.Message{
		Topic:     "motion.transitions",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Value:     wire.Encode(wire.SchemaTransitionBatch, payload),
		Headers: []kafka.Header{
			{Key: wire.HeaderEventType, Value: []byte(EventTypeTransitions)},
			{Key: wire.HeaderDeviceID, Value: []byte("device-1")},
			{Key: wire.HeaderSchemaSubject, Value: []byte("motion.transitions-value")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, EventTypeTransitions, handler.last.EventType)
	require.Equal(t, "device-1", handler.last.DeviceID)
	require.Equal(t, wire.SchemaTransitionBatch, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:  "motion.transitions",
		Offset: 20,
		Time:   time.Now().UTC(),
		Value:  wire.Encode(wire.SchemaTransitionBatch, []byte(`{"transitions":[]}`)),
		Headers: []kafka.Header{
			{Key: wire.HeaderEventType, Value: []byte(EventTypeTransitions)},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topic := "motion.transitions.malformed"
	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: topic, Value: []byte{0, 1}},
			{Topic: topic, Value: wire.Encode(wire.SchemaTransitionBatch, []byte(`{}`))},
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
	require.Equal(t, float64(2), testutil.ToFloat64(decodeErrorCounter.WithLabelValues(topic)))
}

func TestTransitionHandlerForwardsBatchInOrder(t *testing.T) {
	target := &recordingTarget{}
	h := NewTransitionHandler(target)

	err := h.Handle(context.Background(), Message{
		EventType: EventTypeTransitions,
		SchemaID:  wire.SchemaTransitionBatch,
		Payload:   []byte(`{"transitions":[{"activity_type":7,"transition_type":0},{"activity_type":3,"transition_type":1}]}`),
	})
	require.NoError(t, err)
	require.Equal(t, []domain.TransitionRecord{
		{ActivityCode: domain.DetectedWalking, TransitionCode: domain.NativeTransitionEnter},
		{ActivityCode: domain.DetectedStill, TransitionCode: domain.NativeTransitionExit},
	}, target.batches[0])
}

func TestTransitionHandlerRejectsBadPayloads(t *testing.T) {
	target := &recordingTarget{}
	h := NewTransitionHandler(target)

	require.Error(t, h.Handle(context.Background(), Message{EventType: EventTypeTransitions, SchemaID: wire.SchemaTransitionBatch, Payload: []byte(`{`)}))
	require.Error(t, h.Handle(context.Background(), Message{EventType: EventTypeTransitions, SchemaID: wire.SchemaActivityEvent, Payload: []byte(`{}`)}))
	require.NoError(t, h.Handle(context.Background(), Message{EventType: "device.heartbeat"}))
	require.Empty(t, target.batches)
}

type recordingTarget struct {
	batches [][]domain.TransitionRecord
}

func (r *recordingTarget) HandleTransitions(batch []domain.TransitionRecord) []domain.ActivityChangeEvent {
	r.batches = append(r.batches, batch)
	return nil
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type failingReader struct {
	err     error
	fetches atomic.Int32
}

func (r *failingReader) FetchMessage(context.Context) (kafka.Message, error) {
	r.fetches.Add(1)
	return kafka.Message{}, r.err
}

func (r *failingReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }

func (r *failingReader) Close() error { return nil }

func TestProcessorBacksOffAfterFetchError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	reader := &failingReader{err: io.EOF}
	before := testutil.ToFloat64(fetchErrorCounter)

	err := NewProcessor(reader, &stubHandler{}, WithFetchBackoff(50*time.Millisecond)).Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	fetches := reader.fetches.Load()
	require.GreaterOrEqual(t, fetches, int32(2))
	require.LessOrEqual(t, fetches, int32(4))
	require.Equal(t, before+float64(fetches), testutil.ToFloat64(fetchErrorCounter))
}
