package forward

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/wire"
)

type stubWriter struct {
	mu   sync.Mutex
	err  error
	msgs []kafka.Message
}

func (w *stubWriter) WriteMessages(_ context.Context, _ string, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) snapshot() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestForwarderWritesEventsInOrder(t *testing.T) {
	w := &stubWriter{}
	f := New(w, "motion.events", "device-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	first := domain.ActivityChangeEvent{ActivityType: domain.ActivityWalking, TransitionType: domain.TransitionEnter, Confidence: domain.ConfidenceHigh, Timestamp: 100}
	second := domain.ActivityChangeEvent{ActivityType: domain.ActivityRunning, TransitionType: domain.TransitionEnter, Confidence: domain.ConfidenceLow, Timestamp: 101}
	f.Listen(first)
	f.Listen(second)

	require.Eventually(t, func() bool { return len(w.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	msgs := w.snapshot()
	for i, want := range []domain.ActivityChangeEvent{first, second} {
		id, payload, err := wire.Decode(msgs[i].Value)
		require.NoError(t, err)
		require.Equal(t, wire.SchemaActivityEvent, id)

		var got domain.ActivityChangeEvent
		require.NoError(t, json.Unmarshal(payload, &got))
		require.Equal(t, want, got)

		eventType, ok := wire.HeaderValue(msgs[i], wire.HeaderEventType)
		require.True(t, ok)
		require.Equal(t, EventTypeActivityChanged, string(eventType))
		require.Equal(t, "device-1", string(msgs[i].Key))
	}
}

func TestListenDropsWhenBufferFull(t *testing.T) {
	f := New(&stubWriter{}, "motion.events", "device-1", WithBufferSize(1))
	before := testutil.ToFloat64(droppedCounter)

	f.Listen(domain.ActivityChangeEvent{ActivityType: domain.ActivityWalking})
	f.Listen(domain.ActivityChangeEvent{ActivityType: domain.ActivityRunning})

	require.Equal(t, before+1, testutil.ToFloat64(droppedCounter))
}

func TestWriteFailureIsCountedAndLoopContinues(t *testing.T) {
	w := &stubWriter{err: errors.New("broker down")}
	f := New(w, "motion.events", "device-1")
	before := testutil.ToFloat64(failedCounter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx) }()

	f.Listen(domain.ActivityChangeEvent{ActivityType: domain.ActivityCycling})
	require.Eventually(t, func() bool { return testutil.ToFloat64(failedCounter) == before+1 }, time.Second, 5*time.Millisecond)
}

func TestWithSchemaIDFramesRegistryID(t *testing.T) {
	w := &stubWriter{}
	f := New(w, "motion.events", "device-1", WithSchemaID(42))

	err := f.write(context.Background(), []domain.ActivityChangeEvent{{ActivityType: domain.ActivityCycling, TransitionType: domain.TransitionExit, Confidence: domain.ConfidenceMedium}})
	require.NoError(t, err)

	id, _, err := wire.Decode(w.snapshot()[0].Value)
	require.NoError(t, err)
	require.Equal(t, 42, id)
}
