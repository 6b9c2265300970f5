package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/motion/internal/domain"
)

func TestEmitDeliversBatchInOrder(t *testing.T) {
	emitter := NewEmitter()

	var got []domain.ActivityChangeEvent
	emitter.Subscribe(func(ev domain.ActivityChangeEvent) {
		got = append(got, ev)
	})

	batch := []domain.ActivityChangeEvent{
		{ActivityType: domain.ActivityWalking, TransitionType: domain.TransitionEnter, Confidence: domain.ConfidenceUnknown, Timestamp: 1},
		{ActivityType: domain.ActivityStationary, TransitionType: domain.TransitionExit, Confidence: domain.ConfidenceUnknown, Timestamp: 2},
		{ActivityType: domain.ActivityRunning, TransitionType: domain.TransitionEnter, Confidence: domain.ConfidenceUnknown, Timestamp: 3},
	}

	reached := emitter.Emit("test", batch...)
	require.Equal(t, 1, reached)
	require.Equal(t, batch, got)
}

func TestEmitWithoutListenersDrops(t *testing.T) {
	emitter := NewEmitter()
	before := testutil.ToFloat64(droppedCounter.WithLabelValues("drop-test"))

	reached := emitter.Emit("drop-test", domain.ActivityChangeEvent{ActivityType: domain.ActivityWalking})
	require.Zero(t, reached)
	require.Equal(t, before+1, testutil.ToFloat64(droppedCounter.WithLabelValues("drop-test")))

	// a listener added afterwards sees nothing from before it subscribed
	calls := 0
	emitter.Subscribe(func(domain.ActivityChangeEvent) { calls++ })
	require.Zero(t, calls)
}

func TestRemoveStopsDelivery(t *testing.T) {
	emitter := NewEmitter()

	var removedCalls, keptCalls int
	removed := emitter.Subscribe(func(domain.ActivityChangeEvent) { removedCalls++ })
	emitter.Subscribe(func(domain.ActivityChangeEvent) { keptCalls++ })

	ev := domain.ActivityChangeEvent{ActivityType: domain.ActivityCycling, TransitionType: domain.TransitionEnter}
	emitter.Emit("test", ev)
	removed.Remove()
	removed.Remove()
	emitter.Emit("test", ev, ev)

	require.Equal(t, 1, removedCalls)
	require.Equal(t, 3, keptCalls)
	require.Equal(t, 1, emitter.Len())
}

func TestRemoveInsideBatchSkipsRemainingEvents(t *testing.T) {
	emitter := NewEmitter()

	var sub *Subscription
	calls := 0
	sub = emitter.Subscribe(func(domain.ActivityChangeEvent) {
		calls++
		sub.Remove()
	})

	emitter.Emit("test",
		domain.ActivityChangeEvent{ActivityType: domain.ActivityWalking},
		domain.ActivityChangeEvent{ActivityType: domain.ActivityRunning},
	)
	require.Equal(t, 1, calls)
}

func TestPanickingListenerDoesNotStopOthers(t *testing.T) {
	emitter := NewEmitter()
	emitter.Subscribe(func(domain.ActivityChangeEvent) { panic("boom") })

	calls := 0
	emitter.Subscribe(func(domain.ActivityChangeEvent) { calls++ })

	require.NotPanics(t, func() {
		emitter.Emit("test", domain.ActivityChangeEvent{ActivityType: domain.ActivityWalking})
	})
	require.Equal(t, 1, calls)
}

func TestCloseRemovesAllListeners(t *testing.T) {
	emitter := NewEmitter()
	calls := 0
	sub := emitter.Subscribe(func(domain.ActivityChangeEvent) { calls++ })

	emitter.Close()
	emitter.Emit("test", domain.ActivityChangeEvent{ActivityType: domain.ActivityWalking})
	sub.Remove()

	require.Zero(t, calls)
	require.Zero(t, emitter.Len())
}
