package normalize

import (
	"sync"
	"time"

	"example.com/motion/internal/domain"
)

// Continuous adapts a polling activity feed to edge-triggered ENTER events.
type Continuous struct {
	sink Sink
	now  clock

	mu      sync.Mutex
	last    domain.ActivityType
	hasLast bool
}

var _ Source = (*Continuous)(nil)

// NewContinuous constructs a Continuous source emitting into sink.
func NewContinuous(sink Sink) *Continuous {
	return &Continuous{sink: sink, now: time.Now}
}

// Name implements Source.
func (c *Continuous) Name() string { return SourceContinuous }

// Reset clears the last emitted classification so the next sample is a fresh ENTER.
func (c *Continuous) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasLast = false
	c.last = ""
}

// HandleSample diffs the sample against the last emitted classification and dispatches an
// ENTER event only when it changed. The first sample after construction or Reset always
// emits. The returned bool reports whether an event was produced.
//
// Emission happens under the source lock so concurrent samples reach the sink in the order
// they were diffed. Listeners must not feed samples back into the source.
func (c *Continuous) HandleSample(sample domain.MotionSample) (domain.ActivityChangeEvent, bool) {
	activity := sample.Classification()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasLast && c.last == activity {
		return domain.ActivityChangeEvent{}, false
	}
	c.last = activity
	c.hasLast = true

	event := domain.ActivityChangeEvent{
		ActivityType:   activity,
		TransitionType: domain.TransitionEnter,
		Confidence:     domain.ConfidenceFromLevel(sample.Confidence),
		Timestamp:      timestampOrNow(sample.StartDate, c.now),
	}
	c.sink.Emit(SourceContinuous, event)
	return event, true
}
