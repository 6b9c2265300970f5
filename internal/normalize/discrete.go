package normalize

import (
	"time"

	"example.com/motion/internal/domain"
)

// Discrete forwards native enter/exit transition batches.
type Discrete struct {
	sink Sink
	now  clock
}

var _ Source = (*Discrete)(nil)

// NewDiscrete constructs a Discrete source emitting into sink.
func NewDiscrete(sink Sink) *Discrete {
	return &Discrete{sink: sink, now: time.Now}
}

// Name implements Source.
func (d *Discrete) Name() string { return SourceDiscrete }

// Reset implements Source. Discrete sources carry no state between batches.
func (d *Discrete) Reset() {}

// HandleTransitions maps every record of the batch and dispatches them in arrival order.
// The discrete service reports no confidence, so every event carries UNKNOWN.
func (d *Discrete) HandleTransitions(batch []domain.TransitionRecord) []domain.ActivityChangeEvent {
	if len(batch) == 0 {
		return nil
	}

	events := make([]domain.ActivityChangeEvent, 0, len(batch))
	for _, record := range batch {
		events = append(events, domain.ActivityChangeEvent{
			ActivityType:   domain.ActivityFromDetected(record.ActivityCode),
			TransitionType: domain.TransitionFromCode(record.TransitionCode),
			Confidence:     domain.ConfidenceUnknown,
			Timestamp:      timestampOrNow(record.Timestamp, d.now),
		})
	}
	d.sink.Emit(SourceDiscrete, events...)
	return events
}
