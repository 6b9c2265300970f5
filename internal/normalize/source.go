// Package normalize converts the two native activity event models into ActivityChangeEvents.
//
// A continuous source receives the current dominant activity at OS-chosen intervals and has no
// notion of enter or exit; it synthesizes ENTER events on classification change. A discrete source
// receives batches of already-discrete enter/exit transitions and forwards them unchanged in
// arrival order. Both terminate at the same Sink.
package normalize

import (
	"time"

	"example.com/motion/internal/domain"
)

// Source names used as dispatch labels.
const (
	SourceContinuous = "continuous"
	SourceDiscrete   = "discrete"
	SourceSimulated  = "simulated"
)

// Sink is the dispatch point every source terminates at.
type Sink interface {
	Emit(source string, events ...domain.ActivityChangeEvent) int
}

// Source is a transition source variant.
type Source interface {
	// Name returns the dispatch label of the source.
	Name() string
	// Reset forgets any state carried between native deliveries.
	Reset()
}

type clock func() time.Time

func timestampOrNow(t time.Time, now clock) float64 {
	if t.IsZero() {
		t = now()
	}
	return domain.EpochSeconds(t)
}
