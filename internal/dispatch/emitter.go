// Package dispatch delivers normalized activity events to registered listeners.
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"example.com/motion/internal/domain"
)

// Listener receives one event per call.
type Listener func(domain.ActivityChangeEvent)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id       uint64
	listener Listener
	active   atomic.Bool
	emitter  *Emitter
}

// ID identifies the subscription within its emitter.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Remove stops delivery to the listener. Events dispatched after Remove returns never reach it.
func (s *Subscription) Remove() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.emitter.remove(s.id)
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithLogger overrides the logger used to report listener panics.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// Emitter is the single dispatch point shared by every transition source. Dispatch is
// fire-and-forget: with no listeners the events are dropped, never queued.
type Emitter struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []*Subscription
	logger    zerolog.Logger
}

// NewEmitter constructs an Emitter with no listeners.
func NewEmitter(opts ...Option) *Emitter {
	e := &Emitter{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers listener and returns its subscription.
func (e *Emitter) Subscribe(listener Listener) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	sub := &Subscription{id: e.nextID, listener: listener, emitter: e}
	sub.active.Store(true)
	e.listeners = append(e.listeners, sub)
	listenersGauge.Inc()
	return sub
}

// Len reports the number of active listeners.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

// Emit delivers events, in order, to every listener registered at call time and returns
// the number of listeners reached.
func (e *Emitter) Emit(source string, events ...domain.ActivityChangeEvent) int {
	if len(events) == 0 {
		return 0
	}

	e.mu.RLock()
	snapshot := make([]*Subscription, len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.RUnlock()

	if len(snapshot) == 0 {
		droppedCounter.WithLabelValues(source).Add(float64(len(events)))
		return 0
	}

	for _, event := range events {
		for _, sub := range snapshot {
			if !sub.active.Load() {
				continue
			}
			e.deliver(sub, event)
		}
		dispatchedCounter.WithLabelValues(source, string(event.ActivityType), string(event.TransitionType)).Inc()
	}
	return len(snapshot)
}

func (e *Emitter) deliver(sub *Subscription, event domain.ActivityChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Uint64("subscription", sub.id).Interface("panic", r).Msg("listener panicked")
		}
	}()
	sub.listener(event)
}

func (e *Emitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, sub := range e.listeners {
		if sub.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			listenersGauge.Dec()
			return
		}
	}
}

// Close removes every listener.
func (e *Emitter) Close() {
	e.mu.Lock()
	subs := e.listeners
	e.listeners = nil
	e.mu.Unlock()

	for _, sub := range subs {
		if sub.active.CompareAndSwap(true, false) {
			listenersGauge.Dec()
		}
	}
}
