// Package platformtest provides scriptable platforms for tests.
package platformtest

import (
	"context"
	"sync"
	"time"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
)

// Base implements platform.Platform with scripted results and call counters.
type Base struct {
	mu sync.Mutex

	Caps           platform.Capabilities
	Status         domain.PermissionStatus
	StatusErr      error
	SubscribeErr   error
	UnsubscribeErr error
	// SubscribeGate, when set, blocks Subscribe until it is closed or ctx ends.
	SubscribeGate chan struct{}

	statusCalls      int
	subscribeCalls   int
	unsubscribeCalls int
}

// SetStatus changes the scripted authorization status.
func (b *Base) SetStatus(s domain.PermissionStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Status = s
}

// Capabilities implements platform.Platform.
func (b *Base) Capabilities() platform.Capabilities {
	return b.Caps
}

// AuthorizationStatus implements platform.Authorizer.
func (b *Base) AuthorizationStatus(context.Context) (domain.PermissionStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls++
	return b.Status, b.StatusErr
}

// Subscribe implements platform.Platform.
func (b *Base) Subscribe(ctx context.Context) error {
	b.mu.Lock()
	b.subscribeCalls++
	gate := b.SubscribeGate
	err := b.SubscribeErr
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Unsubscribe implements platform.Platform.
func (b *Base) Unsubscribe(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribeCalls++
	return b.UnsubscribeErr
}

// StatusCalls returns how often the authorization status was queried.
func (b *Base) StatusCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls
}

// SubscribeCalls returns how often Subscribe was invoked.
func (b *Base) SubscribeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribeCalls
}

// UnsubscribeCalls returns how often Unsubscribe was invoked.
func (b *Base) UnsubscribeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribeCalls
}

// Continuous is a polling-model platform with history support.
type Continuous struct {
	*Base

	History    []domain.HistoricalActivity
	HistoryErr error

	handler platform.SampleHandler
}

// NewContinuous returns a continuous platform with the given initial status.
func NewContinuous(status domain.PermissionStatus) *Continuous {
	return &Continuous{Base: &Base{Caps: platform.Capabilities{Name: "fake-continuous"}, Status: status}}
}

// BindSamples implements platform.SampleProducer.
func (c *Continuous) BindSamples(h platform.SampleHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Deliver pushes a raw sample to the bound handler.
func (c *Continuous) Deliver(s domain.MotionSample) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h.HandleSample(s)
	}
}

// QueryActivities implements platform.HistorySource.
func (c *Continuous) QueryActivities(_ context.Context, _, _ time.Time) ([]domain.HistoricalActivity, error) {
	return c.History, c.HistoryErr
}

// Discrete is a transition-model platform with runtime prompts and a lifecycle receiver.
type Discrete struct {
	*Base

	// GrantOnPrompt is the status applied when the dialog is answered.
	GrantOnPrompt domain.PermissionStatus
	PromptErr     error
	// PromptGate, when set, blocks the dialog until closed.
	PromptGate  chan struct{}
	RegisterErr error
	Services    bool

	handler          platform.TransitionHandler
	prompts          int
	registerCalls    int
	unregisterCalls  int
	receiverAttached bool
}

// NewDiscrete returns a discrete platform with the given initial status.
func NewDiscrete(status domain.PermissionStatus) *Discrete {
	return &Discrete{
		Base: &Base{
			Caps:   platform.Capabilities{Name: "fake-discrete", StopRequiresPermission: true},
			Status: status,
		},
		GrantOnPrompt: domain.PermissionAuthorized,
		Services:      true,
	}
}

// BindTransitions implements platform.TransitionProducer.
func (d *Discrete) BindTransitions(h platform.TransitionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// Broadcast delivers a batch when the receiver is registered and reports whether it was delivered.
func (d *Discrete) Broadcast(batch ...domain.TransitionRecord) bool {
	d.mu.Lock()
	h := d.handler
	attached := d.receiverAttached
	d.mu.Unlock()
	if h == nil || !attached {
		return false
	}
	h.HandleTransitions(batch)
	return true
}

// PromptPermission implements platform.Prompter.
func (d *Discrete) PromptPermission(ctx context.Context) error {
	d.mu.Lock()
	d.prompts++
	gate := d.PromptGate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PromptErr != nil {
		return d.PromptErr
	}
	d.Status = d.GrantOnPrompt
	return nil
}

// RegisterReceiver implements platform.Receiver.
func (d *Discrete) RegisterReceiver(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registerCalls++
	if d.RegisterErr != nil {
		return d.RegisterErr
	}
	d.receiverAttached = true
	return nil
}

// UnregisterReceiver implements platform.Receiver.
func (d *Discrete) UnregisterReceiver(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unregisterCalls++
	d.receiverAttached = false
	return nil
}

// ServicesAvailable implements platform.ServicesProbe.
func (d *Discrete) ServicesAvailable(context.Context) bool {
	return d.Services
}

// Prompts returns how many dialogs were shown.
func (d *Discrete) Prompts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prompts
}

// ReceiverCalls returns register and unregister counts.
func (d *Discrete) ReceiverCalls() (register, unregister int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registerCalls, d.unregisterCalls
}

// ReceiverAttached reports whether the receiver is currently registered.
func (d *Discrete) ReceiverAttached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receiverAttached
}

var (
	_ platform.Platform           = (*Continuous)(nil)
	_ platform.SampleProducer     = (*Continuous)(nil)
	_ platform.HistorySource      = (*Continuous)(nil)
	_ platform.Platform           = (*Discrete)(nil)
	_ platform.TransitionProducer = (*Discrete)(nil)
	_ platform.Prompter           = (*Discrete)(nil)
	_ platform.Receiver           = (*Discrete)(nil)
	_ platform.ServicesProbe      = (*Discrete)(nil)
)
