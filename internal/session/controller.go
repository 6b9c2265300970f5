// Package session owns the native activity subscription and keeps it aligned with the host
// application lifecycle.
//
// Start, Stop and the lifecycle hooks are serialized by one mutex, so concurrent calls can
// never double-register the native subscription or the broadcast receiver.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/normalize"
	"example.com/motion/internal/platform"
)

// DefaultRegistrationTimeout bounds a single native registration call.
const DefaultRegistrationTimeout = 15 * time.Second

// ErrClosed is returned by lifecycle hooks after Close.
var ErrClosed = errors.New("session closed")

// StatusResolver yields the current permission state.
type StatusResolver interface {
	Status(ctx context.Context) domain.PermissionStatus
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger overrides the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRegistrationTimeout overrides DefaultRegistrationTimeout. Zero disables the bound and
// a hung native call then blocks until the caller's context ends.
func WithRegistrationTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.registrationTimeout = d
	}
}

// Controller drives the start/stop state machine:
//
//	STOPPED -> Start -> STARTED | FAILED | UNAUTHORIZED
//	STARTED -> Stop  -> STOPPED | FAILED | UNAUTHORIZED
type Controller struct {
	platform            platform.Platform
	receiver            platform.Receiver
	perms               StatusResolver
	source              normalize.Source
	registrationTimeout time.Duration
	logger              zerolog.Logger

	mu                 sync.Mutex
	subscribed         bool
	receiverRegistered bool
	foreground         bool
	closed             bool
}

// New constructs a Controller. The receiver is taken from p when it implements platform.Receiver.
func New(p platform.Platform, perms StatusResolver, source normalize.Source, opts ...Option) *Controller {
	c := &Controller{
		platform:            p,
		perms:               perms,
		source:              source,
		registrationTimeout: DefaultRegistrationTimeout,
		logger:              zerolog.Nop(),
	}
	if r, ok := p.(platform.Receiver); ok {
		c.receiver = r
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open marks the host as foreground and registers the receiver.
func (c *Controller) Open(ctx context.Context) error {
	return c.EnterForeground(ctx)
}

// Start checks permission, then registers the native subscription. Calling Start while already
// started returns STARTED without subscribing twice.
func (c *Controller) Start(ctx context.Context) domain.TrackingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.start(ctx)
	trackingCounter.WithLabelValues("start", string(status)).Inc()
	return status
}

func (c *Controller) start(ctx context.Context) domain.TrackingStatus {
	if perm := c.perms.Status(ctx); perm != domain.PermissionAuthorized {
		c.logger.Info().Str("permission", string(perm)).Msg("start refused without authorization")
		return domain.TrackingUnauthorized
	}
	if c.closed {
		return domain.TrackingFailed
	}

	if c.foreground {
		if err := c.registerReceiver(ctx); err != nil {
			c.logger.Error().Err(err).Msg("receiver registration failed")
			return domain.TrackingFailed
		}
	}

	if c.subscribed {
		return domain.TrackingStarted
	}

	rctx, cancel := c.registrationContext(ctx)
	defer cancel()
	if err := c.platform.Subscribe(rctx); err != nil {
		c.logger.Error().Err(err).Str("platform", c.platform.Capabilities().Name).Msg("activity subscription failed")
		return domain.TrackingFailed
	}

	c.subscribed = true
	c.source.Reset()
	c.logger.Info().Str("platform", c.platform.Capabilities().Name).Msg("activity tracking started")
	return domain.TrackingStarted
}

// Stop removes the native subscription. The receiver stays registered; it follows the lifecycle.
func (c *Controller) Stop(ctx context.Context) domain.TrackingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.stop(ctx)
	trackingCounter.WithLabelValues("stop", string(status)).Inc()
	return status
}

func (c *Controller) stop(ctx context.Context) domain.TrackingStatus {
	if c.platform.Capabilities().StopRequiresPermission {
		if perm := c.perms.Status(ctx); perm != domain.PermissionAuthorized {
			return domain.TrackingUnauthorized
		}
	}

	rctx, cancel := c.registrationContext(ctx)
	defer cancel()
	if err := c.platform.Unsubscribe(rctx); err != nil {
		c.logger.Error().Err(err).Str("platform", c.platform.Capabilities().Name).Msg("activity unsubscription failed")
		return domain.TrackingFailed
	}

	c.subscribed = false
	c.source.Reset()
	c.logger.Info().Str("platform", c.platform.Capabilities().Name).Msg("activity tracking stopped")
	return domain.TrackingStopped
}

// EnterForeground (re-)registers the receiver.
func (c *Controller) EnterForeground(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.foreground = true
	return c.registerReceiver(ctx)
}

// EnterBackground unregisters the receiver so no process-wide registration leaks.
func (c *Controller) EnterBackground(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.foreground = false
	return c.unregisterReceiver(ctx)
}

// Close unregisters the receiver and any live subscription. Later Start calls return FAILED.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.subscribed {
		rctx, cancel := c.registrationContext(ctx)
		if err := c.platform.Unsubscribe(rctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
		c.subscribed = false
	}
	if err := c.unregisterReceiver(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Tracking reports whether the native subscription is registered.
func (c *Controller) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// ReceiverRegistered reports whether the lifecycle receiver is registered.
func (c *Controller) ReceiverRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiverRegistered
}

func (c *Controller) registerReceiver(ctx context.Context) error {
	if c.receiver == nil || c.receiverRegistered {
		return nil
	}
	rctx, cancel := c.registrationContext(ctx)
	defer cancel()
	if err := c.receiver.RegisterReceiver(rctx); err != nil {
		return err
	}
	c.receiverRegistered = true
	receiverGauge.Inc()
	c.logger.Debug().Msg("receiver registered")
	return nil
}

func (c *Controller) unregisterReceiver(ctx context.Context) error {
	if c.receiver == nil || !c.receiverRegistered {
		return nil
	}
	// Cleared before the native call whatever its outcome.
	c.receiverRegistered = false
	receiverGauge.Dec()
	c.logger.Debug().Msg("receiver unregistered")
	return c.receiver.UnregisterReceiver(ctx)
}

func (c *Controller) registrationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.registrationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.registrationTimeout)
}
