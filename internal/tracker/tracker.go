// Package tracker exposes the motion activity operations offered to the application layer.
//
// A Tracker is an owned session object: it binds one platform to its own dispatcher, permission
// resolver, transition source and session controller. Separate Trackers share no state.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/motion/internal/dispatch"
	"example.com/motion/internal/domain"
	"example.com/motion/internal/normalize"
	"example.com/motion/internal/permission"
	"example.com/motion/internal/platform"
	"example.com/motion/internal/session"
)

// Option configures a Tracker.
type Option func(*options)

type options struct {
	logger              zerolog.Logger
	registrationTimeout time.Duration
	promptTimeout       time.Duration
}

// WithLogger sets the logger shared by every component of the Tracker.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistrationTimeout bounds native subscribe/unsubscribe calls.
func WithRegistrationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.registrationTimeout = d
	}
}

// WithPromptTimeout bounds a permission dialog.
func WithPromptTimeout(d time.Duration) Option {
	return func(o *options) {
		o.promptTimeout = d
	}
}

// Tracker is the bridge facade.
type Tracker struct {
	platform          platform.Platform
	emitter           *dispatch.Emitter
	resolver          *permission.Resolver
	controller        *session.Controller
	source            normalize.Source
	history           platform.HistorySource
	servicesAvailable bool
	logger            zerolog.Logger
}

// New binds p to a fresh session. The platform's receiver, if any, is registered immediately
// as the host starts in the foreground; a registration failure is logged, not returned.
func New(ctx context.Context, p platform.Platform, opts ...Option) *Tracker {
	o := options{
		logger:              zerolog.Nop(),
		registrationTimeout: session.DefaultRegistrationTimeout,
		promptTimeout:       permission.DefaultPromptTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	name := p.Capabilities().Name
	logger := o.logger.With().Str("component", "tracker").Str("platform", name).Logger()

	t := &Tracker{
		platform: p,
		emitter:  dispatch.NewEmitter(dispatch.WithLogger(logger)),
		logger:   logger,
	}

	switch producer := p.(type) {
	case platform.TransitionProducer:
		src := normalize.NewDiscrete(t.emitter)
		producer.BindTransitions(src)
		t.source = src
	case platform.SampleProducer:
		src := normalize.NewContinuous(t.emitter)
		producer.BindSamples(src)
		t.source = src
	default:
		t.source = normalize.NewContinuous(t.emitter)
	}

	resolverOpts := []permission.Option{
		permission.WithLogger(logger),
		permission.WithPromptTimeout(o.promptTimeout),
	}
	if prompter, ok := p.(platform.Prompter); ok {
		resolverOpts = append(resolverOpts, permission.WithPrompter(prompter))
	}
	t.resolver = permission.NewResolver(p, resolverOpts...)

	t.controller = session.New(p, t.resolver, t.source,
		session.WithLogger(logger),
		session.WithRegistrationTimeout(o.registrationTimeout),
	)

	if h, ok := p.(platform.HistorySource); ok {
		t.history = h
	}
	if probe, ok := p.(platform.ServicesProbe); ok {
		t.servicesAvailable = probe.ServicesAvailable(ctx)
	}

	if err := t.controller.Open(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial receiver registration failed")
	}
	return t
}

// PlatformName returns the bound platform name.
func (t *Tracker) PlatformName() string {
	return t.platform.Capabilities().Name
}

// IsGooglePlayServicesAvailable is fixed when the Tracker is created.
func (t *Tracker) IsGooglePlayServicesAvailable() bool {
	return t.servicesAvailable
}

// PermissionStatus returns the current authorization state.
func (t *Tracker) PermissionStatus(ctx context.Context) domain.PermissionStatus {
	return t.resolver.Status(ctx)
}

// RequestPermissions prompts where the platform supports runtime dialogs.
func (t *Tracker) RequestPermissions(ctx context.Context) domain.PermissionStatus {
	return t.resolver.Request(ctx)
}

// StartTracking registers the native subscription.
func (t *Tracker) StartTracking(ctx context.Context) domain.TrackingStatus {
	return t.controller.Start(ctx)
}

// StopTracking removes the native subscription.
func (t *Tracker) StopTracking(ctx context.Context) domain.TrackingStatus {
	return t.controller.Stop(ctx)
}

// Tracking reports whether the native subscription is registered.
func (t *Tracker) Tracking() bool {
	return t.controller.Tracking()
}

// SupportsHistory reports whether the platform can answer historical queries.
func (t *Tracker) SupportsHistory() bool {
	return t.history != nil
}

// HistoricalData queries past activity. Platforms without history yield an empty result and a
// logged warning for any range; query failures are returned wrapped in domain.ErrQueryFailure.
func (t *Tracker) HistoricalData(ctx context.Context, start, end time.Time) ([]domain.HistoricalActivity, error) {
	if t.history == nil {
		t.logger.Warn().Msg("historical activity queries are not supported on this platform")
		return []domain.HistoricalActivity{}, nil
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueryFailure, domain.ErrInvalidRange)
	}

	activities, err := t.history.QueryActivities(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueryFailure, err)
	}
	if activities == nil {
		activities = []domain.HistoricalActivity{}
	}
	return activities, nil
}

// AddListener subscribes to activity change events.
func (t *Tracker) AddListener(listener dispatch.Listener) *dispatch.Subscription {
	return t.emitter.Subscribe(listener)
}

// SimulateTransition injects event through the same dispatch path as native events.
func (t *Tracker) SimulateTransition(event domain.ActivityChangeEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	t.emitter.Emit(normalize.SourceSimulated, event)
	return nil
}

// EnterForeground forwards the host lifecycle hook.
func (t *Tracker) EnterForeground(ctx context.Context) error {
	return t.controller.EnterForeground(ctx)
}

// EnterBackground forwards the host lifecycle hook.
func (t *Tracker) EnterBackground(ctx context.Context) error {
	return t.controller.EnterBackground(ctx)
}

// Close tears the session down and drops every listener.
func (t *Tracker) Close(ctx context.Context) error {
	err := t.controller.Close(ctx)
	t.emitter.Close()
	return err
}
