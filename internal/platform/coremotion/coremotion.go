// Package coremotion adapts a continuous activity service: the device shim pushes the current
// dominant activity at intervals of its own choosing and reports its authorization code.
package coremotion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
)

// Name identifies the platform.
const Name = "coremotion"

// Authorization codes reported by the device.
const (
	AuthNotDetermined = 0
	AuthRestricted    = 1
	AuthDenied        = 2
	AuthAuthorized    = 3
)

// SampleStore persists raw samples for historical queries.
type SampleStore interface {
	Record(ctx context.Context, sample domain.MotionSample) error
	QueryActivities(ctx context.Context, start, end time.Time) ([]domain.HistoricalActivity, error)
}

// Option configures a Platform.
type Option func(*Platform)

// WithLogger overrides the platform logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Platform) {
		p.logger = logger
	}
}

// WithAuthState shares an authorization state with the ingest endpoint.
func WithAuthState(state *platform.AuthState) Option {
	return func(p *Platform) {
		p.auth = state
	}
}

// Platform is the continuous-model adapter.
type Platform struct {
	store  SampleStore
	auth   *platform.AuthState
	logger zerolog.Logger

	subscribed atomic.Bool

	mu      sync.RWMutex
	handler platform.SampleHandler
}

// New returns a Platform recording samples to store.
func New(store SampleStore, opts ...Option) *Platform {
	p := &Platform{
		store:  store,
		auth:   platform.NewAuthState(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthState exposes the authorization state fed by the device.
func (p *Platform) AuthState() *platform.AuthState {
	return p.auth
}

// Capabilities implements platform.Platform.
func (p *Platform) Capabilities() platform.Capabilities {
	return platform.Capabilities{Name: Name}
}

// AuthorizationStatus implements platform.Authorizer. A device that has not reported yet is
// NOT_DETERMINED; a device without the activity service is UNAVAILABLE.
func (p *Platform) AuthorizationStatus(context.Context) (domain.PermissionStatus, error) {
	report, _, ok := p.auth.Current()
	if !ok {
		return domain.PermissionNotDetermined, nil
	}
	if !report.Available {
		return domain.PermissionUnavailable, nil
	}
	switch report.Code {
	case AuthNotDetermined:
		return domain.PermissionNotDetermined, nil
	case AuthRestricted:
		return domain.PermissionRestricted, nil
	case AuthDenied:
		return domain.PermissionDenied, nil
	case AuthAuthorized:
		return domain.PermissionAuthorized, nil
	default:
		return "", fmt.Errorf("unknown authorization code %d", report.Code)
	}
}

// Subscribe opens the sample gate. It never blocks.
func (p *Platform) Subscribe(context.Context) error {
	if err := p.checkAvailable(); err != nil {
		return err
	}
	p.subscribed.Store(true)
	return nil
}

// Unsubscribe closes the sample gate. It always succeeds.
func (p *Platform) Unsubscribe(context.Context) error {
	p.subscribed.Store(false)
	return nil
}

// BindSamples implements platform.SampleProducer.
func (p *Platform) BindSamples(h platform.SampleHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// Deliver records sample and, while subscribed, forwards it to the bound handler. It reports
// whether the sample reached the handler; a store failure does not stop delivery.
func (p *Platform) Deliver(ctx context.Context, sample domain.MotionSample) (bool, error) {
	if sample.StartDate.IsZero() {
		sample.StartDate = time.Now().UTC()
	}

	var storeErr error
	if p.store != nil {
		if err := p.store.Record(ctx, sample); err != nil {
			p.logger.Warn().Err(err).Msg("recording motion sample failed")
			storeErr = fmt.Errorf("record sample: %w", err)
		}
	}

	if !p.subscribed.Load() {
		return false, storeErr
	}
	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h == nil {
		return false, storeErr
	}
	h.HandleSample(sample)
	return true, storeErr
}

// QueryActivities implements platform.HistorySource.
func (p *Platform) QueryActivities(ctx context.Context, start, end time.Time) ([]domain.HistoricalActivity, error) {
	if err := p.checkAvailable(); err != nil {
		return nil, err
	}
	if p.store == nil {
		return nil, fmt.Errorf("%s history: %w", Name, domain.ErrUnavailableCapability)
	}
	return p.store.QueryActivities(ctx, start, end)
}

func (p *Platform) checkAvailable() error {
	if report, _, ok := p.auth.Current(); ok && !report.Available {
		return fmt.Errorf("%s: %w", Name, domain.ErrUnavailableCapability)
	}
	return nil
}

var (
	_ platform.Platform       = (*Platform)(nil)
	_ platform.SampleProducer = (*Platform)(nil)
	_ platform.HistorySource  = (*Platform)(nil)
)
