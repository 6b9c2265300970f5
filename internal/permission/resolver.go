// Package permission resolves the unified motion permission state and drives runtime prompts.
package permission

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
)

const requestKey = "permission-request"

// DefaultPromptTimeout bounds how long a single dialog may stay open.
const DefaultPromptTimeout = 2 * time.Minute

// Option configures a Resolver.
type Option func(*Resolver)

// WithPrompter enables runtime permission requests.
func WithPrompter(p platform.Prompter) Option {
	return func(r *Resolver) {
		r.prompter = p
	}
}

// WithLogger overrides the resolver logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithPromptTimeout overrides DefaultPromptTimeout. Zero disables the bound.
func WithPromptTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.promptTimeout = d
	}
}

// Resolver recomputes the permission state on every call; nothing is cached.
type Resolver struct {
	authorizer    platform.Authorizer
	prompter      platform.Prompter
	promptTimeout time.Duration
	logger        zerolog.Logger
	flight        singleflight.Group
}

// NewResolver constructs a Resolver over the platform authorizer.
func NewResolver(authorizer platform.Authorizer, opts ...Option) *Resolver {
	r := &Resolver{
		authorizer:    authorizer,
		promptTimeout: DefaultPromptTimeout,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CanPrompt reports whether the platform shows runtime permission dialogs.
func (r *Resolver) CanPrompt() bool {
	return r.prompter != nil
}

// Status queries the OS. It never fails: a missing capability or a native error resolves to
// UNAVAILABLE.
func (r *Resolver) Status(ctx context.Context) domain.PermissionStatus {
	status, err := r.authorizer.AuthorizationStatus(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrUnavailableCapability) {
			r.logger.Warn().Err(err).Msg("authorization status query failed")
		}
		return domain.PermissionUnavailable
	}
	if !validStatus(status) {
		r.logger.Warn().Str("status", string(status)).Msg("unknown authorization status")
		return domain.PermissionUnavailable
	}
	return status
}

// Request returns immediately when access is already granted or cannot be granted by the
// user (restricted, unavailable, unsupported). Otherwise it shows the system
// dialog, waits for the decision and re-queries. Concurrent callers share one pending dialog.
// On platforms without runtime prompts it returns the current status.
func (r *Resolver) Request(ctx context.Context) domain.PermissionStatus {
	current := r.Status(ctx)
	if !promptable(current) || r.prompter == nil {
		requestCounter.WithLabelValues(string(current)).Inc()
		return current
	}

	ch := r.flight.DoChan(requestKey, func() (interface{}, error) {
		return r.prompt(), nil
	})

	select {
	case <-ctx.Done():
		// The dialog keeps running for the other callers.
		return r.Status(context.WithoutCancel(ctx))
	case res := <-ch:
		status := res.Val.(domain.PermissionStatus)
		if res.Shared {
			sharedRequestCounter.Inc()
		}
		requestCounter.WithLabelValues(string(status)).Inc()
		return status
	}
}

func (r *Resolver) prompt() domain.PermissionStatus {
	ctx := context.Background()
	if r.promptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.promptTimeout)
		defer cancel()
	}

	promptCounter.Inc()
	if err := r.prompter.PromptPermission(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("permission prompt failed")
		return domain.PermissionNotDetermined
	}

	after := r.Status(ctx)
	switch after {
	case domain.PermissionAuthorized,
		domain.PermissionRestricted,
		domain.PermissionUnavailable,
		domain.PermissionPlatformNotSupported:
		return after
	default:
		return domain.PermissionDenied
	}
}

// promptable reports whether a dialog can change s. Granted, restricted and missing
// capabilities are answered without one.
func promptable(s domain.PermissionStatus) bool {
	switch s {
	case domain.PermissionAuthorized,
		domain.PermissionRestricted,
		domain.PermissionUnavailable,
		domain.PermissionPlatformNotSupported:
		return false
	}
	return true
}

func validStatus(s domain.PermissionStatus) bool {
	switch s {
	case domain.PermissionAuthorized,
		domain.PermissionDenied,
		domain.PermissionNotDetermined,
		domain.PermissionRestricted,
		domain.PermissionUnavailable,
		domain.PermissionPlatformNotSupported:
		return true
	}
	return false
}
