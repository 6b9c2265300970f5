// Package platform declares the native activity-recognition collaborators the bridge consumes.
//
// Every platform implements Platform. Optional behaviour is discovered by type assertion:
// Prompter for runtime permission dialogs, Receiver for lifecycle-bound broadcast receivers,
// HistorySource for retrospective queries, ServicesProbe for the play-services constant, and
// exactly one of SampleProducer (continuous model) or TransitionProducer (discrete model).
package platform

import (
	"context"
	"time"

	"example.com/motion/internal/domain"
)

// Capabilities describes static platform traits.
type Capabilities struct {
	Name string
	// StopRequiresPermission makes stop report UNAUTHORIZED when access is not granted.
	StopRequiresPermission bool
}

// Authorizer reports the current OS authorization state.
type Authorizer interface {
	AuthorizationStatus(ctx context.Context) (domain.PermissionStatus, error)
}

// Platform is the minimal native surface.
type Platform interface {
	Authorizer
	Capabilities() Capabilities
	// Subscribe registers for activity updates. A nil error means the OS accepted it.
	Subscribe(ctx context.Context) error
	// Unsubscribe removes the activity update registration.
	Unsubscribe(ctx context.Context) error
}

// Prompter shows the system permission dialog and returns once the user decided.
type Prompter interface {
	PromptPermission(ctx context.Context) error
}

// Receiver is a process-wide event receiver whose registration follows the host lifecycle.
type Receiver interface {
	RegisterReceiver(ctx context.Context) error
	UnregisterReceiver(ctx context.Context) error
}

// HistorySource answers retrospective activity queries.
type HistorySource interface {
	QueryActivities(ctx context.Context, start, end time.Time) ([]domain.HistoricalActivity, error)
}

// ServicesProbe reports whether the vendor activity services are reachable.
type ServicesProbe interface {
	ServicesAvailable(ctx context.Context) bool
}

// SampleHandler consumes raw continuous samples.
type SampleHandler interface {
	HandleSample(domain.MotionSample) (domain.ActivityChangeEvent, bool)
}

// TransitionHandler consumes raw discrete transition batches.
type TransitionHandler interface {
	HandleTransitions([]domain.TransitionRecord) []domain.ActivityChangeEvent
}

// SampleProducer is implemented by continuous-model platforms.
type SampleProducer interface {
	BindSamples(SampleHandler)
}

// TransitionProducer is implemented by discrete-model platforms.
type TransitionProducer interface {
	BindTransitions(TransitionHandler)
}
