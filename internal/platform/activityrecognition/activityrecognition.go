// Package activityrecognition adapts a discrete transition service reached over Kafka.
//
// Subscribe, Unsubscribe and the permission prompt are control commands written to the control
// topic; the broker acknowledgement decides success. Transition batches arrive on the transitions
// topic and are only consumed while the lifecycle receiver is registered.
package activityrecognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"example.com/motion/internal/broker"
	"example.com/motion/internal/consumer"
	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
	"example.com/motion/internal/wire"
)

// Name identifies the platform.
const Name = "activityrecognition"

// MinSDKVersion is the first OS level with a runtime activity permission.
const MinSDKVersion = 29

// Permission codes reported by the device.
const (
	PermissionGranted = 0
	PermissionDenied  = -1
)

// Control command types.
const (
	CommandRequestTransitions = "transitions.request"
	CommandRemoveTransitions  = "transitions.remove"
	CommandPromptPermission   = "permission.prompt"
)

// TransitionSpec is one activity/transition pair the device should report.
type TransitionSpec struct {
	ActivityCode   int `json:"activity_type"`
	TransitionCode int `json:"transition_type"`
}

// Command is a control message for the device.
type Command struct {
	ID          uuid.UUID        `json:"id"`
	Type        string           `json:"type"`
	DeviceID    string           `json:"device_id"`
	Transitions []TransitionSpec `json:"transitions,omitempty"`
	IssuedAt    time.Time        `json:"issued_at"`
}

// TrackedTransitions is the transition request sent on subscribe: enter and exit for each
// reported activity.
func TrackedTransitions() []TransitionSpec {
	activities := []domain.ActivityType{
		domain.ActivityAutomotive,
		domain.ActivityWalking,
		domain.ActivityCycling,
		domain.ActivityRunning,
		domain.ActivityStationary,
	}
	specs := make([]TransitionSpec, 0, len(activities)*2)
	for _, a := range activities {
		code, _ := domain.DetectedFromActivity(a)
		specs = append(specs,
			TransitionSpec{ActivityCode: code, TransitionCode: domain.NativeTransitionEnter},
			TransitionSpec{ActivityCode: code, TransitionCode: domain.NativeTransitionExit},
		)
	}
	return specs
}

// ReaderFactory opens the transitions reader when the receiver registers.
type ReaderFactory func() consumer.Reader

// Config holds the topics and identity used by the platform.
type Config struct {
	DeviceID         string
	ControlTopic     string
	TransitionsTopic string
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

// WithServicesProbe sets the check behind ServicesAvailable.
func WithServicesProbe(probe func(context.Context) error) Option {
	return func(p *Platform) {
		p.probe = probe
	}
}

// Platform is the discrete-model adapter.
type Platform struct {
	cfg     Config
	writer  broker.MessageWriter
	readers ReaderFactory
	auth    *platform.AuthState
	probe   func(context.Context) error
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	handler  platform.TransitionHandler
	receiver *receiver
}

type receiver struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Platform writing commands through writer and reading transitions from readers.
func New(cfg Config, writer broker.MessageWriter, readers ReaderFactory, opts ...Option) *Platform {
	p := &Platform{
		cfg:     cfg,
		writer:  writer,
		readers: readers,
		auth:    platform.NewAuthState(),
		logger:  zerolog.Nop(),
		now:     func() time.Time { return time.Now().UTC() },
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
	return platform.Capabilities{Name: Name, StopRequiresPermission: true}
}

// AuthorizationStatus implements platform.Authorizer.
func (p *Platform) AuthorizationStatus(context.Context) (domain.PermissionStatus, error) {
	report, _, ok := p.auth.Current()
	if !ok {
		return domain.PermissionNotDetermined, nil
	}
	if !report.Available || (report.SDKVersion > 0 && report.SDKVersion < MinSDKVersion) {
		return domain.PermissionUnavailable, nil
	}
	switch report.Code {
	case PermissionGranted:
		return domain.PermissionAuthorized, nil
	case PermissionDenied:
		return domain.PermissionDenied, nil
	default:
		return domain.PermissionNotDetermined, nil
	}
}

// Subscribe sends the transition request.
func (p *Platform) Subscribe(ctx context.Context) error {
	if err := p.send(ctx, Command{Type: CommandRequestTransitions, Transitions: TrackedTransitions()}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRegistrationFailure, err)
	}
	return nil
}

// Unsubscribe removes the transition request.
func (p *Platform) Unsubscribe(ctx context.Context) error {
	if err := p.send(ctx, Command{Type: CommandRemoveTransitions}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRegistrationFailure, err)
	}
	return nil
}

// PromptPermission asks the device to show the permission dialog and waits for the next
// authorization report.
func (p *Platform) PromptPermission(ctx context.Context) error {
	_, version, _ := p.auth.Current()
	if err := p.send(ctx, Command{Type: CommandPromptPermission}); err != nil {
		return err
	}
	if _, err := p.auth.WaitChange(ctx, version); err != nil {
		return fmt.Errorf("waiting for permission decision: %w", err)
	}
	return nil
}

// BindTransitions implements platform.TransitionProducer.
func (p *Platform) BindTransitions(h platform.TransitionHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// RegisterReceiver starts consuming the transitions topic. Registering twice is a no-op.
func (p *Platform) RegisterReceiver(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.receiver != nil {
		return nil
	}
	if p.handler == nil {
		return errors.New("no transition handler bound")
	}
	if p.readers == nil {
		return fmt.Errorf("transitions reader: %w", domain.ErrUnavailableCapability)
	}

	reader := p.readers()
	processor := consumer.NewProcessor(reader, consumer.NewTransitionHandler(p.handler),
		consumer.WithLogger(p.logger.With().Str("topic", p.cfg.TransitionsTopic).Logger()))

	runCtx, cancel := context.WithCancel(context.Background())
	r := &receiver{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		defer reader.Close()
		if err := processor.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error().Err(err).Msg("transition receiver stopped")
		}
	}()
	p.receiver = r
	p.logger.Info().Str("topic", p.cfg.TransitionsTopic).Msg("transition receiver registered")
	return nil
}

// UnregisterReceiver stops consuming and waits for the loop to exit or ctx to end.
func (p *Platform) UnregisterReceiver(ctx context.Context) error {
	p.mu.Lock()
	r := p.receiver
	p.receiver = nil
	p.mu.Unlock()

	if r == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		p.logger.Info().Msg("transition receiver unregistered")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServicesAvailable implements platform.ServicesProbe.
func (p *Platform) ServicesAvailable(ctx context.Context) bool {
	if p.probe == nil {
		return false
	}
	if err := p.probe(ctx); err != nil {
		p.logger.Warn().Err(err).Msg("activity services unreachable")
		return false
	}
	return true
}

func (p *Platform) send(ctx context.Context, cmd Command) error {
	cmd.ID = uuid.New()
	cmd.DeviceID = p.cfg.DeviceID
	cmd.IssuedAt = p.now()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s command: %w", cmd.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(p.cfg.DeviceID),
		Value: wire.Encode(wire.SchemaControlCommand, payload),
		Time:  cmd.IssuedAt,
		Headers: []kafka.Header{
			{Key: wire.HeaderEventType, Value: []byte(cmd.Type)},
			{Key: wire.HeaderDeviceID, Value: []byte(p.cfg.DeviceID)},
			{Key: wire.HeaderCorrelationID, Value: []byte(cmd.ID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, p.cfg.ControlTopic, msg); err != nil {
		return fmt.Errorf("write %s command: %w", cmd.Type, err)
	}
	p.logger.Debug().Str("command", cmd.Type).Str("correlation_id", cmd.ID.String()).Msg("control command acknowledged")
	return nil
}

var (
	_ platform.Platform           = (*Platform)(nil)
	_ platform.TransitionProducer = (*Platform)(nil)
	_ platform.Prompter           = (*Platform)(nil)
	_ platform.Receiver           = (*Platform)(nil)
	_ platform.ServicesProbe      = (*Platform)(nil)
)
