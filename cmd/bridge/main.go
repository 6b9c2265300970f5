package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/motion/internal/api"
	"example.com/motion/internal/auth"
	"example.com/motion/internal/broker"
	"example.com/motion/internal/config"
	"example.com/motion/internal/consumer"
	"example.com/motion/internal/forward"
	historypg "example.com/motion/internal/history/postgres"
	"example.com/motion/internal/logging"
	"example.com/motion/internal/observability"
	"example.com/motion/internal/platform"
	"example.com/motion/internal/platform/activityrecognition"
	"example.com/motion/internal/platform/coremotion"
	"example.com/motion/internal/platform/unsupported"
	"example.com/motion/internal/schema"
	"example.com/motion/internal/stream"
	"example.com/motion/internal/tracker"
	httptransport "example.com/motion/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	logger := logging.Component("bridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var producer *broker.KafkaProducer
	if cfg.Platform == config.PlatformActivityRecognition || cfg.ForwardEvents {
		producer = broker.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
	}

	adapter, wiring, err := buildPlatform(ctx, cfg, producer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build platform")
	}
	if wiring.pool != nil {
		defer wiring.pool.Close()
	}

	t := tracker.New(ctx, adapter,
		tracker.WithLogger(logging.Component("tracker")),
		tracker.WithRegistrationTimeout(cfg.TrackingRegistrationTimeout),
		tracker.WithPromptTimeout(cfg.PermissionPromptTimeout),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.ForwardEvents {
		forwardOpts := []forward.Option{forward.WithLogger(logging.Component("forward"))}
		if cfg.SchemaRegistryURL != "" {
			id, err := resolveEventSchema(ctx, cfg)
			if err != nil {
				logger.Warn().Err(err).Msg("schema registry unavailable, using bundled schema id")
			} else {
				forwardOpts = append(forwardOpts, forward.WithSchemaID(id))
			}
		}
		forwarder := forward.New(producer, cfg.EventsTopic, cfg.DeviceID, forwardOpts...)
		sub := t.AddListener(forwarder.Listen)
		defer sub.Remove()
		group.Go(func() error { return ignoreCanceled(forwarder.Run(groupCtx)) })
	}

	validator, err := schema.NewValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile schemas")
	}

	events := stream.NewHandler(t, stream.WithLogger(logging.Component("stream")))
	apiOpts := []api.Option{
		api.WithLogger(logging.Component("api")),
		api.WithValidator(validator),
		api.WithStream(events),
		api.WithAuthState(wiring.authState),
	}
	if wiring.samples != nil {
		apiOpts = append(apiOpts, api.WithSampleIngest(wiring.samples))
	}
	handler := api.NewHandler(t, apiOpts...)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	root := observability.Instrument(logging.Component("http"), knownPaths(),
		observability.CORS(cfg.CORSOrigin, authMiddleware.Wrap(mux)))

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, root)
	group.Go(func() error {
		return httptransport.Serve(groupCtx, server, serverCfg.ShutdownTimeout, logging.Component("http"))
	})

	logger.Info().
		Str("platform", t.PlatformName()).
		Str("device_id", cfg.DeviceID).
		Bool("forward_events", cfg.ForwardEvents).
		Msg("motion bridge started")

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("bridge stopped with error")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := t.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("tracker close failed")
	}
}

type platformWiring struct {
	pool      *pgxpool.Pool
	authState *platform.AuthState
	samples   api.SampleIngester
}

func buildPlatform(ctx context.Context, cfg config.Config, producer *broker.KafkaProducer) (platform.Platform, platformWiring, error) {
	var wiring platformWiring
	switch cfg.Platform {
	case config.PlatformCoreMotion:
		var store coremotion.SampleStore = coremotion.NewMemoryStore(coremotion.DefaultMemoryCapacity)
		if cfg.PostgresURL != "" {
			pool, err := pgxpool.New(ctx, cfg.PostgresURL)
			if err != nil {
				return nil, wiring, err
			}
			wiring.pool = pool
			store = historypg.NewRepository(pool, cfg.DeviceID)
		}
		p := coremotion.New(store, coremotion.WithLogger(logging.Component("coremotion")))
		wiring.authState = p.AuthState()
		wiring.samples = p
		return p, wiring, nil

	case config.PlatformActivityRecognition:
		readers := func() consumer.Reader {
			return broker.NewReader(broker.ReaderConfig{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.TransitionsTopic,
				GroupID: cfg.ConsumerGroupID,
			})
		}
		p := activityrecognition.New(activityrecognition.Config{
			DeviceID:         cfg.DeviceID,
			ControlTopic:     cfg.ControlTopic,
			TransitionsTopic: cfg.TransitionsTopic,
		}, producer, readers,
			activityrecognition.WithLogger(logging.Component("activityrecognition")),
			activityrecognition.WithServicesProbe(func(ctx context.Context) error {
				return broker.Ping(ctx, cfg.KafkaBrokers)
			}),
		)
		wiring.authState = p.AuthState()
		return p, wiring, nil

	default:
		return unsupported.New(), wiring, nil
	}
}

func resolveEventSchema(ctx context.Context, cfg config.Config) (int, error) {
	raw, err := schema.Source(schema.ActivityEvent)
	if err != nil {
		return 0, err
	}
	registry := broker.NewSchemaRegistry(cfg.SchemaRegistryURL)
	return registry.EnsureSchema(ctx, cfg.EventsTopic+"-value", raw)
}

func knownPaths() map[string]bool {
	return map[string]bool{
		"/v1/permissions":               true,
		"/v1/permissions/request":       true,
		"/v1/tracking/start":            true,
		"/v1/tracking/stop":             true,
		"/v1/history":                   true,
		"/v1/simulate":                  true,
		"/v1/constants":                 true,
		"/v1/lifecycle/foreground":      true,
		"/v1/lifecycle/background":      true,
		"/v1/native/coremotion/samples": true,
		"/v1/native/authorization":      true,
		"/v1/events":                    true,
		"/healthz":                      true,
		"/metrics":                      true,
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
