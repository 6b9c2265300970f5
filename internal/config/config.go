// Package config centralises configuration parsing for the motion bridge.
//
// Values are layered: struct defaults, then an optional YAML file (CONFIG_PATH or ./config.yaml),
// then environment variables named after the upper-cased keys.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the variable pointing at a YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Platform names accepted by PLATFORM.
const (
	PlatformCoreMotion          = "coremotion"
	PlatformActivityRecognition = "activityrecognition"
	PlatformUnsupported         = "unsupported"
)

// Config captures runtime configuration values for the bridge.
type Config struct {
	HTTPAddress string `koanf:"http_address"`
	Platform    string `koanf:"platform"`
	DeviceID    string `koanf:"device_id"`

	KafkaBrokers     []string `koanf:"kafka_brokers"`
	TransitionsTopic string   `koanf:"transitions_topic"`
	ControlTopic     string   `koanf:"control_topic"`
	EventsTopic      string   `koanf:"events_topic"`
	ForwardEvents    bool     `koanf:"forward_events"`
	ConsumerGroupID  string   `koanf:"consumer_group_id"`

	// SchemaRegistryURL, when set, resolves the forwarded event schema id from the registry.
	SchemaRegistryURL string `koanf:"schema_registry_url"`

	// PostgresURL is optional; without it continuous samples are kept in memory.
	PostgresURL string `koanf:"postgres_url"`

	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	TrackingRegistrationTimeout time.Duration `koanf:"tracking_registration_timeout"`
	PermissionPromptTimeout     time.Duration `koanf:"permission_prompt_timeout"`

	// CORSOrigin enables CORS headers for one browser origin when set.
	CORSOrigin string `koanf:"cors_origin"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaultConfig() Config {
	return Config{
		HTTPAddress:                 ":8080",
		Platform:                    PlatformCoreMotion,
		DeviceID:                    "default",
		KafkaBrokers:                []string{"kafka:9092"},
		TransitionsTopic:            "motion.transitions",
		ControlTopic:                "motion.control",
		EventsTopic:                 "motion.events",
		ConsumerGroupID:             "motion-bridge",
		JWTSecret:                   "dev-secret-change-me",
		JWTIssuer:                   "motion.identity",
		TrackingRegistrationTimeout: 15 * time.Second,
		PermissionPromptTimeout:     2 * time.Minute,
		LogLevel:                    "info",
		LogFormat:                   "json",
	}
}

var sliceConfigPaths = []string{"kafka_brokers"}

// Load reads defaults, the optional config file and the environment.
func Load() (Config, error) {
	return load(findConfigFile())
}

func load(configPath string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return Config{}, fmt.Errorf("failed to process slice fields: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.Platform {
	case PlatformCoreMotion, PlatformUnsupported:
	case PlatformActivityRecognition:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("kafka_brokers is required for the activityrecognition platform"))
		}
		if c.TransitionsTopic == "" || c.ControlTopic == "" {
			errs = append(errs, errors.New("transitions_topic and control_topic are required for the activityrecognition platform"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown platform %q", c.Platform))
	}
	if c.ForwardEvents && (len(c.KafkaBrokers) == 0 || c.EventsTopic == "") {
		errs = append(errs, errors.New("forward_events needs kafka_brokers and events_topic"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.TrackingRegistrationTimeout < 0 || c.PermissionPromptTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields splits comma-separated environment values for slice keys.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
