package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, PlatformCoreMotion, cfg.Platform)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 15*time.Second, cfg.TrackingRegistrationTimeout)
	require.Equal(t, 2*time.Minute, cfg.PermissionPromptTimeout)
	require.False(t, cfg.ForwardEvents)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform: activityrecognition\nlog_level: debug\ntracking_registration_timeout: 5s\n"), 0o600))

	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("TRACKING_REGISTRATION_TIMEOUT", "0s")
	t.Setenv("FORWARD_EVENTS", "true")

	cfg, err := load(path)
	require.NoError(t, err)
	require.Equal(t, PlatformActivityRecognition, cfg.Platform)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.KafkaBrokers)
	require.Zero(t, cfg.TrackingRegistrationTimeout)
	require.True(t, cfg.ForwardEvents)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Platform = "windows-phone"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Platform = PlatformActivityRecognition
	cfg.KafkaBrokers = nil
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.PermissionPromptTimeout = -time.Second
	require.Error(t, cfg.Validate())

	require.NoError(t, defaultConfig().Validate())
}

func TestLoadHonoursConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform: unsupported\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, PlatformUnsupported, cfg.Platform)
}
