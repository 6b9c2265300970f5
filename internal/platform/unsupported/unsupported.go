// Package unsupported is the platform bound on hosts without activity recognition.
package unsupported

import (
	"context"
	"fmt"

	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
)

// Name identifies the platform.
const Name = "unsupported"

// Platform reports PLATFORM_NOT_SUPPORTED and refuses every native call.
type Platform struct{}

// New returns the unsupported platform.
func New() *Platform {
	return &Platform{}
}

// Capabilities implements platform.Platform.
func (*Platform) Capabilities() platform.Capabilities {
	return platform.Capabilities{Name: Name}
}

// AuthorizationStatus implements platform.Authorizer.
func (*Platform) AuthorizationStatus(context.Context) (domain.PermissionStatus, error) {
	return domain.PermissionPlatformNotSupported, nil
}

// Subscribe implements platform.Platform.
func (*Platform) Subscribe(context.Context) error {
	return fmt.Errorf("%s: %w", Name, domain.ErrUnavailableCapability)
}

// Unsubscribe implements platform.Platform.
func (*Platform) Unsubscribe(context.Context) error {
	return fmt.Errorf("%s: %w", Name, domain.ErrUnavailableCapability)
}

var _ platform.Platform = (*Platform)(nil)
