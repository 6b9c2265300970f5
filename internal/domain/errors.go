package domain

import "errors"

var (
	// ErrUnavailableCapability is returned when the OS version or activity service cannot serve the call.
	ErrUnavailableCapability = errors.New("motion activity capability unavailable")
	// ErrPermissionDenied is returned when motion activity access has not been granted.
	ErrPermissionDenied = errors.New("motion activity permission denied")
	// ErrRegistrationFailure wraps a rejected native subscribe or unsubscribe call.
	ErrRegistrationFailure = errors.New("activity registration failed")
	// ErrQueryFailure wraps a failed historical activity query.
	ErrQueryFailure = errors.New("historical activity query failed")
	// ErrInvalidRange is returned when a historical query ends before it starts.
	ErrInvalidRange = errors.New("end date precedes start date")
	// ErrInvalidEvent is returned for events carrying unknown enumeration values.
	ErrInvalidEvent = errors.New("invalid activity change event")
)
