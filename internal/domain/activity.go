// Package domain defines the cross-platform motion activity contract shared by the bridge.
package domain

import (
	"fmt"
	"time"
)

// PermissionStatus is the unified authorization state for motion activity access.
type PermissionStatus string

const (
	PermissionAuthorized           PermissionStatus = "AUTHORIZED"
	PermissionDenied               PermissionStatus = "DENIED"
	PermissionNotDetermined        PermissionStatus = "NOT_DETERMINED"
	PermissionRestricted           PermissionStatus = "RESTRICTED"
	PermissionUnavailable          PermissionStatus = "UNAVAILABLE"
	PermissionPlatformNotSupported PermissionStatus = "PLATFORM_NOT_SUPPORTED"
)

// TrackingStatus is the outcome of a single start or stop request.
type TrackingStatus string

const (
	TrackingStarted      TrackingStatus = "STARTED"
	TrackingStopped      TrackingStatus = "STOPPED"
	TrackingFailed       TrackingStatus = "FAILED"
	TrackingUnauthorized TrackingStatus = "UNAUTHORIZED"
)

// ActivityType is the OS classification carried by an event.
type ActivityType string

const (
	ActivityUnknown    ActivityType = "UNKNOWN"
	ActivityWalking    ActivityType = "WALKING"
	ActivityRunning    ActivityType = "RUNNING"
	ActivityAutomotive ActivityType = "AUTOMOTIVE"
	ActivityStationary ActivityType = "STATIONARY"
	ActivityCycling    ActivityType = "CYCLING"
)

// TransitionType marks whether an activity was entered or exited.
type TransitionType string

const (
	TransitionEnter   TransitionType = "ENTER"
	TransitionExit    TransitionType = "EXIT"
	TransitionUnknown TransitionType = "UNKNOWN"
)

// Confidence is the coarse certainty reported for a classification.
type Confidence string

const (
	ConfidenceLow     Confidence = "LOW"
	ConfidenceMedium  Confidence = "MEDIUM"
	ConfidenceHigh    Confidence = "HIGH"
	ConfidenceUnknown Confidence = "UNKNOWN"
)

// ActivityChangeEvent is the single event shape delivered to listeners on every platform.
type ActivityChangeEvent struct {
	ActivityType   ActivityType   `json:"activityType"`
	TransitionType TransitionType `json:"transitionType"`
	Confidence     Confidence     `json:"confidence"`
	Timestamp      float64        `json:"timestamp"`
}

// Validate rejects events carrying values outside the known enumerations.
func (e ActivityChangeEvent) Validate() error {
	if !e.ActivityType.Valid() {
		return fmt.Errorf("%w: activityType %q", ErrInvalidEvent, e.ActivityType)
	}
	if !e.TransitionType.Valid() {
		return fmt.Errorf("%w: transitionType %q", ErrInvalidEvent, e.TransitionType)
	}
	if !e.Confidence.Valid() {
		return fmt.Errorf("%w: confidence %q", ErrInvalidEvent, e.Confidence)
	}
	return nil
}

// HistoricalActivity is one retrospective sample returned by a historical query.
type HistoricalActivity struct {
	Walking    bool       `json:"walking"`
	Running    bool       `json:"running"`
	Automotive bool       `json:"automotive"`
	Stationary bool       `json:"stationary"`
	Cycling    bool       `json:"cycling"`
	Unknown    bool       `json:"unknown"`
	Timestamp  float64    `json:"timestamp"`
	Confidence Confidence `json:"confidence"`
}

// Valid reports whether the value is a known activity type.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityUnknown, ActivityWalking, ActivityRunning, ActivityAutomotive, ActivityStationary, ActivityCycling:
		return true
	}
	return false
}

// Valid reports whether the value is a known transition type.
func (t TransitionType) Valid() bool {
	switch t {
	case TransitionEnter, TransitionExit, TransitionUnknown:
		return true
	}
	return false
}

// Valid reports whether the value is a known confidence level.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh, ConfidenceUnknown:
		return true
	}
	return false
}

// EpochSeconds converts t to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpochSeconds is the inverse of EpochSeconds.
func FromEpochSeconds(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
