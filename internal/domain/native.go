package domain

import "time"

// Confidence levels reported by the continuous activity service.
const (
	NativeConfidenceLow    = 0
	NativeConfidenceMedium = 1
	NativeConfidenceHigh   = 2
)

// Activity codes used by the discrete transition service.
const (
	DetectedInVehicle = 0
	DetectedOnBicycle = 1
	DetectedOnFoot    = 2
	DetectedStill     = 3
	DetectedUnknown   = 4
	DetectedTilting   = 5
	DetectedWalking   = 7
	DetectedRunning   = 8
)

// Transition codes used by the discrete transition service.
const (
	NativeTransitionEnter = 0
	NativeTransitionExit  = 1
)

// MotionSample is one raw callback from a continuous activity service. At most one
// classification flag is expected to be set, but nothing enforces it.
type MotionSample struct {
	Walking    bool      `json:"walking"`
	Running    bool      `json:"running"`
	Automotive bool      `json:"automotive"`
	Stationary bool      `json:"stationary"`
	Cycling    bool      `json:"cycling"`
	Unknown    bool      `json:"unknown"`
	Confidence int       `json:"confidence"`
	StartDate  time.Time `json:"startDate"`
}

// Classification collapses the flags into the dominant activity type.
func (s MotionSample) Classification() ActivityType {
	switch {
	case s.Walking:
		return ActivityWalking
	case s.Running:
		return ActivityRunning
	case s.Automotive:
		return ActivityAutomotive
	case s.Stationary:
		return ActivityStationary
	case s.Cycling:
		return ActivityCycling
	default:
		return ActivityUnknown
	}
}

// Historical converts the sample to the historical query shape.
func (s MotionSample) Historical() HistoricalActivity {
	return HistoricalActivity{
		Walking:    s.Walking,
		Running:    s.Running,
		Automotive: s.Automotive,
		Stationary: s.Stationary,
		Cycling:    s.Cycling,
		Unknown:    s.Unknown,
		Timestamp:  EpochSeconds(s.StartDate),
		Confidence: ConfidenceFromLevel(s.Confidence),
	}
}

// TransitionRecord is one entry of a discrete transition batch.
type TransitionRecord struct {
	ActivityCode   int       `json:"activity_type"`
	TransitionCode int       `json:"transition_type"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConfidenceFromLevel maps the 0..2 native scale; anything else is unknown.
func ConfidenceFromLevel(level int) Confidence {
	switch level {
	case NativeConfidenceLow:
		return ConfidenceLow
	case NativeConfidenceMedium:
		return ConfidenceMedium
	case NativeConfidenceHigh:
		return ConfidenceHigh
	default:
		return ConfidenceUnknown
	}
}

// ActivityFromDetected maps a discrete service activity code.
func ActivityFromDetected(code int) ActivityType {
	switch code {
	case DetectedInVehicle:
		return ActivityAutomotive
	case DetectedWalking:
		return ActivityWalking
	case DetectedRunning:
		return ActivityRunning
	case DetectedOnBicycle:
		return ActivityCycling
	case DetectedStill:
		return ActivityStationary
	default:
		return ActivityUnknown
	}
}

// DetectedFromActivity is the reverse of ActivityFromDetected for the monitored activity set.
func DetectedFromActivity(a ActivityType) (int, bool) {
	switch a {
	case ActivityAutomotive:
		return DetectedInVehicle, true
	case ActivityWalking:
		return DetectedWalking, true
	case ActivityRunning:
		return DetectedRunning, true
	case ActivityCycling:
		return DetectedOnBicycle, true
	case ActivityStationary:
		return DetectedStill, true
	}
	return DetectedUnknown, false
}

// TransitionFromCode maps a discrete service transition code.
func TransitionFromCode(code int) TransitionType {
	switch code {
	case NativeTransitionEnter:
		return TransitionEnter
	case NativeTransitionExit:
		return TransitionExit
	default:
		return TransitionUnknown
	}
}
