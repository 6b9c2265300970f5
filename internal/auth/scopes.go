package auth

// Scopes granted to bridge clients.
const (
	ScopeMotionRead     = "motion:read"
	ScopeMotionWrite    = "motion:write"
	ScopeMotionSimulate = "motion:simulate"
	ScopeNative         = "native"
)
