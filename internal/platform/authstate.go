package platform

import (
	"context"
	"sync"
	"time"
)

// AuthReport is the raw authorization state reported by a device shim.
type AuthReport struct {
	// Code is the platform-specific authorization code.
	Code int `json:"code"`
	// Available is false when the activity service is absent on the device.
	Available bool `json:"available"`
	// SDKVersion is the OS API level, where the platform has one.
	SDKVersion int       `json:"sdk_int,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// AuthState holds the latest AuthReport and wakes waiters on every new report.
type AuthState struct {
	mu       sync.Mutex
	report   AuthReport
	reported bool
	version  uint64
	changed  chan struct{}
}

// NewAuthState returns an empty state; Current reports false until the first Report.
func NewAuthState() *AuthState {
	return &AuthState{changed: make(chan struct{})}
}

// Report stores r and notifies waiters.
func (s *AuthState) Report(r AuthReport) {
	if r.ReportedAt.IsZero() {
		r.ReportedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
	s.reported = true
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// Current returns the latest report, its version and whether anything was reported yet.
func (s *AuthState) Current() (AuthReport, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.version, s.reported
}

// WaitChange blocks until a report newer than since arrives or ctx ends.
func (s *AuthState) WaitChange(ctx context.Context, since uint64) (AuthReport, error) {
	for {
		s.mu.Lock()
		if s.version > since {
			r := s.report
			s.mu.Unlock()
			return r, nil
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return AuthReport{}, ctx.Err()
		case <-ch:
		}
	}
}
