// Package api exposes the motion bridge operations over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"example.com/motion/internal/auth"
	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
	"example.com/motion/internal/schema"
	"example.com/motion/internal/session"
)

const maxBodyBytes = 1 << 20

// Tracker is the set of bridge operations served by the handler.
type Tracker interface {
	PlatformName() string
	IsGooglePlayServicesAvailable() bool
	PermissionStatus(ctx context.Context) domain.PermissionStatus
	RequestPermissions(ctx context.Context) domain.PermissionStatus
	StartTracking(ctx context.Context) domain.TrackingStatus
	StopTracking(ctx context.Context) domain.TrackingStatus
	SupportsHistory() bool
	HistoricalData(ctx context.Context, start, end time.Time) ([]domain.HistoricalActivity, error)
	SimulateTransition(event domain.ActivityChangeEvent) error
	EnterForeground(ctx context.Context) error
	EnterBackground(ctx context.Context) error
}

// SampleIngester accepts raw continuous samples from the device shim.
type SampleIngester interface {
	Deliver(ctx context.Context, sample domain.MotionSample) (bool, error)
}

// Validator checks raw payloads against a named schema.
type Validator interface {
	Validate(name string, raw []byte) error
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithValidator enables schema validation of inbound payloads.
func WithValidator(v Validator) Option {
	return func(h *Handler) {
		h.validator = v
	}
}

// WithSampleIngest enables the continuous sample ingest endpoint.
func WithSampleIngest(ingester SampleIngester) Option {
	return func(h *Handler) {
		h.samples = ingester
	}
}

// WithAuthState enables the authorization report endpoint.
func WithAuthState(state *platform.AuthState) Option {
	return func(h *Handler) {
		h.authState = state
	}
}

// WithStream mounts the event stream handler on /v1/events.
func WithStream(stream http.Handler) Option {
	return func(h *Handler) {
		h.stream = stream
	}
}

// Handler coordinates HTTP requests with the tracker.
type Handler struct {
	tracker   Tracker
	validator Validator
	samples   SampleIngester
	authState *platform.AuthState
	stream    http.Handler
	logger    zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(tracker Tracker, opts ...Option) *Handler {
	h := &Handler{tracker: tracker, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/permissions", h.permissions)
	mux.HandleFunc("/v1/permissions/request", h.requestPermissions)
	mux.HandleFunc("/v1/tracking/start", h.startTracking)
	mux.HandleFunc("/v1/tracking/stop", h.stopTracking)
	mux.HandleFunc("/v1/history", h.history)
	mux.HandleFunc("/v1/simulate", h.simulate)
	mux.HandleFunc("/v1/constants", h.constants)
	mux.HandleFunc("/v1/lifecycle/foreground", h.foreground)
	mux.HandleFunc("/v1/lifecycle/background", h.background)
	mux.HandleFunc("/v1/native/coremotion/samples", h.ingestSamples)
	mux.HandleFunc("/v1/native/authorization", h.reportAuthorization)
	if h.stream != nil {
		mux.HandleFunc("/v1/events", h.events)
	}
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !requireScope(w, r, auth.ScopeMotionRead) {
		return
	}
	writeJSON(w, http.StatusOK, PermissionResponse{Status: h.tracker.PermissionStatus(r.Context())})
}

func (h *Handler) requestPermissions(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) || !requireScope(w, r, auth.ScopeMotionWrite) {
		return
	}
	writeJSON(w, http.StatusOK, PermissionResponse{Status: h.tracker.RequestPermissions(r.Context())})
}

func (h *Handler) startTracking(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) || !requireScope(w, r, auth.ScopeMotionWrite) {
		return
	}
	writeJSON(w, http.StatusOK, TrackingResponse{Status: h.tracker.StartTracking(r.Context())})
}

func (h *Handler) stopTracking(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) || !requireScope(w, r, auth.ScopeMotionWrite) {
		return
	}
	writeJSON(w, http.StatusOK, TrackingResponse{Status: h.tracker.StopTracking(r.Context())})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !requireScope(w, r, auth.ScopeMotionRead) {
		return
	}
	if !h.tracker.SupportsHistory() {
		activities, _ := h.tracker.HistoricalData(r.Context(), time.Time{}, time.Time{})
		writeJSON(w, http.StatusOK, activities)
		return
	}

	start, err := parseInstant(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start: "+err.Error())
		return
	}
	end := time.Now().UTC()
	if raw := r.URL.Query().Get("end"); raw != "" {
		if end, err = parseInstant(raw); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "end: "+err.Error())
			return
		}
	}

	activities, err := h.tracker.HistoricalData(r.Context(), start, end)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, activities)
	case errors.Is(err, domain.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, domain.ErrUnavailableCapability):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		h.logger.Error().Err(err).Msg("historical query failed")
		writeError(w, http.StatusBadGateway, "query_failed", err.Error())
	}
}

func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) || !requireScope(w, r, auth.ScopeMotionSimulate) {
		return
	}

	raw, ok := h.readBody(w, r, schema.ActivityEvent)
	if !ok {
		return
	}
	var event domain.ActivityChangeEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := h.tracker.SimulateTransition(event); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) constants(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !requireScope(w, r, auth.ScopeMotionRead) {
		return
	}
	writeJSON(w, http.StatusOK, ConstantsResponse{
		Platform:                      h.tracker.PlatformName(),
		IsGooglePlayServicesAvailable: h.tracker.IsGooglePlayServicesAvailable(),
	})
}

func (h *Handler) foreground(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) || !requireScope(w, r, auth.ScopeMotionWrite) {
		return
	}
	h.lifecycle(w, h.tracker.EnterForeground(r.Context()))
}

func (h *Handler) background(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) || !requireScope(w, r, auth.ScopeMotionWrite) {
		return
	}
	h.lifecycle(w, h.tracker.EnterBackground(r.Context()))
}

func (h *Handler) lifecycle(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusConflict, "closed", err.Error())
	default:
		h.logger.Error().Err(err).Msg("lifecycle transition failed")
		writeError(w, http.StatusBadGateway, "receiver_failed", err.Error())
	}
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !requireScope(w, r, auth.ScopeMotionRead) {
		return
	}
	h.stream.ServeHTTP(w, r)
}

func (h *Handler) ingestSamples(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) || !requireScope(w, r, auth.ScopeNative) {
		return
	}
	if h.samples == nil {
		writeError(w, http.StatusNotFound, "not_supported", "platform does not ingest continuous samples")
		return
	}

	raw, ok := h.readBody(w, r, schema.MotionSamples)
	if !ok {
		return
	}
	var req SampleBatchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	resp := SampleBatchResponse{}
	for _, sample := range req.Samples {
		delivered, err := h.samples.Deliver(r.Context(), sample)
		resp.Accepted++
		if delivered {
			resp.Delivered++
		}
		if err != nil {
			resp.StoreErrors++
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) reportAuthorization(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) || !requireScope(w, r, auth.ScopeNative) {
		return
	}
	if h.authState == nil {
		writeError(w, http.StatusNotFound, "not_supported", "platform does not accept authorization reports")
		return
	}

	raw, ok := h.readBody(w, r, schema.AuthorizationReport)
	if !ok {
		return
	}
	var report platform.AuthReport
	if err := json.Unmarshal(raw, &report); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	h.authState.Report(report)
	h.logger.Info().Int("code", report.Code).Bool("available", report.Available).Msg("authorization reported")
	w.WriteHeader(http.StatusNoContent)
}

// readBody reads a bounded body and validates it against schemaName when a validator is set.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, schemaName string) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body")
		return nil, false
	}
	if h.validator != nil {
		if err := h.validator.Validate(schemaName, raw); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return nil, false
		}
	}
	return raw, true
}

// parseInstant accepts RFC3339 timestamps or epoch seconds.
func parseInstant(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("required")
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return domain.FromEpochSeconds(secs).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errors.New("expected RFC3339 or epoch seconds")
	}
	return t, nil
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return false
	}
	return true
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
