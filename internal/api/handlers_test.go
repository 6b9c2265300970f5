package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"example.com/motion/internal/auth"
	"example.com/motion/internal/domain"
	"example.com/motion/internal/platform"
	"example.com/motion/internal/platform/coremotion"
	"example.com/motion/internal/platform/platformtest"
	"example.com/motion/internal/platform/unsupported"
	"example.com/motion/internal/schema"
	"example.com/motion/internal/tracker"
)

func withScopes(req *http.Request, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	claims := &auth.Claims{Subject: "tester", Scopes: set, ExpiresAt: time.Now().Add(time.Hour)}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func serve(t *testing.T, h *Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func newValidator(t *testing.T) *schema.Validator {
	t.Helper()
	v, err := schema.NewValidator()
	require.NoError(t, err)
	return v
}

func TestPermissionAndTrackingEndpoints(t *testing.T) {
	p := platformtest.NewDiscrete(domain.PermissionNotDetermined)
	h := NewHandler(tracker.New(context.Background(), p))

	rec := serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, "/v1/permissions", nil), auth.ScopeMotionRead))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"NOT_DETERMINED"}`, rec.Body.String())

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/tracking/start", nil), auth.ScopeMotionWrite))
	require.JSONEq(t, `{"status":"UNAUTHORIZED"}`, rec.Body.String())
	require.Zero(t, p.SubscribeCalls())

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/permissions/request", nil), auth.ScopeMotionWrite))
	require.JSONEq(t, `{"status":"AUTHORIZED"}`, rec.Body.String())

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/tracking/start", nil), auth.ScopeMotionWrite))
	require.JSONEq(t, `{"status":"STARTED"}`, rec.Body.String())

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/tracking/stop", nil), auth.ScopeMotionWrite))
	require.JSONEq(t, `{"status":"STOPPED"}`, rec.Body.String())
}

func TestScopesAndMethodsAreEnforced(t *testing.T) {
	h := NewHandler(tracker.New(context.Background(), platformtest.NewDiscrete(domain.PermissionAuthorized)))

	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/v1/permissions", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/tracking/start", nil), auth.ScopeMotionRead))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, "/v1/tracking/start", nil), auth.ScopeMotionWrite))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestSimulateDeliversEventUnchanged(t *testing.T) {
	tr := tracker.New(context.Background(), platformtest.NewDiscrete(domain.PermissionAuthorized))
	var got []domain.ActivityChangeEvent
	tr.AddListener(func(ev domain.ActivityChangeEvent) { got = append(got, ev) })
	h := NewHandler(tr, WithValidator(newValidator(t)))

	body := `{"activityType":"WALKING","transitionType":"ENTER","confidence":"UNKNOWN","timestamp":1714550400.25}`
	rec := serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/simulate", bytes.NewBufferString(body)), auth.ScopeMotionSimulate))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []domain.ActivityChangeEvent{{
		ActivityType:   domain.ActivityWalking,
		TransitionType: domain.TransitionEnter,
		Confidence:     domain.ConfidenceUnknown,
		Timestamp:      1714550400.25,
	}}, got)

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/simulate", bytes.NewBufferString(`{"activityType":"SWIMMING","transitionType":"ENTER","confidence":"LOW"}`)), auth.ScopeMotionSimulate))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, got, 1)
}

func TestHistoryEndpoint(t *testing.T) {
	ctx := context.Background()
	store := coremotion.NewMemoryStore(0)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, domain.MotionSample{Walking: true, Confidence: domain.NativeConfidenceHigh, StartDate: base}))
	p := coremotion.New(store)
	h := NewHandler(tracker.New(ctx, p))

	url := "/v1/history?start=2024-05-01T07:00:00Z&end=" + "1714554000"
	rec := serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, url, nil), auth.ScopeMotionRead))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.HistoricalActivity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.True(t, got[0].Walking)
	require.Equal(t, domain.ConfidenceHigh, got[0].Confidence)

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, "/v1/history?start=1714554000&end=1714550400", nil), auth.ScopeMotionRead))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, "/v1/history", nil), auth.ScopeMotionRead))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	p.AuthState().Report(platformReport(false))
	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, url, nil), auth.ScopeMotionRead))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHistoryWithoutSupportIsEmptyArray(t *testing.T) {
	for _, p := range []platform.Platform{
		platformtest.NewDiscrete(domain.PermissionAuthorized),
		unsupported.New(),
	} {
		h := NewHandler(tracker.New(context.Background(), p))

		for _, url := range []string{
			"/v1/history?start=0",
			"/v1/history?start=200&end=100",
			"/v1/history?start=yesterday",
			"/v1/history",
		} {
			rec := serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, url, nil), auth.ScopeMotionRead))
			require.Equal(t, http.StatusOK, rec.Code, url)
			require.JSONEq(t, `[]`, rec.Body.String(), url)
		}
	}
}

func TestNativeIngestDrivesContinuousTracking(t *testing.T) {
	ctx := context.Background()
	p := coremotion.New(coremotion.NewMemoryStore(0))
	tr := tracker.New(ctx, p)
	var got []domain.ActivityChangeEvent
	tr.AddListener(func(ev domain.ActivityChangeEvent) { got = append(got, ev) })
	h := NewHandler(tr, WithValidator(newValidator(t)), WithSampleIngest(p), WithAuthState(p.AuthState()))

	rec := serve(t, h, withScopes(httptest.NewRequest(http.MethodPut, "/v1/native/authorization", bytes.NewBufferString(`{"code":3,"available":true}`)), auth.ScopeNative))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, domain.PermissionAuthorized, tr.PermissionStatus(ctx))
	require.Equal(t, domain.TrackingStarted, tr.StartTracking(ctx))

	body := `{"samples":[{"walking":true,"confidence":1},{"walking":true,"confidence":2},{"running":true,"confidence":2}]}`
	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/native/coremotion/samples", bytes.NewBufferString(body)), auth.ScopeNative))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"accepted":3,"delivered":3,"store_errors":0}`, rec.Body.String())

	require.Len(t, got, 2)
	require.Equal(t, domain.ActivityWalking, got[0].ActivityType)
	require.Equal(t, domain.ConfidenceMedium, got[0].Confidence)
	require.Equal(t, domain.ActivityRunning, got[1].ActivityType)

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/native/coremotion/samples", bytes.NewBufferString(body)), auth.ScopeMotionWrite))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNativeEndpointsWithoutSupport(t *testing.T) {
	h := NewHandler(tracker.New(context.Background(), platformtest.NewDiscrete(domain.PermissionAuthorized)))

	rec := serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/native/coremotion/samples", bytes.NewBufferString(`{"samples":[{}]}`)), auth.ScopeNative))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConstantsAndLifecycle(t *testing.T) {
	p := platformtest.NewDiscrete(domain.PermissionAuthorized)
	tr := tracker.New(context.Background(), p)
	h := NewHandler(tr)

	rec := serve(t, h, withScopes(httptest.NewRequest(http.MethodGet, "/v1/constants", nil), auth.ScopeMotionRead))
	require.JSONEq(t, `{"platform":"fake-discrete","isGooglePlayServicesAvailable":true}`, rec.Body.String())

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/lifecycle/background", nil), auth.ScopeMotionWrite))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, p.ReceiverAttached())

	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/lifecycle/foreground", nil), auth.ScopeMotionWrite))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, p.ReceiverAttached())

	require.NoError(t, tr.Close(context.Background()))
	rec = serve(t, h, withScopes(httptest.NewRequest(http.MethodPost, "/v1/lifecycle/foreground", nil), auth.ScopeMotionWrite))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := NewHandler(tracker.New(context.Background(), platformtest.NewDiscrete(domain.PermissionAuthorized)))
	rec := serve(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func platformReport(available bool) platform.AuthReport {
	return platform.AuthReport{Code: coremotion.AuthAuthorized, Available: available}
}
