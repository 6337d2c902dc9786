package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-sentinel/internal/api/middleware"
	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/internal/services"
	"github.com/platformbuilds/mirador-sentinel/pkg/cache"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, alert *models.Alert, channels ...string) (*services.DispatchResult, error) {
	args := m.Called(ctx, alert, channels)
	r, _ := args.Get(0).(*services.DispatchResult)
	return r, args.Error(1)
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler(logger.NewNop()))
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	r := newRouter()
	h := NewHealthHandler(stubHealth{}, logger.NewNop())
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.ReadinessCheck)

	w := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), config.ServiceName)

	w = do(r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	down := newRouter()
	down.GET("/ready", NewHealthHandler(stubHealth{err: errors.New("valkey unreachable")}, logger.NewNop()).ReadinessCheck)
	w = do(down, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "valkey unreachable")
}

func TestReadiness_MemoryStoreIsDegraded(t *testing.T) {
	r := newRouter()
	r.GET("/ready", NewHealthHandler(cache.NewMemoryStore(logger.NewNop()), logger.NewNop()).ReadinessCheck)
	w := do(r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	assert.Contains(t, w.Body.String(), "in-memory store")
}

func TestAlertHandler_Accepted(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(a *models.Alert) bool {
		v, _ := a.Metadata.Get("station")
		return a.Title == "PM2.5 high" && a.Severity == models.SeverityCritical &&
			a.MetricName() == "pm25" && *a.Threshold == 35 && v == "north"
	}), []string{"slack"}).Return(&services.DispatchResult{AlertID: "abc", Delivered: []string{"slack"}}, nil)

	r := newRouter()
	r.POST("/api/v1/alerts", NewAlertHandler(d, logger.NewNop()).CreateAlert)

	w := do(r, http.MethodPost, "/api/v1/alerts", `{
		"title": "PM2.5 high", "message": "station north", "severity": "critical",
		"component": "sensors", "metric": "pm25", "current_value": 80, "threshold": 35,
		"metadata": {"station": "north"}, "channels": ["slack"]
	}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var res services.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "abc", res.AlertID)
	assert.Equal(t, []string{"slack"}, res.Delivered)
	d.AssertExpectations(t)
}

func TestAlertHandler_BadRequests(t *testing.T) {
	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid alert: metadata \"x\" is not a scalar")).Maybe()

	r := newRouter()
	r.POST("/api/v1/alerts", NewAlertHandler(d, logger.NewNop()).CreateAlert)

	cases := map[string]string{
		"not json":         `{`,
		"missing title":    `{"severity":"info","component":"api"}`,
		"unknown severity": `{"title":"t","severity":"fatal","component":"api"}`,
	}
	for name, body := range cases {
		w := do(r, http.MethodPost, "/api/v1/alerts", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Contains(t, w.Body.String(), "BAD_REQUEST", name)
	}
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestAlertHandler_DispatchValidationError(t *testing.T) {
	svc := services.NewNotificationService(cache.NewMemoryStore(logger.NewNop()),
		config.AlertingConfig{CooldownMinutes: 60, ChannelTimeoutSeconds: 1}, nil, logger.NewNop())

	r := newRouter()
	r.POST("/api/v1/alerts", NewAlertHandler(svc, logger.NewNop()).CreateAlert)

	w := do(r, http.MethodPost, "/api/v1/alerts", `{"title":"t","severity":"info","component":"api","metadata":{"nested":{"a":1}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertHandler_SuppressedIsStillAccepted(t *testing.T) {
	svc := services.NewNotificationService(cache.NewMemoryStore(logger.NewNop()),
		config.AlertingConfig{CooldownMinutes: 60, ChannelTimeoutSeconds: 1}, nil, logger.NewNop())

	r := newRouter()
	r.POST("/api/v1/alerts", NewAlertHandler(svc, logger.NewNop()).CreateAlert)

	body := `{"title":"Disk","severity":"warning","component":"db","metric":"disk_used"}`
	first := do(r, http.MethodPost, "/api/v1/alerts", body)
	require.Equal(t, http.StatusAccepted, first.Code)
	second := do(r, http.MethodPost, "/api/v1/alerts", body)
	require.Equal(t, http.StatusAccepted, second.Code)

	var res services.DispatchResult
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &res))
	assert.True(t, res.Suppressed)
}

func newUptimeRouter(t *testing.T) (*gin.Engine, *services.UptimeService) {
	t.Helper()
	cfg := config.UptimeConfig{Component: "api", CheckIntervalSeconds: 60, SLATargetPercent: 99.5, RetentionDays: 30}
	uptime := services.NewUptimeService(cache.NewMemoryStore(logger.NewNop()), cfg, logger.NewNop())
	prober := services.NewHealthProber(cfg, uptime, nil, logger.NewNop())

	h := NewUptimeHandler(uptime, prober, logger.NewNop())
	r := newRouter()
	r.GET("/api/v1/uptime/status", h.GetStatus)
	r.GET("/api/v1/uptime/records", h.GetRecords)
	r.GET("/api/v1/uptime/sla", h.GetSLA)
	r.POST("/api/v1/uptime/checks", h.RecordCheck)
	return r, uptime
}

func TestUptimeHandler_PushAndRead(t *testing.T) {
	r, _ := newUptimeRouter(t)

	w := do(r, http.MethodGet, "/api/v1/uptime/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unknown"`)

	w = do(r, http.MethodPost, "/api/v1/uptime/checks", `{"is_up": true, "response_time_ms": 42.5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var outcome services.CheckOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, models.StatusUp, outcome.Record.Status)
	assert.Equal(t, models.StatusUnknown, outcome.Previous)

	w = do(r, http.MethodGet, "/api/v1/uptime/status", nil)
	assert.Contains(t, w.Body.String(), `"status":"up"`)

	w = do(r, http.MethodGet, "/api/v1/uptime/records?hours=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records struct {
		WindowHours int                   `json:"window_hours"`
		Count       int                   `json:"count"`
		Records     []models.UptimeRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Equal(t, 1, records.WindowHours)
	assert.Equal(t, 1, records.Count)
	require.NotNil(t, records.Records[0].ResponseTimeMs)
	assert.Equal(t, 42.5, *records.Records[0].ResponseTimeMs)

	w = do(r, http.MethodGet, "/api/v1/uptime/sla", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sla models.SLAMetrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sla))
	assert.Equal(t, 1, sla.TotalChecks)
	assert.Equal(t, 100.0, sla.UptimePercent)
	assert.True(t, sla.SLAMet)
	assert.InDelta(t, 24*time.Hour.Seconds(), sla.PeriodEnd.Sub(sla.PeriodStart).Seconds(), 1)
}

func TestUptimeHandler_WindowValidation(t *testing.T) {
	r, _ := newUptimeRouter(t)

	for _, q := range []string{"0", "721", "-3", "abc", "1.5"} {
		for _, path := range []string{"/api/v1/uptime/sla", "/api/v1/uptime/records"} {
			w := do(r, http.MethodGet, path+"?hours="+q, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, "%s hours=%s", path, q)
		}
	}
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/uptime/sla?hours=720", nil).Code)
}

func TestUptimeHandler_RecordCheckValidation(t *testing.T) {
	r, _ := newUptimeRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/uptime/checks", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(r, http.MethodPost, "/api/v1/uptime/checks", `{"is_up": true, "response_time_ms": -1}`).Code)
	assert.Equal(t, http.StatusCreated,
		do(r, http.MethodPost, "/api/v1/uptime/checks", `{"is_up": false, "error_message": "edge timeout"}`).Code)
}
