package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/mirador-sentinel/internal/api/websocket"
	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/services"
	"github.com/platformbuilds/mirador-sentinel/pkg/cache"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

func newTestServer(t *testing.T, withHub bool) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.GetDefaultConfig()
	log := logger.NewNop()
	store := cache.NewMemoryStore(log)

	var hub *websocket.Hub
	var broadcaster services.AlertBroadcaster
	if withHub {
		hub = websocket.NewHub(cfg.WebSocket, log)
		broadcaster = hub
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go hub.Run(ctx)
	}

	notifier := services.NewNotificationService(store, cfg.Alerting, services.NewChannels(cfg, broadcaster, log), log)
	uptime := services.NewUptimeService(store, cfg.Uptime, log)
	prober := services.NewHealthProber(cfg.Uptime, uptime, notifier, log)
	return NewServer(cfg, log, store, notifier, uptime, prober, hub)
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, true)

	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/v1/uptime/status", "", http.StatusOK},
		{http.MethodGet, "/api/v1/uptime/sla?hours=24", "", http.StatusOK},
		{http.MethodGet, "/api/v1/uptime/records?hours=999", "", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/alerts", `{"title":"t","severity":"info","component":"api"}`, http.StatusAccepted},
		{http.MethodPost, "/api/v1/uptime/checks", `{"is_up":true,"response_time_ms":3}`, http.StatusCreated},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "%s %s: %s", tc.method, tc.path, w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), tc.path)
	}
}

func TestServer_StreamRouteOnlyWithHub(t *testing.T) {
	with := httptest.NewServer(newTestServer(t, true).Handler())
	defer with.Close()
	without := httptest.NewServer(newTestServer(t, false).Handler())
	defer without.Close()

	resp, err := http.Get(with.URL + "/ws/alerts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "plain GET is not a websocket handshake")

	resp, err = http.Get(without.URL + "/ws/alerts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	srv := newTestServer(t, false)
	srv.config.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
