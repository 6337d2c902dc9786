package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sentinel/internal/api/handlers"
	"github.com/platformbuilds/mirador-sentinel/internal/api/middleware"
	"github.com/platformbuilds/mirador-sentinel/internal/api/websocket"
	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/monitoring"
	"github.com/platformbuilds/mirador-sentinel/internal/services"
	"github.com/platformbuilds/mirador-sentinel/pkg/cache"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	store      cache.Store
	dispatcher services.AlertDispatcher
	uptime     handlers.UptimeReader
	observer   handlers.CheckObserver
	hub        *websocket.Hub
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the HTTP surface. hub may be nil when the alert stream is
// disabled.
func NewServer(
	cfg *config.Config,
	log logger.Logger,
	store cache.Store,
	dispatcher services.AlertDispatcher,
	uptime handlers.UptimeReader,
	observer handlers.CheckObserver,
	hub *websocket.Hub,
) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:     cfg,
		logger:     log,
		store:      store,
		dispatcher: dispatcher,
		uptime:     uptime,
		observer:   observer,
		hub:        hub,
		router:     gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.logger))

	if s.config.Monitoring.Enabled && s.config.Monitoring.PrometheusEnabled {
		s.router.Use(monitoring.HTTPMetricsMiddleware())
		monitoring.SetupPrometheusMetrics(s.router, config.ServiceVersion)
	}

	s.router.Use(middleware.ErrorHandler(s.logger))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.store, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", healthHandler.HealthCheck)
	v1.GET("/ready", healthHandler.ReadinessCheck)

	alertHandler := handlers.NewAlertHandler(s.dispatcher, s.logger)
	v1.POST("/alerts", alertHandler.CreateAlert)

	uptimeHandler := handlers.NewUptimeHandler(s.uptime, s.observer, s.logger)
	v1.GET("/uptime/status", uptimeHandler.GetStatus)
	v1.GET("/uptime/records", uptimeHandler.GetRecords)
	v1.GET("/uptime/sla", uptimeHandler.GetSLA)
	v1.POST("/uptime/checks", uptimeHandler.RecordCheck)

	if s.hub != nil {
		s.router.GET("/ws/alerts", s.hub.ServeWS)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Sentinel HTTP server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down sentinel gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(config.DefaultShutdownTime)*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
