package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/pkg/cache"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// StoreHealth is satisfied by cache.Store.
type StoreHealth interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	store  StoreHealth
	logger logger.Logger
}

func NewHealthHandler(store StoreHealth, logger logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// GET /health - Quick liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   config.ServiceName,
		"version":   config.ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /ready - readiness depends only on the shared store. The in-memory
// fallback is ready but reported as degraded; an unreachable store is not
// ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "healthy", http.StatusOK
	resp := gin.H{
		"service":   config.ServiceName,
		"version":   config.ServiceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	err := h.store.HealthCheck(ctx)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrDegraded):
		status = "degraded"
		resp["warning"] = err.Error()
	default:
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
		resp["error"] = err.Error()
		h.logger.Warn("Readiness check failed", "error", err)
	}
	resp["status"] = status
	c.JSON(httpStatus, resp)
}
