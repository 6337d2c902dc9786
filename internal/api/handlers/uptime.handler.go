package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sentinel/internal/api/middleware"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/internal/services"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

const maxWindowHours = 720

// UptimeReader is the read side of services.UptimeService.
type UptimeReader interface {
	GetCurrentStatus(ctx context.Context) models.StatusSnapshot
	GetRecords(ctx context.Context, windowHours int) []models.UptimeRecord
	ComputeSLA(ctx context.Context, windowHours int) models.SLAMetrics
}

// CheckObserver accepts pushed check results; services.HealthProber
// implements it so pushed transitions raise the same alerts as probed ones.
type CheckObserver interface {
	Observe(ctx context.Context, isUp bool, responseTimeMs *float64, errMsg string) services.CheckOutcome
}

type UptimeHandler struct {
	reader   UptimeReader
	observer CheckObserver
	logger   logger.Logger
}

func NewUptimeHandler(reader UptimeReader, observer CheckObserver, logger logger.Logger) *UptimeHandler {
	return &UptimeHandler{reader: reader, observer: observer, logger: logger}
}

// GET /api/v1/uptime/status
func (h *UptimeHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.reader.GetCurrentStatus(c.Request.Context()))
}

// GET /api/v1/uptime/records?hours=N
func (h *UptimeHandler) GetRecords(c *gin.Context) {
	hours, err := windowHours(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	records := h.reader.GetRecords(c.Request.Context(), hours)
	c.JSON(http.StatusOK, gin.H{
		"window_hours": hours,
		"count":        len(records),
		"records":      records,
	})
}

// GET /api/v1/uptime/sla?hours=N
func (h *UptimeHandler) GetSLA(c *gin.Context) {
	hours, err := windowHours(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.reader.ComputeSLA(c.Request.Context(), hours))
}

// RecordCheckRequest is the body of POST /api/v1/uptime/checks.
type RecordCheckRequest struct {
	IsUp           *bool    `json:"is_up" binding:"required"`
	ResponseTimeMs *float64 `json:"response_time_ms"`
	ErrorMessage   string   `json:"error_message"`
}

// POST /api/v1/uptime/checks - external probes push a result
func (h *UptimeHandler) RecordCheck(c *gin.Context) {
	var req RecordCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", middleware.ErrBadRequest, err))
		return
	}
	if req.ResponseTimeMs != nil && *req.ResponseTimeMs < 0 {
		_ = c.Error(fmt.Errorf("%w: response_time_ms must not be negative", middleware.ErrBadRequest))
		return
	}
	outcome := h.observer.Observe(c.Request.Context(), *req.IsUp, req.ResponseTimeMs, req.ErrorMessage)
	c.JSON(http.StatusCreated, outcome)
}

func windowHours(c *gin.Context) (int, error) {
	raw := c.Query("hours")
	if raw == "" {
		return services.DefaultSLAWindowHours, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 1 || hours > maxWindowHours {
		return 0, fmt.Errorf("%w: hours must be an integer between 1 and %d", middleware.ErrBadRequest, maxWindowHours)
	}
	return hours, nil
}
