package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sentinel/internal/api/middleware"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/internal/services"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

type AlertHandler struct {
	dispatcher services.AlertDispatcher
	logger     logger.Logger
}

func NewAlertHandler(dispatcher services.AlertDispatcher, logger logger.Logger) *AlertHandler {
	return &AlertHandler{dispatcher: dispatcher, logger: logger}
}

// CreateAlertRequest is the body of POST /api/v1/alerts. Timestamp defaults
// to the time of receipt; Channels, when set, restricts delivery.
type CreateAlertRequest struct {
	Title        string          `json:"title" binding:"required"`
	Message      string          `json:"message"`
	Severity     string          `json:"severity" binding:"required"`
	Component    string          `json:"component" binding:"required"`
	Metric       *string         `json:"metric"`
	CurrentValue *float64        `json:"current_value"`
	Threshold    *float64        `json:"threshold"`
	Metadata     models.Metadata `json:"metadata"`
	Timestamp    *time.Time      `json:"timestamp"`
	Channels     []string        `json:"channels"`
}

func (r CreateAlertRequest) toAlert() (*models.Alert, error) {
	severity, err := models.ParseSeverity(r.Severity)
	if err != nil {
		return nil, err
	}
	var opts []models.AlertOption
	if r.Metric != nil {
		opts = append(opts, models.WithMetric(*r.Metric))
	}
	if r.CurrentValue != nil {
		opts = append(opts, models.WithCurrentValue(*r.CurrentValue))
	}
	if r.Threshold != nil {
		opts = append(opts, models.WithThreshold(*r.Threshold))
	}
	for _, e := range r.Metadata {
		opts = append(opts, models.WithMetadata(e.Key, e.Value))
	}
	if r.Timestamp != nil {
		opts = append(opts, models.WithTimestamp(*r.Timestamp))
	}
	return models.NewAlert(r.Title, r.Message, severity, r.Component, opts...), nil
}

// POST /api/v1/alerts - dispatch an alert through the enabled channels.
// Suppression by cooldown is a normal 202 outcome, visible in the body.
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", middleware.ErrBadRequest, err))
		return
	}
	alert, err := req.toAlert()
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", middleware.ErrBadRequest, err))
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), alert, req.Channels...)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}
