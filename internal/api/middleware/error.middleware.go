package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/internal/services"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// ErrBadRequest marks handler errors caused by the request itself.
var ErrBadRequest = errors.New("bad request")

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := StatusFor(err)

		if status >= http.StatusInternalServerError {
			log.Error("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
		} else {
			log.Debug("Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
		}

		c.JSON(status, ErrorResponse{
			Error:     err.Error(),
			Code:      codeFor(status),
			RequestID: c.GetString(requestIDKey),
		})
	}
}

// StatusFor maps an error to the HTTP status it should produce.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, services.ErrInvalidAlert),
		errors.Is(err, models.ErrInvalidAlertField):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusGatewayTimeout:
		return "TIMEOUT"
	default:
		return "INTERNAL_ERROR"
	}
}
