package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// Channel names used in configuration, metrics and Dispatch selections.
const (
	ChannelLog    = "log"
	ChannelEmail  = "email"
	ChannelSlack  = "slack"
	ChannelTeams  = "teams"
	ChannelStream = "stream"
)

var (
	ErrInvalidAlert     = errors.New("invalid alert")
	ErrNoRecipients     = errors.New("no recipients configured")
	ErrRelayUnreachable = errors.New("mail relay unreachable")
	ErrChannelDisabled  = errors.New("channel disabled")
)

// WebhookStatusError is returned when a chat webhook answers with a non-2xx
// status.
type WebhookStatusError struct {
	Channel    string
	StatusCode int
}

func (e *WebhookStatusError) Error() string {
	return fmt.Sprintf("%s webhook returned %d", e.Channel, e.StatusCode)
}

// Channel delivers one alert to one destination. Send makes at most one
// attempt; retries are the caller's decision.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert *models.Alert) error
}

// LogChannel writes the alert to the service log. It is always enabled.
type LogChannel struct {
	logger logger.Logger
}

func NewLogChannel(log logger.Logger) *LogChannel {
	return &LogChannel{logger: log}
}

func (c *LogChannel) Name() string  { return ChannelLog }
func (c *LogChannel) Enabled() bool { return true }

func (c *LogChannel) Send(ctx context.Context, alert *models.Alert) error {
	fields := alertFields(alert)
	msg := "ALERT: " + alert.Title
	switch alert.Severity.LogLevel() {
	case "error":
		c.logger.Error(msg, fields...)
	case "warn":
		c.logger.Warn(msg, fields...)
	default:
		c.logger.Info(msg, fields...)
	}
	return nil
}

func alertFields(alert *models.Alert) []interface{} {
	fields := []interface{}{
		"alert_id", alert.AlertID,
		"severity", string(alert.Severity),
		"component", alert.Component,
		"message", alert.Message,
		"timestamp", alert.Timestamp,
	}
	if alert.Metric != nil {
		fields = append(fields, "metric", *alert.Metric)
	}
	if alert.CurrentValue != nil {
		fields = append(fields, "current_value", *alert.CurrentValue)
	}
	if alert.Threshold != nil {
		fields = append(fields, "threshold", *alert.Threshold)
	}
	if len(alert.Metadata) > 0 {
		fields = append(fields, "metadata", alert.Metadata)
	}
	return fields
}

// AlertBroadcaster fans an alert out to live subscribers.
type AlertBroadcaster interface {
	BroadcastAlert(alert *models.Alert)
}

// StreamChannel pushes alerts to connected dashboard clients. Having no
// subscribers is not a failure.
type StreamChannel struct {
	hub AlertBroadcaster
}

func NewStreamChannel(hub AlertBroadcaster) *StreamChannel {
	return &StreamChannel{hub: hub}
}

func (c *StreamChannel) Name() string  { return ChannelStream }
func (c *StreamChannel) Enabled() bool { return c.hub != nil }

func (c *StreamChannel) Send(ctx context.Context, alert *models.Alert) error {
	if c.hub == nil {
		return ErrChannelDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.hub.BroadcastAlert(alert)
	return nil
}
