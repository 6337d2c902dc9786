package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// webhookClient posts JSON payloads to chat webhooks.
type webhookClient struct {
	client *http.Client
	logger logger.Logger
}

func newWebhookClient(timeout time.Duration, log logger.Logger) *webhookClient {
	return &webhookClient{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

// post sends payload once. Any non-2xx answer is a *WebhookStatusError.
func (w *webhookClient) post(ctx context.Context, channel, url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s webhook: %w", channel, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &WebhookStatusError{Channel: channel, StatusCode: resp.StatusCode}
	}
	return nil
}

// SlackChannel posts an attachment-style message to a Slack incoming webhook.
type SlackChannel struct {
	config config.SlackConfig
	hook   *webhookClient
	logger logger.Logger
}

func NewSlackChannel(cfg config.SlackConfig, timeout time.Duration, log logger.Logger) *SlackChannel {
	return &SlackChannel{
		config: cfg,
		hook:   newWebhookClient(timeout, log),
		logger: log,
	}
}

func (c *SlackChannel) Name() string { return ChannelSlack }

// Enabled requires both the flag and a webhook URL.
func (c *SlackChannel) Enabled() bool {
	return c.config.Enabled && c.config.WebhookURL != ""
}

func (c *SlackChannel) Send(ctx context.Context, alert *models.Alert) error {
	if !c.Enabled() {
		return ErrChannelDisabled
	}
	if err := c.hook.post(ctx, ChannelSlack, c.config.WebhookURL, slackPayload(alert, c.config.Channel)); err != nil {
		return err
	}
	c.logger.Info("Slack notification sent", "alert_id", alert.AlertID, "component", alert.Component)
	return nil
}

func slackPayload(alert *models.Alert, channel string) map[string]interface{} {
	fields := []map[string]interface{}{
		{"title": "Severity", "value": strings.ToUpper(string(alert.Severity)), "short": true},
		{"title": "Component", "value": alert.Component, "short": true},
	}
	if alert.Metric != nil {
		fields = append(fields, map[string]interface{}{"title": "Metric", "value": *alert.Metric, "short": true})
	}
	if vt := valueThreshold(alert); vt != "" {
		fields = append(fields, map[string]interface{}{"title": "Value / Threshold", "value": vt, "short": true})
	}

	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color":  alert.Severity.SlackColor(),
				"title":  alert.Title,
				"text":   alert.Message,
				"fields": fields,
				"footer": "mirador-sentinel",
				"ts":     alert.Timestamp.Unix(),
			},
		},
	}
	if channel != "" {
		payload["channel"] = channel
	}
	return payload
}

// TeamsChannel posts a MessageCard to a Microsoft Teams connector.
type TeamsChannel struct {
	config config.MSTeamsConfig
	hook   *webhookClient
	logger logger.Logger
}

func NewTeamsChannel(cfg config.MSTeamsConfig, timeout time.Duration, log logger.Logger) *TeamsChannel {
	return &TeamsChannel{
		config: cfg,
		hook:   newWebhookClient(timeout, log),
		logger: log,
	}
}

func (c *TeamsChannel) Name() string { return ChannelTeams }

func (c *TeamsChannel) Enabled() bool {
	return c.config.Enabled && c.config.WebhookURL != ""
}

func (c *TeamsChannel) Send(ctx context.Context, alert *models.Alert) error {
	if !c.Enabled() {
		return ErrChannelDisabled
	}
	if err := c.hook.post(ctx, ChannelTeams, c.config.WebhookURL, teamsPayload(alert)); err != nil {
		return err
	}
	c.logger.Info("MS Teams notification sent", "alert_id", alert.AlertID, "component", alert.Component)
	return nil
}

func teamsPayload(alert *models.Alert) map[string]interface{} {
	facts := []map[string]interface{}{
		{"name": "Severity", "value": strings.ToUpper(string(alert.Severity))},
		{"name": "Component", "value": alert.Component},
	}
	if alert.Metric != nil {
		facts = append(facts, map[string]interface{}{"name": "Metric", "value": *alert.Metric})
	}
	if vt := valueThreshold(alert); vt != "" {
		facts = append(facts, map[string]interface{}{"name": "Value / Threshold", "value": vt})
	}
	facts = append(facts, map[string]interface{}{"name": "Time", "value": alert.Timestamp.Format(time.RFC3339)})

	return map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"summary":    alert.Title,
		"themeColor": strings.TrimPrefix(alert.Severity.Color(), "#"),
		"sections": []map[string]interface{}{
			{
				"activityTitle":    alert.Title,
				"activitySubtitle": alert.Component,
				"text":             alert.Message,
				"facts":            facts,
			},
		},
	}
}

// valueThreshold renders "current / threshold", using "-" for a missing side.
// Empty when neither is set.
func valueThreshold(alert *models.Alert) string {
	if alert.CurrentValue == nil && alert.Threshold == nil {
		return ""
	}
	return formatOptional(alert.CurrentValue) + " / " + formatOptional(alert.Threshold)
}

func formatOptional(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
