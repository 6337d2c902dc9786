package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

const (
	MetricAvailability          = "availability"
	MetricAvailabilityRecovered = "availability_recovered"
)

// CheckRecorder is the part of UptimeService the prober needs.
type CheckRecorder interface {
	RecordCheck(ctx context.Context, isUp bool, responseTimeMs *float64, errorMessage string) CheckOutcome
}

// AlertDispatcher is the part of NotificationService the prober needs.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert, channels ...string) (*DispatchResult, error)
}

// HealthProber polls a target URL on a fixed interval, records each result
// and raises an alert when availability changes.
type HealthProber struct {
	cfg        config.UptimeConfig
	recorder   CheckRecorder
	dispatcher AlertDispatcher
	client     *http.Client
	logger     logger.Logger
}

func NewHealthProber(cfg config.UptimeConfig, recorder CheckRecorder, dispatcher AlertDispatcher, log logger.Logger) *HealthProber {
	return &HealthProber{
		cfg:        cfg,
		recorder:   recorder,
		dispatcher: dispatcher,
		client:     &http.Client{Timeout: cfg.Timeout()},
		logger:     log,
	}
}

func (p *HealthProber) Enabled() bool {
	return p.cfg.TargetURL != ""
}

// Run checks once immediately, then every check interval, until ctx is
// cancelled.
func (p *HealthProber) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Info("Health prober disabled: no uptime target configured")
		return
	}
	interval := p.cfg.CheckInterval()
	if interval <= 0 {
		interval = time.Duration(config.DefaultCheckInterval) * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("Health prober started", "target", p.cfg.TargetURL, "interval", interval)

	p.ProbeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Health prober stopped")
			return
		case <-ticker.C:
			p.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce performs a single check and returns what was recorded.
func (p *HealthProber) ProbeOnce(ctx context.Context) CheckOutcome {
	isUp, elapsedMs, errMsg := p.check(ctx)

	var rt *float64
	if isUp {
		rt = &elapsedMs
	}
	return p.Observe(ctx, isUp, rt, errMsg)
}

// Observe records a check result, whether probed here or pushed by an
// external prober, and raises an alert when availability changes.
func (p *HealthProber) Observe(ctx context.Context, isUp bool, responseTimeMs *float64, errMsg string) CheckOutcome {
	outcome := p.recorder.RecordCheck(ctx, isUp, responseTimeMs, errMsg)
	target := p.target()

	switch {
	case outcome.WentDown():
		p.raise(ctx, models.NewAlert(
			"Service unavailable",
			fmt.Sprintf("Health check against %s failed: %s", target, errMsg),
			models.SeverityCritical,
			p.component(),
			models.WithMetric(MetricAvailability),
			models.WithMetadata("target_url", target),
			models.WithMetadata("error", errMsg),
		))
	case outcome.Recovered():
		opts := []models.AlertOption{
			models.WithMetric(MetricAvailabilityRecovered),
			models.WithMetadata("target_url", target),
		}
		if responseTimeMs != nil {
			opts = append(opts, models.WithMetadata("response_time_ms", *responseTimeMs))
		}
		msg := fmt.Sprintf("%s is answering health checks again", target)
		if outcome.DowntimeMinutes != nil {
			opts = append(opts, models.WithMetadata("downtime_minutes", *outcome.DowntimeMinutes))
			msg = fmt.Sprintf("%s recovered after %.2f minutes of downtime", target, *outcome.DowntimeMinutes)
		}
		p.raise(ctx, models.NewAlert("Service recovered", msg, models.SeverityInfo, p.component(), opts...))
	}
	return outcome
}

func (p *HealthProber) target() string {
	if p.cfg.TargetURL == "" {
		return p.component()
	}
	return p.cfg.TargetURL
}

func (p *HealthProber) component() string {
	if p.cfg.Component == "" {
		return config.DefaultComponent
	}
	return p.cfg.Component
}

func (p *HealthProber) raise(ctx context.Context, alert *models.Alert) {
	if p.dispatcher == nil {
		return
	}
	if _, err := p.dispatcher.Dispatch(ctx, alert); err != nil {
		p.logger.Error("Failed to dispatch availability alert", "alert_id", alert.AlertID, "error", err)
	}
}

// check returns up, the elapsed milliseconds and, when down, the reason.
func (p *HealthProber) check(ctx context.Context) (bool, float64, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.TargetURL, nil)
	if err != nil {
		return false, 0, err.Error()
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		return false, elapsedMs, err.Error()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, elapsedMs, fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return true, elapsedMs, ""
}
