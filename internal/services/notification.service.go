package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/metrics"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/internal/tracing"
	"github.com/platformbuilds/mirador-sentinel/pkg/cache"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

// DispatchResult describes what one Dispatch call did. It is informational;
// channel failures are reported here, never as an error.
type DispatchResult struct {
	AlertID    string            `json:"alert_id"`
	Suppressed bool              `json:"suppressed"`
	Delivered  []string          `json:"delivered"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// NotificationService deduplicates alerts through a shared cooldown entry
// and fans them out to the delivery channels.
type NotificationService struct {
	store    cache.Store
	logger   logger.Logger
	tracer   *tracing.NotificationTracer
	now      func() time.Time
	channels []Channel

	mu             sync.RWMutex
	cooldown       time.Duration
	channelTimeout time.Duration
}

type NotificationOption func(*NotificationService)

// WithNotificationClock replaces time.Now for cooldown arithmetic.
func WithNotificationClock(now func() time.Time) NotificationOption {
	return func(s *NotificationService) { s.now = now }
}

func NewNotificationService(store cache.Store, cfg config.AlertingConfig, channels []Channel, log logger.Logger, opts ...NotificationOption) *NotificationService {
	s := &NotificationService{
		store:          store,
		logger:         log,
		tracer:         tracing.NewNotificationTracer("mirador-sentinel/notifications"),
		now:            time.Now,
		cooldown:       cfg.CooldownWindow(),
		channelTimeout: cfg.ChannelTimeout(),
	}

	hasLog := false
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if ch.Name() == ChannelLog {
			hasLog = true
		}
		s.channels = append(s.channels, ch)
	}
	if !hasLog {
		s.channels = append([]Channel{NewLogChannel(log)}, s.channels...)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewChannels builds every configured delivery channel. Channels whose
// configuration is incomplete are still returned and report Enabled false.
func NewChannels(cfg *config.Config, hub AlertBroadcaster, log logger.Logger) []Channel {
	timeout := cfg.Alerting.ChannelTimeout()
	channels := []Channel{
		NewLogChannel(log),
		NewEmailChannel(cfg.Integrations.Email, log),
		NewSlackChannel(cfg.Integrations.Slack, timeout, log),
		NewTeamsChannel(cfg.Integrations.MSTeams, timeout, log),
	}
	if hub != nil {
		channels = append(channels, NewStreamChannel(hub))
	}
	return channels
}

// UpdateConfig applies a reloaded alerting section. In-flight dispatches
// keep the window they started with.
func (s *NotificationService) UpdateConfig(cfg config.AlertingConfig) {
	s.mu.Lock()
	s.cooldown = cfg.CooldownWindow()
	s.channelTimeout = cfg.ChannelTimeout()
	s.mu.Unlock()
	s.logger.Info("Alerting configuration updated", "cooldown_minutes", cfg.CooldownMinutes)
}

func (s *NotificationService) settings() (time.Duration, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cooldown, s.channelTimeout
}

// EnabledChannels lists the names used when Dispatch is called without an
// explicit selection.
func (s *NotificationService) EnabledChannels() []string {
	names := make([]string, 0, len(s.channels))
	for _, ch := range s.channels {
		if ch.Enabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Dispatch delivers alert unless an alert for the same component and metric
// went out within the cooldown window. With no names every enabled channel
// is used; the log channel is always among them.
//
// The returned error is non-nil only for an invalid alert.
func (s *NotificationService) Dispatch(ctx context.Context, alert *models.Alert, channels ...string) (*DispatchResult, error) {
	if alert == nil {
		return nil, fmt.Errorf("%w: nil alert", ErrInvalidAlert)
	}
	if err := alert.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}

	ctx, span := s.tracer.StartDispatchSpan(ctx, alert)
	defer span.End()

	result := &DispatchResult{AlertID: alert.AlertID, Delivered: []string{}}
	cooldown, channelTimeout := s.settings()

	// Nothing to deliver to: leave the cooldown untouched.
	selected := s.selectChannels(channels)
	if len(selected) == 0 {
		s.logger.Warn("No enabled notification channel selected", "alert_id", alert.AlertID, "requested", channels)
		s.tracer.RecordDispatchOutcome(span, false, 0, 0)
		return result, nil
	}

	if s.inCooldown(ctx, alert, cooldown) {
		result.Suppressed = true
		metrics.NotificationsSuppressed.WithLabelValues(alert.Component).Inc()
		s.tracer.RecordDispatchOutcome(span, true, 0, 0)
		return result, nil
	}

	s.deliver(ctx, alert, selected, channelTimeout, result)
	s.tracer.RecordDispatchOutcome(span, false, len(result.Delivered), len(result.Failed))
	return result, nil
}

// inCooldown reads the last-sent instant and, when the alert may go out,
// records now with the window as TTL before any channel runs. Store
// failures never suppress.
func (s *NotificationService) inCooldown(ctx context.Context, alert *models.Alert, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return false
	}
	key := alert.CooldownKey()
	now := s.now()

	raw, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		last, perr := time.Parse(time.RFC3339Nano, string(raw))
		if perr != nil {
			s.logger.Warn("Ignoring unreadable cooldown entry", "key", key, "error", perr)
		} else if since := now.Sub(last); since < cooldown {
			s.logger.Debug("Alert suppressed by cooldown",
				"alert_id", alert.AlertID,
				"key", key,
				"last_sent", last,
				"remaining", cooldown-since,
			)
			return true
		}
	case errors.Is(err, cache.ErrKeyNotFound):
	default:
		metrics.CooldownCheckFailures.Inc()
		s.logger.Warn("Cooldown check failed, sending anyway", "key", key, "error", err)
	}

	if err := s.store.Set(ctx, key, now.UTC().Format(time.RFC3339Nano), cooldown); err != nil {
		s.logger.Warn("Failed to record cooldown", "key", key, "error", err)
	}
	return false
}

func (s *NotificationService) selectChannels(names []string) []Channel {
	if len(names) == 0 {
		selected := make([]Channel, 0, len(s.channels))
		for _, ch := range s.channels {
			if ch.Enabled() {
				selected = append(selected, ch)
			}
		}
		return selected
	}

	byName := make(map[string]Channel, len(s.channels))
	for _, ch := range s.channels {
		byName[ch.Name()] = ch
	}
	seen := make(map[string]bool, len(names))
	selected := make([]Channel, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		ch, ok := byName[name]
		if !ok {
			s.logger.Warn("Unknown notification channel requested", "channel", name)
			continue
		}
		if !ch.Enabled() {
			s.logger.Debug("Requested notification channel is disabled", "channel", name)
			continue
		}
		selected = append(selected, ch)
	}
	return selected
}

// deliver runs every channel concurrently, one attempt each, and waits for
// all of them.
func (s *NotificationService) deliver(ctx context.Context, alert *models.Alert, channels []Channel, timeout time.Duration, result *DispatchResult) {
	errs := make([]error, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			errs[i] = s.sendOne(ctx, alert, ch, timeout)
		}(i, ch)
	}
	wg.Wait()

	for i, ch := range channels {
		if errs[i] != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]string)
			}
			result.Failed[ch.Name()] = errs[i].Error()
			continue
		}
		result.Delivered = append(result.Delivered, ch.Name())
	}
}

func (s *NotificationService) sendOne(ctx context.Context, alert *models.Alert, ch Channel, timeout time.Duration) (err error) {
	ctx, span := s.tracer.StartChannelSpan(ctx, ch.Name())
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
		elapsed := time.Since(start)
		metrics.NotificationDuration.WithLabelValues(ch.Name()).Observe(elapsed.Seconds())
		metrics.NotificationsSent.WithLabelValues(ch.Name(), string(alert.Severity), strconv.FormatBool(err == nil)).Inc()
		s.tracer.RecordChannelResult(span, elapsed, err)
		if err != nil {
			s.logger.Error("Notification channel failed",
				"channel", ch.Name(),
				"alert_id", alert.AlertID,
				"component", alert.Component,
				"error", err,
			)
		}
	}()

	return ch.Send(ctx, alert)
}
