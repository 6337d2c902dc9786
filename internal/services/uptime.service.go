package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/metrics"
	"github.com/platformbuilds/mirador-sentinel/internal/models"
	"github.com/platformbuilds/mirador-sentinel/internal/tracing"
	"github.com/platformbuilds/mirador-sentinel/pkg/cache"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

const (
	uptimeCheckPrefix  = "uptime:check:"
	uptimeStatusKey    = "uptime:status"
	uptimeDowntimeKey  = "uptime:downtime_start"
	uptimeSLAKeyPrefix = "uptime:sla:"

	DefaultSLAWindowHours = 24
)

// CheckOutcome is what RecordCheck wrote, plus the status it replaced.
// DowntimeMinutes is set only when the check closed a downtime span.
type CheckOutcome struct {
	Record          models.UptimeRecord `json:"record"`
	Previous        models.UptimeStatus `json:"previous_status"`
	DowntimeMinutes *float64            `json:"downtime_minutes,omitempty"`
}

// WentDown reports an up (or unknown) to down transition.
func (o CheckOutcome) WentDown() bool {
	return o.Record.Status == models.StatusDown && o.Previous != models.StatusDown
}

// Recovered reports a down to up transition.
func (o CheckOutcome) Recovered() bool {
	return o.Record.Status == models.StatusUp && o.Previous == models.StatusDown
}

// UptimeService records health checks in the shared store and derives
// availability and SLA figures from them. All state lives in the store, so
// several replicas see the same history.
type UptimeService struct {
	store     cache.Store
	logger    logger.Logger
	tracer    *tracing.NotificationTracer
	now       func() time.Time
	startedAt time.Time

	mu  sync.RWMutex
	cfg config.UptimeConfig
}

type UptimeOption func(*UptimeService)

func WithUptimeClock(now func() time.Time) UptimeOption {
	return func(s *UptimeService) { s.now = now }
}

func NewUptimeService(store cache.Store, cfg config.UptimeConfig, log logger.Logger, opts ...UptimeOption) *UptimeService {
	s := &UptimeService{
		store:  store,
		logger: log,
		tracer: tracing.NewNotificationTracer("mirador-sentinel/uptime"),
		now:    time.Now,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	return s
}

func (s *UptimeService) UpdateConfig(cfg config.UptimeConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *UptimeService) config() config.UptimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// RecordCheck stores one observation and maintains the status flag and the
// downtime-start marker. Store failures are logged, never returned.
func (s *UptimeService) RecordCheck(ctx context.Context, isUp bool, responseTimeMs *float64, errorMessage string) CheckOutcome {
	cfg := s.config()
	now := s.now().UTC()

	record := models.UptimeRecord{
		Timestamp:      now,
		Status:         models.StatusDown,
		ResponseTimeMs: responseTimeMs,
		ErrorMessage:   errorMessage,
	}
	if isUp {
		record.Status = models.StatusUp
	}
	outcome := CheckOutcome{Record: record, Previous: s.readStatus(ctx)}

	key := uptimeCheckPrefix + strconv.FormatInt(now.Unix(), 10)
	if err := s.store.Set(ctx, key, record, cfg.Retention()); err != nil {
		s.logger.Error("Failed to store uptime record", "key", key, "error", err)
	}
	if err := s.store.Set(ctx, uptimeStatusKey, string(record.Status), 0); err != nil {
		s.logger.Error("Failed to update uptime status", "error", err)
	}

	if isUp {
		metrics.UptimeChecks.WithLabelValues("up").Inc()
		metrics.ServiceUp.Set(1)
		if responseTimeMs != nil {
			metrics.CheckResponseTime.Observe(*responseTimeMs)
		}
		if start, ok := s.downtimeStart(ctx); ok {
			minutes := round2(now.Sub(start).Minutes())
			outcome.DowntimeMinutes = &minutes
			if err := s.store.Delete(ctx, uptimeDowntimeKey); err != nil {
				s.logger.Error("Failed to clear downtime marker", "error", err)
			}
			s.logger.Info("Service recovered", "downtime_minutes", minutes)
		}
		return outcome
	}

	metrics.UptimeChecks.WithLabelValues("down").Inc()
	metrics.ServiceUp.Set(0)
	if _, ok := s.downtimeStart(ctx); !ok {
		if err := s.store.Set(ctx, uptimeDowntimeKey, now.Format(time.RFC3339Nano), 0); err != nil {
			s.logger.Error("Failed to set downtime marker", "error", err)
		}
		s.logger.Warn("Service down", "error_message", errorMessage)
	}
	return outcome
}

func (s *UptimeService) readStatus(ctx context.Context) models.UptimeStatus {
	raw, err := s.store.Get(ctx, uptimeStatusKey)
	if err != nil {
		if !errors.Is(err, cache.ErrKeyNotFound) {
			s.logger.Warn("Failed to read uptime status", "error", err)
		}
		return models.StatusUnknown
	}
	switch st := models.UptimeStatus(raw); st {
	case models.StatusUp, models.StatusDown:
		return st
	default:
		return models.StatusUnknown
	}
}

func (s *UptimeService) downtimeStart(ctx context.Context) (time.Time, bool) {
	raw, err := s.store.Get(ctx, uptimeDowntimeKey)
	if err != nil {
		if !errors.Is(err, cache.ErrKeyNotFound) {
			s.logger.Warn("Failed to read downtime marker", "error", err)
		}
		return time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		s.logger.Warn("Ignoring unreadable downtime marker", "value", string(raw), "error", err)
		return time.Time{}, false
	}
	return start, true
}

// GetRecords returns the records of the last windowHours, newest first.
// Unreadable entries are skipped; a store failure yields an empty slice.
func (s *UptimeService) GetRecords(ctx context.Context, windowHours int) []models.UptimeRecord {
	if windowHours <= 0 {
		windowHours = DefaultSLAWindowHours
	}
	cutoff := s.now().Add(-time.Duration(windowHours) * time.Hour)
	records := s.recordsSince(ctx, cutoff)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

func (s *UptimeService) recordsSince(ctx context.Context, cutoff time.Time) []models.UptimeRecord {
	records := make([]models.UptimeRecord, 0)

	keys, err := s.store.Keys(ctx, uptimeCheckPrefix+"*")
	if err != nil {
		s.logger.Warn("Failed to list uptime records", "error", err)
		return records
	}

	for _, key := range keys {
		// The key already carries the check time; skip old ones without a fetch.
		if sec, err := strconv.ParseInt(strings.TrimPrefix(key, uptimeCheckPrefix), 10, 64); err == nil {
			if time.Unix(sec, 0).Before(cutoff.Truncate(time.Second)) {
				continue
			}
		}

		raw, err := s.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, cache.ErrKeyNotFound) {
				s.logger.Warn("Failed to read uptime record", "key", key, "error", err)
			}
			continue
		}
		var r models.UptimeRecord
		if err := json.Unmarshal(raw, &r); err != nil || r.Timestamp.IsZero() {
			s.logger.Debug("Skipping malformed uptime record", "key", key)
			continue
		}
		if r.Status != models.StatusUp && r.Status != models.StatusDown {
			s.logger.Debug("Skipping uptime record with unknown status", "key", key, "status", r.Status)
			continue
		}
		if r.Timestamp.Before(cutoff) {
			continue
		}
		records = append(records, r)
	}
	return records
}

// ComputeSLA summarises the last windowHours. Results are cached for one
// check interval per window size.
func (s *UptimeService) ComputeSLA(ctx context.Context, windowHours int) models.SLAMetrics {
	if windowHours <= 0 {
		windowHours = DefaultSLAWindowHours
	}
	ctx, span := s.tracer.StartSLASpan(ctx, windowHours)
	defer span.End()

	cfg := s.config()
	cacheKey := uptimeSLAKeyPrefix + strconv.Itoa(windowHours)

	if raw, err := s.store.Get(ctx, cacheKey); err == nil {
		var cached models.SLAMetrics
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached
		}
	}

	end := s.now().UTC()
	start := end.Add(-time.Duration(windowHours) * time.Hour)
	result := ComputeSLAMetrics(s.recordsSince(ctx, start), start, end, cfg.SLATargetPercent)

	if err := s.store.Set(ctx, cacheKey, result, cfg.CheckInterval()); err != nil {
		s.logger.Warn("Failed to cache SLA metrics", "key", cacheKey, "error", err)
	}
	metrics.SLAUptimePercent.WithLabelValues(strconv.Itoa(windowHours)).Set(result.UptimePercent)
	return result
}

// ComputeSLAMetrics is the pure SLA calculation over records in any order.
//
// Downtime sums every down run from its first down record to the next up
// record; a run still open at the end of the records is counted to
// periodEnd. With no records the uptime is 0 and the SLA is not met.
func ComputeSLAMetrics(records []models.UptimeRecord, periodStart, periodEnd time.Time, target float64) models.SLAMetrics {
	m := models.SLAMetrics{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		SLATarget:   target,
	}
	if len(records) == 0 {
		return m
	}

	sorted := make([]models.UptimeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var (
		sampled   int
		sumMs     float64
		downtime  time.Duration
		downSince *time.Time
	)
	for i := range sorted {
		r := sorted[i]
		m.TotalChecks++
		if r.IsUp() {
			m.SuccessfulChecks++
		} else {
			m.FailedChecks++
		}

		if r.ResponseTimeMs != nil {
			sampled++
			sumMs += *r.ResponseTimeMs
			if *r.ResponseTimeMs > m.MaxResponseTimeMs {
				m.MaxResponseTimeMs = *r.ResponseTimeMs
			}
		}

		switch {
		case !r.IsUp() && downSince == nil:
			ts := r.Timestamp
			downSince = &ts
		case r.IsUp() && downSince != nil:
			downtime += r.Timestamp.Sub(*downSince)
			downSince = nil
		}
	}
	if downSince != nil && periodEnd.After(*downSince) {
		downtime += periodEnd.Sub(*downSince)
	}

	uptime := float64(m.SuccessfulChecks) / float64(m.TotalChecks) * 100
	m.UptimePercent = round2(uptime)
	if sampled > 0 {
		m.AvgResponseTimeMs = round2(sumMs / float64(sampled))
	}
	m.MaxResponseTimeMs = round2(m.MaxResponseTimeMs)
	m.DowntimeMinutes = round2(downtime.Minutes())
	// Compared unrounded; 99.94997 does not meet 99.95.
	m.SLAMet = uptime >= target
	return m
}

// GetCurrentStatus reports the last recorded status. An unreachable store
// or an empty history gives unknown.
func (s *UptimeService) GetCurrentStatus(ctx context.Context) models.StatusSnapshot {
	now := s.now()
	snap := models.StatusSnapshot{
		Status:        s.readStatus(ctx),
		UptimeSeconds: round2(now.Sub(s.startedAt).Seconds()),
		CheckedAt:     now.UTC(),
	}
	if snap.Status == models.StatusDown {
		if start, ok := s.downtimeStart(ctx); ok {
			minutes := round2(now.Sub(start).Minutes())
			snap.CurrentDowntimeMinutes = &minutes
		}
	}
	return snap
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
