package models

import (
	"time"
)

type UptimeStatus string

const (
	StatusUp      UptimeStatus = "up"
	StatusDown    UptimeStatus = "down"
	StatusUnknown UptimeStatus = "unknown"
)

// UptimeRecord is one health-check observation. Written once, never updated.
type UptimeRecord struct {
	Timestamp      time.Time    `json:"timestamp"`
	Status         UptimeStatus `json:"status"`
	ResponseTimeMs *float64     `json:"response_time_ms,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`
}

func (r UptimeRecord) IsUp() bool { return r.Status == StatusUp }

// SLAMetrics summarises the records of one window.
// SuccessfulChecks + FailedChecks == TotalChecks.
type SLAMetrics struct {
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
	TotalChecks       int       `json:"total_checks"`
	SuccessfulChecks  int       `json:"successful_checks"`
	FailedChecks      int       `json:"failed_checks"`
	UptimePercent     float64   `json:"uptime_percent"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	MaxResponseTimeMs float64   `json:"max_response_time_ms"`
	DowntimeMinutes   float64   `json:"downtime_minutes"`
	SLATarget         float64   `json:"sla_target"`
	SLAMet            bool      `json:"sla_met"`
}

func (m SLAMetrics) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"period_start":         m.PeriodStart.Format(time.RFC3339Nano),
		"period_end":           m.PeriodEnd.Format(time.RFC3339Nano),
		"total_checks":         m.TotalChecks,
		"successful_checks":    m.SuccessfulChecks,
		"failed_checks":        m.FailedChecks,
		"uptime_percent":       m.UptimePercent,
		"avg_response_time_ms": m.AvgResponseTimeMs,
		"max_response_time_ms": m.MaxResponseTimeMs,
		"downtime_minutes":     m.DowntimeMinutes,
		"sla_target":           m.SLATarget,
		"sla_met":              m.SLAMet,
	}
}

// StatusSnapshot is the sampler's current view. CurrentDowntimeMinutes is
// nil unless the service is down.
type StatusSnapshot struct {
	Status                 UptimeStatus `json:"status"`
	UptimeSeconds          float64      `json:"uptime_seconds"`
	CurrentDowntimeMinutes *float64     `json:"current_downtime_minutes"`
	CheckedAt              time.Time    `json:"checked_at"`
}
