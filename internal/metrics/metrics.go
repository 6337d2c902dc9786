// ================================
// internal/metrics/metrics.go - notification and uptime collectors
// ================================

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Notification delivery
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sentinel_notifications_sent_total",
			Help: "Total number of notification deliveries attempted per channel",
		},
		[]string{"channel", "severity", "success"}, // log/email/slack/teams/stream, info/warning/critical, true/false
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sentinel_notifications_suppressed_total",
			Help: "Alerts dropped because their component/metric pair is in cooldown",
		},
		[]string{"component"},
	)

	CooldownCheckFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirador_sentinel_cooldown_check_failures_total",
			Help: "Cooldown lookups that failed open because the store was unreachable",
		},
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_sentinel_notification_duration_seconds",
			Help:    "Per-channel delivery duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	// Uptime sampling
	UptimeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sentinel_uptime_checks_total",
			Help: "Total number of recorded health checks",
		},
		[]string{"status"}, // up/down
	)

	ServiceUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_sentinel_service_up",
			Help: "1 when the last recorded health check was up, 0 otherwise",
		},
	)

	CheckResponseTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mirador_sentinel_check_response_time_ms",
			Help:    "Response time reported by health checks in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	SLAUptimePercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirador_sentinel_sla_uptime_percent",
			Help: "Uptime percentage of the last computed SLA window",
		},
		[]string{"window_hours"},
	)

	// Live alert stream
	ActiveStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_sentinel_stream_clients_active",
			Help: "Number of connected WebSocket alert stream clients",
		},
	)
)
