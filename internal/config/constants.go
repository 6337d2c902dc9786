package config

const (
	// Service information
	ServiceName    = "mirador-sentinel"
	ServiceVersion = "v0.4.0"
	APIVersion     = "v1"

	EnvPrefix = "SENTINEL"

	// Alerting defaults
	DefaultCooldownMinutes = 60
	DefaultChannelTimeout  = 10 // seconds

	// Uptime defaults
	DefaultCheckInterval    = 60   // seconds
	DefaultProbeTimeout     = 10   // seconds
	DefaultSLATargetPercent = 99.5 // percent
	DefaultRetentionDays    = 30
	DefaultComponent        = "service"

	// Store defaults (milliseconds)
	DefaultCacheDialTimeout      = 5000
	DefaultCacheOperationTimeout = 2000
	DefaultCachePoolSize         = 10
	DefaultValkeyPort            = 6379

	DefaultSMTPPort     = 587
	DefaultSMTPTimeout  = 15 // seconds
	DefaultShutdownTime = 30 // seconds

	// WebSocket limits
	DefaultWSMaxConnections = 1000
	DefaultWSPingInterval   = 30 // seconds
)
