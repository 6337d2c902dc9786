package config

import "time"

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Cache        CacheConfig        `mapstructure:"cache" yaml:"cache"`
	Alerting     AlertingConfig     `mapstructure:"alerting" yaml:"alerting"`
	Integrations IntegrationsConfig `mapstructure:"integrations" yaml:"integrations"`
	Uptime       UptimeConfig       `mapstructure:"uptime" yaml:"uptime"`
	WebSocket    WebSocketConfig    `mapstructure:"websocket" yaml:"websocket"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring" yaml:"monitoring"`
}

// CacheConfig handles the shared Valkey/Redis state store
type CacheConfig struct {
	Nodes            []string `mapstructure:"nodes" yaml:"nodes"`
	Password         string   `mapstructure:"password" yaml:"password"`
	DB               int      `mapstructure:"db" yaml:"db"`
	DialTimeout      int      `mapstructure:"dial_timeout" yaml:"dial_timeout"`           // milliseconds
	OperationTimeout int      `mapstructure:"operation_timeout" yaml:"operation_timeout"` // milliseconds
	PoolSize         int      `mapstructure:"pool_size" yaml:"pool_size"`

	Discovery CacheDiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
}

// CacheDiscoveryConfig resolves cache nodes from DNS when Nodes is empty,
// e.g. a headless Kubernetes service in front of a Valkey cluster.
type CacheDiscoveryConfig struct {
	Service string `mapstructure:"service" yaml:"service"`
	Port    int    `mapstructure:"port" yaml:"port"`
	UseSRV  bool   `mapstructure:"use_srv" yaml:"use_srv"`
}

// AlertingConfig controls the notification dispatcher
type AlertingConfig struct {
	CooldownMinutes       int `mapstructure:"cooldown_minutes" yaml:"cooldown_minutes"`
	ChannelTimeoutSeconds int `mapstructure:"channel_timeout_seconds" yaml:"channel_timeout_seconds"`
}

func (a AlertingConfig) CooldownWindow() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

func (a AlertingConfig) ChannelTimeout() time.Duration {
	if a.ChannelTimeoutSeconds <= 0 {
		return time.Duration(DefaultChannelTimeout) * time.Second
	}
	return time.Duration(a.ChannelTimeoutSeconds) * time.Second
}

// IntegrationsConfig handles external notification targets
type IntegrationsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack" yaml:"slack"`
	MSTeams MSTeamsConfig `mapstructure:"ms_teams" yaml:"ms_teams"`
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

type MSTeamsConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

type EmailConfig struct {
	SMTPHost       string   `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort       int      `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username       string   `mapstructure:"username" yaml:"username"`
	Password       string   `mapstructure:"password" yaml:"password"`
	FromAddress    string   `mapstructure:"from_address" yaml:"from_address"`
	Recipients     []string `mapstructure:"recipients" yaml:"recipients"`
	StartTLS       bool     `mapstructure:"starttls" yaml:"starttls"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
}

// UptimeConfig controls the sampler and the built-in health prober
type UptimeConfig struct {
	TargetURL            string  `mapstructure:"target_url" yaml:"target_url"`
	Component            string  `mapstructure:"component" yaml:"component"`
	CheckIntervalSeconds int     `mapstructure:"check_interval_seconds" yaml:"check_interval_seconds"`
	TimeoutSeconds       int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	SLATargetPercent     float64 `mapstructure:"sla_target_percent" yaml:"sla_target_percent"`
	RetentionDays        int     `mapstructure:"retention_days" yaml:"retention_days"`
}

func (u UptimeConfig) CheckInterval() time.Duration {
	return time.Duration(u.CheckIntervalSeconds) * time.Second
}

func (u UptimeConfig) Retention() time.Duration {
	return time.Duration(u.RetentionDays) * 24 * time.Hour
}

func (u UptimeConfig) Timeout() time.Duration {
	if u.TimeoutSeconds <= 0 {
		return time.Duration(DefaultProbeTimeout) * time.Second
	}
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// WebSocketConfig handles the live alert stream
type WebSocketConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	MaxConnections  int  `mapstructure:"max_connections" yaml:"max_connections"`
	ReadBufferSize  int  `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int  `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	PingInterval    int  `mapstructure:"ping_interval" yaml:"ping_interval"` // seconds
}

// MonitoringConfig handles self-monitoring configuration
type MonitoringConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	MetricsPath       string `mapstructure:"metrics_path" yaml:"metrics_path"`
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled" yaml:"prometheus_enabled"`
	TracingEnabled    bool   `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	OTLPEndpoint      string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
