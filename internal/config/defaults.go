package config

// GetDefaultConfig returns a configuration with all default values. It
// matches what Load produces with no file and a clean environment.
func GetDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Port:        8080,
		LogLevel:    "info",

		Cache: CacheConfig{
			Nodes:            []string{},
			DialTimeout:      DefaultCacheDialTimeout,
			OperationTimeout: DefaultCacheOperationTimeout,
			PoolSize:         DefaultCachePoolSize,
			Discovery:        CacheDiscoveryConfig{Port: DefaultValkeyPort},
		},

		Alerting: AlertingConfig{
			CooldownMinutes:       DefaultCooldownMinutes,
			ChannelTimeoutSeconds: DefaultChannelTimeout,
		},

		Integrations: IntegrationsConfig{
			Email: EmailConfig{
				SMTPPort:       DefaultSMTPPort,
				Recipients:     []string{},
				StartTLS:       true,
				TimeoutSeconds: DefaultSMTPTimeout,
			},
		},

		Uptime: UptimeConfig{
			Component:            DefaultComponent,
			CheckIntervalSeconds: DefaultCheckInterval,
			TimeoutSeconds:       DefaultProbeTimeout,
			SLATargetPercent:     DefaultSLATargetPercent,
			RetentionDays:        DefaultRetentionDays,
		},

		WebSocket: WebSocketConfig{
			Enabled:         true,
			MaxConnections:  DefaultWSMaxConnections,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    DefaultWSPingInterval,
		},

		Monitoring: MonitoringConfig{
			Enabled:           true,
			MetricsPath:       "/metrics",
			PrometheusEnabled: true,
			OTLPEndpoint:      "localhost:4317",
		},
	}
}
