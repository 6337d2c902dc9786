package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from various sources with priority order:
// 1. Legacy environment variables (SMTP_HOST, SLACK_WEBHOOK_URL, ...)
// 2. SENTINEL_* environment variables
// 3. Configuration file (explicit path, CONFIG_PATH, or config.yaml on the search path)
// 4. Default values
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/sentinel/")
		v.AddConfigPath("./configs/")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars and defaults
	}

	if err := overrideWithEnvVars(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := LoadSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets reasonable default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	// Cache defaults (Valkey). No nodes means in-process store.
	v.SetDefault("cache.nodes", []string{})
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.dial_timeout", DefaultCacheDialTimeout)
	v.SetDefault("cache.operation_timeout", DefaultCacheOperationTimeout)
	v.SetDefault("cache.pool_size", DefaultCachePoolSize)
	v.SetDefault("cache.discovery.service", "")
	v.SetDefault("cache.discovery.port", DefaultValkeyPort)
	v.SetDefault("cache.discovery.use_srv", false)

	v.SetDefault("alerting.cooldown_minutes", DefaultCooldownMinutes)
	v.SetDefault("alerting.channel_timeout_seconds", DefaultChannelTimeout)

	// Integrations defaults
	v.SetDefault("integrations.slack.enabled", false)
	v.SetDefault("integrations.slack.webhook_url", "")
	v.SetDefault("integrations.slack.channel", "")
	v.SetDefault("integrations.ms_teams.enabled", false)
	v.SetDefault("integrations.ms_teams.webhook_url", "")
	v.SetDefault("integrations.email.enabled", false)
	v.SetDefault("integrations.email.smtp_host", "")
	v.SetDefault("integrations.email.smtp_port", DefaultSMTPPort)
	v.SetDefault("integrations.email.username", "")
	v.SetDefault("integrations.email.password", "")
	v.SetDefault("integrations.email.from_address", "")
	v.SetDefault("integrations.email.recipients", []string{})
	v.SetDefault("integrations.email.starttls", true)
	v.SetDefault("integrations.email.timeout_seconds", DefaultSMTPTimeout)

	v.SetDefault("uptime.target_url", "")
	v.SetDefault("uptime.component", DefaultComponent)
	v.SetDefault("uptime.check_interval_seconds", DefaultCheckInterval)
	v.SetDefault("uptime.timeout_seconds", DefaultProbeTimeout)
	v.SetDefault("uptime.sla_target_percent", DefaultSLATargetPercent)
	v.SetDefault("uptime.retention_days", DefaultRetentionDays)

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.max_connections", DefaultWSMaxConnections)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.ping_interval", DefaultWSPingInterval)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.tracing_enabled", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4317")
}

// overrideWithEnvVars maps the plain environment names deployments already
// use onto config keys. Malformed numbers and booleans are rejected rather
// than silently ignored.
func overrideWithEnvVars(v *viper.Viper) error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		v.Set("port", p)
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		v.Set("environment", env)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		v.Set("log_level", strings.ToLower(logLevel))
	}

	// Valkey nodes, comma separated; REDIS_URL is accepted for single-node setups
	if nodes := os.Getenv("VALKEY_NODES"); nodes != "" {
		v.Set("cache.nodes", splitList(nodes))
	} else if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if err := applyRedisURL(v, redisURL); err != nil {
			return err
		}
	}

	ints := map[string]string{
		"ALERT_COOLDOWN_MINUTES": "alerting.cooldown_minutes",
		"SMTP_PORT":              "integrations.email.smtp_port",
		"UPTIME_CHECK_INTERVAL":  "uptime.check_interval_seconds",
		"UPTIME_RETENTION_DAYS":  "uptime.retention_days",
	}
	for env, key := range ints {
		if raw := os.Getenv(env); raw != "" {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
			v.Set(key, n)
		}
	}

	bools := map[string]string{
		"EMAIL_ENABLED": "integrations.email.enabled",
		"SLACK_ENABLED": "integrations.slack.enabled",
		"SMTP_STARTTLS": "integrations.email.starttls",
	}
	for env, key := range bools {
		if raw := os.Getenv(env); raw != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
			v.Set(key, b)
		}
	}

	if target := os.Getenv("SLA_TARGET"); target != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
		if err != nil {
			return fmt.Errorf("SLA_TARGET: %w", err)
		}
		v.Set("uptime.sla_target_percent", f)
	}

	strs := map[string]string{
		"SMTP_HOST":         "integrations.email.smtp_host",
		"SMTP_USER":         "integrations.email.username",
		"ALERT_FROM_EMAIL":  "integrations.email.from_address",
		"SLACK_WEBHOOK_URL": "integrations.slack.webhook_url",
		"UPTIME_TARGET_URL": "uptime.target_url",
		"OTLP_ENDPOINT":     "monitoring.otlp_endpoint",
		"VALKEY_SERVICE":    "cache.discovery.service",
	}
	for env, key := range strs {
		if raw := os.Getenv(env); raw != "" {
			v.Set(key, raw)
		}
	}

	if recipients := os.Getenv("ALERT_EMAIL_RECIPIENTS"); recipients != "" {
		v.Set("integrations.email.recipients", splitList(recipients))
	}

	// Teams has no separate flag; a webhook URL turns it on
	if teamsWebhook := os.Getenv("TEAMS_WEBHOOK_URL"); teamsWebhook != "" {
		v.Set("integrations.ms_teams.webhook_url", teamsWebhook)
		v.Set("integrations.ms_teams.enabled", true)
	}

	return nil
}

// applyRedisURL accepts redis://[:password@]host:port[/db].
func applyRedisURL(v *viper.Viper, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("REDIS_URL: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("REDIS_URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("REDIS_URL: missing host")
	}
	v.Set("cache.nodes", []string{u.Host})
	if pw, ok := u.User.Password(); ok {
		v.Set("cache.password", pw)
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("REDIS_URL: invalid db %q", db)
		}
		v.Set("cache.db", n)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
