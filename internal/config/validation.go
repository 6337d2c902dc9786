package config

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strconv"
)

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", config.Port)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	validEnvironments := []string{"development", "staging", "production", "test"}
	if !contains(validEnvironments, config.Environment) {
		return fmt.Errorf("invalid environment: %s", config.Environment)
	}

	for _, node := range config.Cache.Nodes {
		if err := ValidateRedisNode(node); err != nil {
			return err
		}
	}

	if config.Alerting.CooldownMinutes < 0 {
		return fmt.Errorf("alerting cooldown must not be negative")
	}

	u := config.Uptime
	if u.CheckIntervalSeconds < 1 {
		return fmt.Errorf("uptime check interval must be at least 1 second")
	}
	if u.RetentionDays < 1 {
		return fmt.Errorf("uptime retention must be at least 1 day")
	}
	if u.SLATargetPercent < 0 || u.SLATargetPercent > 100 {
		return fmt.Errorf("SLA target must be between 0 and 100")
	}
	if u.TargetURL != "" {
		if err := ValidateEndpoint(u.TargetURL); err != nil {
			return fmt.Errorf("uptime target: %w", err)
		}
	}

	if err := ValidateWebhookURL(config.Integrations.Slack.WebhookURL); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	if err := ValidateWebhookURL(config.Integrations.MSTeams.WebhookURL); err != nil {
		return fmt.Errorf("ms_teams: %w", err)
	}

	email := config.Integrations.Email
	if email.Enabled {
		if email.SMTPHost == "" {
			return fmt.Errorf("email enabled but smtp_host is empty")
		}
		if email.SMTPPort < 1 || email.SMTPPort > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", email.SMTPPort)
		}
		if _, err := mail.ParseAddress(email.FromAddress); err != nil {
			return fmt.Errorf("invalid from_address %q: %w", email.FromAddress, err)
		}
		for _, r := range email.Recipients {
			if _, err := mail.ParseAddress(r); err != nil {
				return fmt.Errorf("invalid recipient %q: %w", r, err)
			}
		}
	}

	return nil
}

// ValidateEndpoint validates that an endpoint is properly formatted
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint must use http or https scheme")
	}

	if parsed.Host == "" {
		return fmt.Errorf("endpoint must include host")
	}

	return nil
}

// ValidateRedisNode validates Valkey node format
func ValidateRedisNode(node string) error {
	if node == "" {
		return fmt.Errorf("Valkey node cannot be empty")
	}

	// Check format: host:port
	host, port, err := net.SplitHostPort(node)
	if err != nil {
		return fmt.Errorf("Valkey node must be in format host:port: %w", err)
	}

	if host == "" {
		return fmt.Errorf("Valkey node must include host")
	}

	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid Valkey port: %w", err)
	}

	return nil
}

// ValidateWebhookURL validates webhook URLs for integrations. Plain http is
// accepted for local relays.
func ValidateWebhookURL(webhookURL string) error {
	if webhookURL == "" {
		return nil // Empty is allowed (disabled)
	}
	return ValidateEndpoint(webhookURL)
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
