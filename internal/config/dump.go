package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

// Dump renders the effective configuration as YAML with secrets masked. Used
// for the startup debug log.
func Dump(c *Config) (string, error) {
	cp := *c
	cp.Cache.Nodes = append([]string(nil), c.Cache.Nodes...)
	cp.Integrations.Email.Recipients = append([]string(nil), c.Integrations.Email.Recipients...)

	if cp.Cache.Password != "" {
		cp.Cache.Password = redacted
	}
	if cp.Integrations.Email.Password != "" {
		cp.Integrations.Email.Password = redacted
	}
	// Webhook URLs embed their credential in the path.
	if cp.Integrations.Slack.WebhookURL != "" {
		cp.Integrations.Slack.WebhookURL = redacted
	}
	if cp.Integrations.MSTeams.WebhookURL != "" {
		cp.Integrations.MSTeams.WebhookURL = redacted
	}

	b, err := yaml.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}
