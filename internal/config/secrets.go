package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadSecrets fills passwords from the environment or from mounted secret
// files (<NAME>_FILE), which take precedence over values in config.yaml.
func LoadSecrets(config *Config) error {
	pw, err := secretFromEnv("VALKEY_PASSWORD")
	if err != nil {
		return err
	}
	if pw != "" {
		config.Cache.Password = pw
	}

	pw, err = secretFromEnv("SMTP_PASSWORD")
	if err != nil {
		return err
	}
	if pw != "" {
		config.Integrations.Email.Password = pw
	}

	return nil
}

func secretFromEnv(name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	file := os.Getenv(name + "_FILE")
	if file == "" {
		return "", nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s file: %w", name, err)
	}
	return strings.TrimSpace(string(b)), nil
}
