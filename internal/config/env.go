package config

import (
	"os"
	"time"
)

// Environment variables that take precedence over the config file.
const (
	EnvURL      = "BOXCTL_URL"
	EnvSession  = "BOXCTL_SESSION"
	EnvCSRF     = "BOXCTL_CSRF"
	EnvTimeout  = "BOXCTL_TIMEOUT"
	EnvLogLevel = "BOXCTL_LOG_LEVEL"
)

// ApplyEnv overlays any set BOXCTL_* variables onto the config.
// Resolution order is environment variable > config file > default.
func (c *Config) ApplyEnv() {
	c.Platform.URL = envOr(EnvURL, c.Platform.URL)
	c.Platform.Session = envOr(EnvSession, c.Platform.Session)
	c.Platform.CSRF = envOr(EnvCSRF, c.Platform.CSRF)
	c.Platform.Timeout = envOrDuration(EnvTimeout, c.Platform.Timeout)
	c.Logging.Level = envOr(EnvLogLevel, c.Logging.Level)
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
