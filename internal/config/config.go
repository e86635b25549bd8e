package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "liwanag", "password",
}

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	SessionSecret         string `env:"SESSION_SECRET,required"`
	DeviceAPIKey          string `env:"DEVICE_API_KEY"`
	DeviceRateLimitPerMin int    `env:"DEVICE_RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	SessionTTLHours       int    `env:"SESSION_TTL_HOURS" envDefault:"24"`
	RememberTTLHours      int    `env:"REMEMBER_TTL_HOURS" envDefault:"168"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

// SessionTTL is the dashboard login session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// RememberTTL is the extended lifetime applied when "remember me" is checked.
func (c *Config) RememberTTL() time.Duration {
	return time.Duration(c.RememberTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
	}

	// No fallback device key. Bootstrap fails startup when no key exists
	// and DEVICE_API_KEY is unset.
	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
