package remote

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the remote key service settings.
// The base URL is always explicit; there is no process-wide default endpoint.
type Config struct {
	BaseURL string        `env:"ENVELOPE_API_URL"`
	Timeout time.Duration `env:"ENVELOPE_API_TIMEOUT" envDefault:"10s"`
	APIKey  string        `env:"ENVELOPE_API_KEY"` // optional bearer token
}

// LoadConfig reads Config from the environment and validates it
func LoadConfig() (Config, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ConfigFromEnv reads Config from the environment without validating it,
// so callers can override fields (such as BaseURL from a flag) first.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: BaseURL: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: BaseURL must use http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: BaseURL must include a host", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: Timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}
