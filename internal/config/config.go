package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL         string `mapstructure:"API_BASE_URL"`
	Env                string `mapstructure:"ENV"`
	AuthIssuer         string `mapstructure:"AUTH_ISSUER"`
	AuthAudience       string `mapstructure:"AUTH_AUDIENCE"`
	AuthClientID       string `mapstructure:"AUTH_CLIENT_ID"`
	AuthClientSecret   string `mapstructure:"AUTH_CLIENT_SECRET"`
	AuthToken          string `mapstructure:"AUTH_TOKEN"`
	HTTPTimeoutSeconds int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	MaxUploadMB        int    `mapstructure:"MAX_UPLOAD_MB"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("API_BASE_URL", "http://localhost:3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	v.SetDefault("MAX_UPLOAD_MB", 10)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("API_BASE_URL")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_CLIENT_ID")
	v.BindEnv("AUTH_CLIENT_SECRET")
	v.BindEnv("AUTH_TOKEN")
	v.BindEnv("HTTP_TIMEOUT_SECONDS")
	v.BindEnv("MAX_UPLOAD_MB")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A trailing slash on the base URL produces double-slash request paths.
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("API_BASE_URL is not a valid URL: %w", err)
	}

	if cfg.IsDev() && cfg.AuthToken == "" && cfg.AuthIssuer == "" {
		log.Println("WARNING: no AUTH_TOKEN or AUTH_ISSUER configured; requests will be sent unauthenticated.")
		log.Println("WARNING: the backend will reject writes. Set AUTH_ISSUER + AUTH_CLIENT_ID/SECRET for real use.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HTTPTimeout returns the per-request timeout for backend calls.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. When an issuer is
// configured, the client-credentials parameters must be complete; a partially
// configured OIDC client would fail on the first token request with a much
// less actionable error.
func (c *Config) Validate() error {
	if c.AuthIssuer != "" {
		if c.AuthClientID == "" {
			return fmt.Errorf("AUTH_CLIENT_ID is required when AUTH_ISSUER is set")
		}
		if c.AuthClientSecret == "" {
			return fmt.Errorf("AUTH_CLIENT_SECRET is required when AUTH_ISSUER is set")
		}
		if c.AuthAudience == "" {
			return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER is set")
		}
	}
	if c.AuthToken != "" && c.AuthIssuer != "" {
		return fmt.Errorf("AUTH_TOKEN and AUTH_ISSUER are mutually exclusive; pick one token source")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}
