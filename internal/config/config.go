package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Upstream protocol variants the gateway can speak
const (
	ProtocolXML  = "xml"
	ProtocolREST = "rest"
)

// Config represents the application configuration structure
type Config struct {
	Environment   string `envconfig:"ENVIRONMENT" default:"dev"`
	ListenAddress string `envconfig:"LISTEN_ADDRESS" default:":8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"*"`

	UpstreamProtocol string        `envconfig:"UPSTREAM_PROTOCOL" default:"xml"`
	UpstreamHost     string        `envconfig:"UPSTREAM_HOST"`
	UpstreamPort     int           `envconfig:"UPSTREAM_PORT" default:"28192"`
	UpstreamBaseURL  string        `envconfig:"UPSTREAM_BASE_URL"`
	UpstreamTimeout  time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`

	AppName        string `envconfig:"APP_NAME" default:"Fishbowl Gateway"`
	AppDescription string `envconfig:"APP_DESCRIPTION" default:"REST to Fishbowl protocol gateway"`
	AppID          int    `envconfig:"APP_ID" default:"1234"`
	Username       string `envconfig:"USERNAME"`
	Password       string `envconfig:"PASSWORD"`

	SessionKeepalive  bool `envconfig:"SESSION_KEEPALIVE" default:"false"`
	ValidationEnabled bool `envconfig:"VALIDATION_ENABLED" default:"true"`
	RateLimitEnabled  bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	RateLimitRPM      int  `envconfig:"RATE_LIMIT_RPM" default:"120"`
}

// LoadFromEnv loads a new configuration structure using environment variables and an optional .env file
func LoadFromEnv() (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Overload()

	// Load a new configuration structure using environment variables
	config := new(Config)
	if err := envconfig.Process("fg", config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate verifies that the configuration is complete enough to start up.
// Missing upstream credentials are a startup failure, not a per-request one.
func (config *Config) Validate() error {
	if config.Username == "" || config.Password == "" {
		return errors.New("upstream credentials (FG_USERNAME, FG_PASSWORD) are not configured")
	}
	switch config.UpstreamProtocol {
	case ProtocolXML:
		if config.UpstreamHost == "" {
			return errors.New("the XML upstream requires FG_UPSTREAM_HOST to be set")
		}
		if config.UpstreamPort <= 0 || config.UpstreamPort > 65535 {
			return fmt.Errorf("invalid upstream port: %d", config.UpstreamPort)
		}
	case ProtocolREST:
		if !strings.HasPrefix(config.UpstreamBaseURL, "http://") && !strings.HasPrefix(config.UpstreamBaseURL, "https://") {
			return errors.New("the REST upstream requires FG_UPSTREAM_BASE_URL to be a http(s) URL")
		}
	default:
		return fmt.Errorf("unknown upstream protocol: '%s' (expected '%s' or '%s')", config.UpstreamProtocol, ProtocolXML, ProtocolREST)
	}
	if config.RateLimitEnabled && config.RateLimitRPM <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimitRPM)
	}
	return nil
}

// Credentials assembles the upstream application identity & credentials out of the configuration
func (config *Config) Credentials() upstream.Credentials {
	return upstream.Credentials{
		AppName:        config.AppName,
		AppDescription: config.AppDescription,
		AppID:          config.AppID,
		Username:       config.Username,
		Password:       config.Password,
	}
}

// IsEnvProduction returns whether the application runs in production mode
func (config *Config) IsEnvProduction() bool {
	return strings.EqualFold(config.Environment, "prod") || strings.EqualFold(config.Environment, "production")
}
