package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Identity backends understood by NewFromEnv.
const (
	IdentityBackendCognito = "cognito"
	IdentityBackendMemory  = "memory"
)

// Config is the process configuration. APIGatewayRegion and
// Cognito.IdentityPoolID are accepted so existing deployment environments
// parse, but nothing reads them: the steps API is called with the user
// pool ID token as a bearer rather than with identity pool credentials
// signed for a region.
type Config struct {
	HTTPAddress  string `env:"HTTP_ADDRESS"`
	TemplatesDir string `env:"TEMPLATES_DIR" envDefault:"templates"`
	StaticDir    string `env:"STATIC_DIR" envDefault:"static"`

	IdentityBackend string  `env:"IDENTITY_BACKEND" envDefault:"cognito"`
	Cognito         Cognito `envPrefix:"COGNITO_"`

	APIGatewayURL    string `env:"API_GATEWAY_URL"`
	APIGatewayRegion string `env:"API_GATEWAY_REGION"`

	// SignupEnabled turns self-service signup on. When off, /signup shows
	// a contact-the-admin page instead.
	SignupEnabled    bool          `env:"SIGNUP_ENABLED" envDefault:"false"`
	// MaxDailySteps caps one submission. Zero turns the cap off.
	MaxDailySteps    int64         `env:"MAX_DAILY_STEPS" envDefault:"30000"`
	LoaderMinDisplay time.Duration `env:"LOADER_MIN_DISPLAY" envDefault:"0s"`

	// SessionSecret keys the sealed session cookies. Every instance serving
	// the same site needs the same value.
	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"false"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`

	AdminEmail   string `env:"ADMIN_EMAIL"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM" envDefault:"Walk the World <noreply@walktheworld.example>"`
}

// Cognito holds the hosted identity provider identifiers.
type Cognito struct {
	Region         string `env:"REGION"`
	UserPoolID     string `env:"USER_POOL_ID"`
	AppClientID    string `env:"APP_CLIENT_ID"`
	IdentityPoolID string `env:"IDENTITY_POOL_ID"`
	// Endpoint overrides the regional endpoint. Only used for local testing.
	Endpoint string `env:"ENDPOINT"`
}

// NewFromEnv loads .env.<ENV> (ENV defaults to "local") and then parses the
// process environment. Missing or invalid settings are fatal.
func NewFromEnv() *Config {
	envName := os.Getenv("ENV")
	if envName == "" {
		envName = "local"
	}
	if err := godotenv.Load(".env." + envName); err == nil {
		log.Println("Loaded environment variables from .env." + envName)
	}

	config, err := Parse()
	if err != nil {
		log.Fatal(err)
	}
	return config
}

// Parse reads the configuration from the environment without touching .env
// files and validates it.
func Parse() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the settings are consistent with each other.
func (c *Config) Validate() error {
	if c.HTTPAddress == "" {
		return fmt.Errorf("HTTP_ADDRESS is not set")
	}
	if c.TemplatesDir == "" {
		return fmt.Errorf("TEMPLATES_DIR is not set")
	}
	if err := validateBaseURL(c.APIGatewayURL); err != nil {
		return fmt.Errorf("API_GATEWAY_URL: %w", err)
	}
	switch c.IdentityBackend {
	case IdentityBackendMemory:
	case IdentityBackendCognito:
		if c.Cognito.Region == "" || c.Cognito.UserPoolID == "" || c.Cognito.AppClientID == "" {
			return fmt.Errorf("cognito backend requires COGNITO_REGION, COGNITO_USER_POOL_ID and COGNITO_APP_CLIENT_ID")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("cognito backend requires SESSION_SECRET")
		}
	default:
		return fmt.Errorf("IDENTITY_BACKEND must be %q or %q, got %q", IdentityBackendCognito, IdentityBackendMemory, c.IdentityBackend)
	}
	if c.MaxDailySteps < 0 {
		return fmt.Errorf("MAX_DAILY_STEPS must not be negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// validateBaseURL requires an absolute http(s) URL with a host.
func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}

// StepsAPIBaseURL returns the API base URL without a trailing slash.
func (c *Config) StepsAPIBaseURL() string {
	return strings.TrimRight(c.APIGatewayURL, "/")
}
