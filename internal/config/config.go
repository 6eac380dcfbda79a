package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/contacts-service/internal/remote"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Prefix for every environment variable, e.g. CONTACTS_HTTP_PORT.
const Prefix = "CONTACTS"

// Config holds the configuration for the contacts service
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPHost string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8000"`

	// Remote store
	RemoteAPIKey     string        `envconfig:"REMOTE_API_KEY" required:"true"`
	RemoteDatabaseID string        `envconfig:"REMOTE_DATABASE_ID" required:"true"`
	RemoteBaseURL    string        `envconfig:"REMOTE_BASE_URL" default:"https://api.notion.com"`
	RemoteAPIVersion string        `envconfig:"REMOTE_API_VERSION" default:"2022-06-28"`
	RemoteTimeout    time.Duration `envconfig:"REMOTE_TIMEOUT" default:"30s"`
	DebugHTTP        bool          `envconfig:"DEBUG_HTTP" default:"false"`

	// Retry and paging
	PageSize       int           `envconfig:"PAGE_SIZE" default:"100"`
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	PageDelay      time.Duration `envconfig:"PAGE_DELAY" default:"100ms"`

	// Cache
	CacheTTL            time.Duration `envconfig:"CACHE_TTL" default:"60s"`
	CacheRefreshTimeout time.Duration `envconfig:"CACHE_REFRESH_TIMEOUT" default:"2m"`

	// Optional override for the field and category tables.
	SchemaFile string `envconfig:"SCHEMA_FILE" default:""`

	// Health probes
	HealthInterval     time.Duration `envconfig:"HEALTH_INTERVAL" default:"30s"`
	HealthProbeTimeout time.Duration `envconfig:"HEALTH_PROBE_TIMEOUT" default:"5s"`
}

// New creates a new Config by parsing environment variables
// Example: CONTACTS_REMOTE_API_KEY, CONTACTS_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("http_addr", cfg.GetHTTPAddr()).
		Str("remote_base_url", cfg.RemoteBaseURL).
		Str("remote_database_id", cfg.RemoteDatabaseID).
		Dur("cache_ttl", cfg.CacheTTL).
		Int("page_size", cfg.PageSize).
		Int("max_attempts", cfg.MaxAttempts).
		Str("schema_file", cfg.SchemaFile).
		Msg("Configuration loaded")

	return &cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvTesting, EnvProduction:
	default:
		return fmt.Errorf("unsupported ENVIRONMENT: %s", c.Environment)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("unsupported LOG_LEVEL: %s", c.LogLevel)
	}
	if strings.TrimSpace(c.RemoteAPIKey) == "" {
		return fmt.Errorf("REMOTE_API_KEY is required")
	}
	if strings.TrimSpace(c.RemoteDatabaseID) == "" {
		return fmt.Errorf("REMOTE_DATABASE_ID is required")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.PageSize < 1 || c.PageSize > remote.MaxPageSize {
		return fmt.Errorf("PAGE_SIZE must be between 1 and %d, got %d", remote.MaxPageSize, c.PageSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RetryBaseDelay < 0 || c.PageDelay < 0 {
		return fmt.Errorf("RETRY_BASE_DELAY and PAGE_DELAY must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheRefreshTimeout <= 0 {
		return fmt.Errorf("CACHE_REFRESH_TIMEOUT must be positive, got %s", c.CacheRefreshTimeout)
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("HEALTH_INTERVAL must be positive, got %s", c.HealthInterval)
	}
	if c.DebugHTTP && c.IsProduction() {
		return fmt.Errorf("DEBUG_HTTP dumps the API key and cannot be enabled in production")
	}
	return nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:         EnvTesting,
		LogLevel:            "debug",
		HTTPHost:            "127.0.0.1",
		HTTPPort:            8000,
		RemoteAPIKey:        "test-key",
		RemoteDatabaseID:    "test-db",
		RemoteBaseURL:       "http://localhost:0",
		RemoteAPIVersion:    "2022-06-28",
		RemoteTimeout:       5 * time.Second,
		PageSize:            100,
		MaxAttempts:         3,
		RetryBaseDelay:      time.Millisecond,
		PageDelay:           0,
		CacheTTL:            60 * time.Second,
		CacheRefreshTimeout: 10 * time.Second,
		HealthInterval:      time.Second,
		HealthProbeTimeout:  time.Second,
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Level returns the parsed log level, info when unset or invalid.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// RemoteConfig returns the remote client settings.
func (c *Config) RemoteConfig() remote.Config {
	return remote.Config{
		BaseURL:        c.RemoteBaseURL,
		APIKey:         c.RemoteAPIKey,
		DatabaseID:     c.RemoteDatabaseID,
		APIVersion:     c.RemoteAPIVersion,
		Timeout:        c.RemoteTimeout,
		MaxAttempts:    c.MaxAttempts,
		RetryBaseDelay: c.RetryBaseDelay,
		PageDelay:      c.PageDelay,
	}
}
