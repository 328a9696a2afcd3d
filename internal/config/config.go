// Package config defines the global configuration structure for the raincheck
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"raincheck/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the raincheck service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"raincheck-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Parser   ParserConfig
	Geocoder GeocoderConfig
	Weather  WeatherConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// UserAgent identifies this service and build to upstream HTTP providers.
// The geocoder keeps its own configurable User-Agent because Nominatim's
// usage policy requires an application-specific one.
func (c *Config) UserAgent() string {
	return c.Service + "/" + c.Build.Version
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ParserConfig holds the language-model intent extraction settings.
type ParserConfig struct {
	APIKey  SecretString  `envconfig:"OPENAI_API_KEY"`
	BaseURL string        `envconfig:"OPENAI_BASE_URL"` // Override for testing; empty means the public endpoint
	Model   string        `envconfig:"PARSER_MODEL" default:"gpt-4o-mini"`
	Strict  bool          `envconfig:"PARSER_STRICT" default:"false"`
	Timeout time.Duration `envconfig:"PARSER_TIMEOUT" default:"12s"`
}

// GeocoderConfig holds the place-name search API settings.
type GeocoderConfig struct {
	BaseURL   string        `envconfig:"GEOCODER_BASE_URL"`
	UserAgent string        `envconfig:"GEOCODER_USER_AGENT" default:"raincheck/1.0"`
	Timeout   time.Duration `envconfig:"GEOCODER_TIMEOUT" default:"8s"`
}

// WeatherConfig holds the forecast and climatology data source settings.
type WeatherConfig struct {
	ForecastBaseURL string        `envconfig:"FORECAST_BASE_URL"`
	ArchiveBaseURL  string        `envconfig:"ARCHIVE_BASE_URL"`
	PowerBaseURL    string        `envconfig:"POWER_BASE_URL"`
	LookbackYears   int           `envconfig:"CLIMATE_LOOKBACK_YEARS" default:"10" validate:"min=1,max=30"`
	HorizonDays     int           `envconfig:"FORECAST_HORIZON_DAYS" default:"16" validate:"min=1"`
	Timeout         time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
