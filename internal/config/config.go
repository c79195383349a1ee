// Package config defines the process-level configuration for stripelink.
// Configuration is loaded once at startup and is immutable thereafter; it
// follows 12-Factor principles by strictly separating code from config.
//
// Values are resolved via: OS environment (highest) -> dotenv file.
// Any missing required value or invalid format fails startup immediately.
//
// Note the split between this package and internal/settings: config holds
// deployment concerns (port, database URL, the environment-level Stripe
// secret fallback), while settings holds the admin-editable runtime bundle
// stored in the database.
package config

import (
	"time"

	"stripelink/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret
// type used throughout configuration to prevent accidental logging.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once
// during process initialization and never modified.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"stripelink"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Stripe   StripeConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// PublicBaseURL is used to build portal return links and
	// redirect-back targets (no trailing slash).
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// StripeConfig holds the environment-level Stripe values. Both are
// fallbacks: the admin can override either through the stored settings
// bundle (internal/settings), and the secret resolution policy decides
// which source wins per request.
type StripeConfig struct {
	SecretKey             SecretString `envconfig:"STRIPE_SECRET_KEY"`
	PortalConfigurationID string       `envconfig:"STRIPE_PORTAL_CONFIGURATION"`
}
