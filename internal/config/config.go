package config

import (
	"context"
	"time"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

const (
	ModeProd    = "prod"
	ModeTesting = "testing"
)

// Config holds all configuration for the WhatsApp service.
type Config struct {
	// Mode controls auth behavior: "prod" (default) or "testing".
	// In testing mode an unconfigured OIDC issuer lets the bearer token
	// be used directly as the caller's user ID.
	Mode string

	// Database
	DBURL string

	// Datastore backend type, "postgres" or "sqlite".
	DatastoreType string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// OIDC
	OIDCIssuer       string
	OIDCDiscoveryURL string // internal URL for OIDC discovery (when issuer URL is not reachable)

	// PermittedRoles is a comma-separated list of role names allowed to
	// manage contacts. Any single match authorizes the caller.
	PermittedRoles string

	// Server
	Port              int
	ReadHeaderTimeout time.Duration
	AccessLog         bool
	CORSEnabled       bool
	CORSOrigins       string

	// Body size limit (bytes)
	MaxBodySize int64

	// MetricsLabels is a comma-separated list of key=value pairs added as
	// constant labels to all Prometheus metrics. Values support ${VAR} expansion.
	MetricsLabels string

	// Graceful shutdown drain timeout (seconds)
	DrainTimeout int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeProd,
		DatastoreType:           "postgres",
		DatastoreMigrateAtStart: true,
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
		PermittedRoles:          "admin,broker,attendant",
		Port:                    8080,
		ReadHeaderTimeout:       5 * time.Second,
		AccessLog:               true,
		MaxBodySize:             1 * 1024 * 1024,
		DrainTimeout:            30,
	}
}
