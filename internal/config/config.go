// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
// The device daemon and the reference authority read the same keys; each uses its own subset.
type Config struct {
	// SessionStoreDriver selects the device store: file, sqlite, or memory.
	SessionStoreDriver string `mapstructure:"SESSION_STORE_DRIVER"`
	// SessionStorePath is the session file (file driver) or database (sqlite driver).
	SessionStorePath string `mapstructure:"SESSION_STORE_PATH"`
	// SessionTTL is the sliding session lifetime (e.g. "720h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// CleanupInterval is how often the sweeper checks the stored session for expiry.
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// SessionSealKey is the hex secret the at-rest key is derived from. Empty stores plaintext JSON.
	SessionSealKey string `mapstructure:"SESSION_SEAL_KEY"`
	// DeviceID binds the sealing key and issued refresh tokens to this device.
	DeviceID string `mapstructure:"DEVICE_ID"`

	// AuthorityURL is the base URL of the remote authority.
	AuthorityURL string `mapstructure:"AUTHORITY_URL"`
	// AuthorityTimeout bounds a single validation call.
	AuthorityTimeout string `mapstructure:"AUTHORITY_TIMEOUT"`
	// RoutingPolicyFile is an optional Rego file overriding the default routing policy.
	RoutingPolicyFile string `mapstructure:"ROUTING_POLICY_FILE"`

	// OTelEndpoint is the OTLP collector; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure forces plaintext gRPC to the collector.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelServiceName is the service.name resource attribute.
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Reference authority only.
	// AuthorityAddr is the address the authority's HTTP server listens on (e.g. :8081).
	AuthorityAddr string `mapstructure:"AUTHORITY_ADDR"`
	// DatabaseURL is the authority's Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim on refresh tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim on refresh tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

const (
	defaultSessionTTL       = 720 * time.Hour
	defaultCleanupInterval  = 15 * time.Minute
	defaultAuthorityTimeout = 10 * time.Second
	defaultRefreshTTL       = 720 * time.Hour
)

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("SESSION_STORE_DRIVER", "file")
	v.SetDefault("SESSION_STORE_PATH", "data/session.json")
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("CLEANUP_INTERVAL", "15m")
	v.SetDefault("SESSION_SEAL_KEY", "")
	v.SetDefault("DEVICE_ID", "dev-device")
	v.SetDefault("AUTHORITY_URL", "http://localhost:8081")
	v.SetDefault("AUTHORITY_TIMEOUT", "10s")
	v.SetDefault("ROUTING_POLICY_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "storefront-sessiond")
	v.SetDefault("AUTHORITY_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "storefront-authority")
	v.SetDefault("JWT_AUDIENCE", "storefront-device")
	v.SetDefault("JWT_REFRESH_TTL", "720h")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.SessionStoreDriver = strings.ToLower(strings.TrimSpace(cfg.SessionStoreDriver))
	switch cfg.SessionStoreDriver {
	case "file", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("config: SESSION_STORE_DRIVER must be file, sqlite, or memory, got %q", cfg.SessionStoreDriver)
	}
	if cfg.SessionStoreDriver != "memory" && strings.TrimSpace(cfg.SessionStorePath) == "" {
		return nil, errors.New("config: SESSION_STORE_PATH must be set")
	}
	if cfg.DeviceID == "" {
		return nil, errors.New("config: DEVICE_ID must be set")
	}
	if cfg.AuthorityAddr == "" {
		return nil, errors.New("config: AUTHORITY_ADDR must be set")
	}
	if cfg.Env == "production" {
		if cfg.SessionSealKey == "" {
			return nil, errors.New("config: SESSION_SEAL_KEY must be set when APP_ENV=production")
		}
		if cfg.SessionStoreDriver == "memory" {
			return nil, errors.New("config: SESSION_STORE_DRIVER=memory is not allowed when APP_ENV=production")
		}
	}

	return &cfg, nil
}

// SessionTTLDuration parses SessionTTL. Returns 720h if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	return parseDuration(c.SessionTTL, defaultSessionTTL)
}

// CleanupIntervalDuration parses CleanupInterval. Returns 15m if unset or invalid.
func (c *Config) CleanupIntervalDuration() time.Duration {
	return parseDuration(c.CleanupInterval, defaultCleanupInterval)
}

// AuthorityTimeoutDuration parses AuthorityTimeout. Returns 10s if unset or invalid.
func (c *Config) AuthorityTimeoutDuration() time.Duration {
	return parseDuration(c.AuthorityTimeout, defaultAuthorityTimeout)
}

// RefreshTTL parses JWTRefreshTTL. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, defaultRefreshTTL)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
