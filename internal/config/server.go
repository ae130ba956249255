// Package config provides configuration management for the license server.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment Environment
	ListenAddr  string
	DatabaseURL string
	// RedisURL enables the license cache when set; empty runs cacheless.
	RedisURL string

	// MasterSecret and SecretSalt are the two long-lived host secrets
	// the signing key is derived from. They are never used directly.
	MasterSecret string
	SecretSalt   string

	LicenseKeyPrefix string
	AdminAPIKey      string

	CacheTTL time.Duration
	TokenTTL time.Duration

	RateLimitRequests int64
	RateLimitPeriod   string
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() (ServerConfig, error) {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	cfg := ServerConfig{
		Environment:       env,
		ListenAddr:        getEnvString("LISTEN_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		MasterSecret:      os.Getenv("SMLISER_MASTER_SECRET"),
		SecretSalt:        os.Getenv("SMLISER_SECRET_SALT"),
		LicenseKeyPrefix:  getEnvString("LICENSE_KEY_PREFIX", "SMLISER"),
		AdminAPIKey:       os.Getenv("ADMIN_API_KEY"),
		CacheTTL:          time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		TokenTTL:          time.Duration(getEnvInt("TOKEN_TTL_SECONDS", 3600)) * time.Second,
		RateLimitRequests: int64(getEnvInt("RATE_LIMIT_REQUESTS", 120)),
		RateLimitPeriod:   getEnvString("RATE_LIMIT_PERIOD", "1m"),
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.MasterSecret == "" {
		return cfg, errors.New("SMLISER_MASTER_SECRET environment variable is required")
	}
	if cfg.SecretSalt == "" {
		return cfg, errors.New("SMLISER_SECRET_SALT environment variable is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}

	return cfg, nil
}

// getEnvString reads a string from an environment variable, returning the default if unset.
func getEnvString(key, defaultVal string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
