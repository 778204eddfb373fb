// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	ServerAddress string
	Environment   string
	LogLevel      string

	// Token Cache (4.A)
	TokenCacheTTL        time.Duration
	TokenCacheMaxEntries int
	JWTSecret            string
	JWTIssuer            string

	// Hot Store (4.B)
	HotStoreAddr           string
	HotStoreMaxConnections int
	HotStoreDialTimeout    time.Duration
	HotStoreCallTimeout    time.Duration

	// Durable Store (4.C)
	DurableDSN            string
	ProxyMode             bool
	DurablePoolSize       int
	DurablePoolOverflow   int
	DurablePoolTimeout    time.Duration
	DurableConnectTimeout time.Duration
	DurableQueryTimeout   time.Duration

	// Background jobs
	BatchIntervalSeconds   int
	MonitorIntervalSeconds int

	EnableCORS bool
}

// Load reads configuration from the environment, applying defaults, then
// validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		TokenCacheTTL:        time.Duration(getEnvInt("TOKEN_CACHE_TTL_SECONDS", 5)) * time.Second,
		TokenCacheMaxEntries: getEnvInt("TOKEN_CACHE_MAX_ENTRIES", 10000),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTIssuer:            getEnv("JWT_ISSUER", "auction-core"),

		HotStoreAddr:           getEnv("HOT_STORE_ADDR", "localhost:6379"),
		HotStoreMaxConnections: getEnvInt("HOT_STORE_MAX_CONNECTIONS", 200),
		HotStoreDialTimeout:    5 * time.Second,
		HotStoreCallTimeout:    10 * time.Second,

		DurableDSN:            getEnv("DURABLE_DSN", "postgres://localhost:5432/auction?sslmode=disable"),
		ProxyMode:             getEnvBool("PROXY_MODE", false),
		DurablePoolSize:       getEnvInt("DURABLE_POOL_SIZE", 20),
		DurablePoolOverflow:   getEnvInt("DURABLE_POOL_OVERFLOW", 10),
		DurablePoolTimeout:    time.Duration(getEnvInt("DURABLE_POOL_TIMEOUT_SECONDS", 30)) * time.Second,
		DurableConnectTimeout: 15 * time.Second,
		DurableQueryTimeout:   30 * time.Second,

		BatchIntervalSeconds:   getEnvInt("BATCH_INTERVAL_SECONDS", 5),
		MonitorIntervalSeconds: getEnvInt("MONITOR_INTERVAL_SECONDS", 10),

		EnableCORS: getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		// Validate has already rejected this in production.
		cfg.JWTSecret = defaultDevSecret
	}
	return cfg, nil
}

const defaultDevSecret = "default-secret-please-change-in-production-environment"

// Validate checks required configuration for the target environment.
func (c *Config) Validate() error {
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.TokenCacheMaxEntries <= 0 {
		return fmt.Errorf("TOKEN_CACHE_MAX_ENTRIES must be positive")
	}
	if c.HotStoreMaxConnections <= 0 {
		return fmt.Errorf("HOT_STORE_MAX_CONNECTIONS must be positive")
	}
	if c.DurablePoolSize <= 0 {
		return fmt.Errorf("DURABLE_POOL_SIZE must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
