// Package config provides configuration management for the memory service.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration before the service starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Health server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - TLS_CERT_FILE / TLS_KEY_FILE: Optional TLS material for the health server
//
// Remote Store Configuration (long-term tier):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - MEMORY_OP_TIMEOUT: Per-command timeout (default: 5s)
//   - MEMORY_LONG_TERM_DEFAULT_TTL: TTL applied to long-term writes with no
//     explicit TTL; 0 means no expiry (default: 0)
//
// Volatile Tier Configuration (short-term tier):
//   - MEMORY_DEFAULT_TTL: Default TTL for short-term items (default: 1h)
//   - MEMORY_CLEANUP_INTERVAL: Expired-item sweep period (default: 10m)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"memory-service/internal/memory"
)

// Config holds all configuration values for the memory service. String
// fields correspond to environment variables; call Validate() before use.
type Config struct {
	// Application settings
	Port     string // Health server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// TLS material for the health server, both optional
	TLSCertFile string
	TLSKeyFile  string

	// Remote store configuration for the long-term tier
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Memory tier tuning
	MemoryDefaultTTL         string // Short-term default TTL (e.g. "1h")
	MemoryCleanupInterval    string // Short-term sweep period (e.g. "10m")
	MemoryOpTimeout          string // Long-term per-command timeout (e.g. "5s")
	MemoryLongTermDefaultTTL string // Long-term default TTL; "0" means no expiry
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults. Call Validate() on the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		MemoryDefaultTTL:         getEnv("MEMORY_DEFAULT_TTL", "1h"),
		MemoryCleanupInterval:    getEnv("MEMORY_CLEANUP_INTERVAL", "10m"),
		MemoryOpTimeout:          getEnv("MEMORY_OP_TIMEOUT", "5s"),
		MemoryLongTermDefaultTTL: getEnv("MEMORY_LONG_TERM_DEFAULT_TTL", "0"),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate ensures all required fields are present and all values parse.
// The service should refuse to start on a validation failure.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.RedisAddress == "" {
		return fmt.Errorf("REDIS_ADDRESS is required")
	}
	if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
		return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
	}
	if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
	}

	if ttl, err := time.ParseDuration(c.MemoryDefaultTTL); err != nil || ttl <= 0 {
		return fmt.Errorf("MEMORY_DEFAULT_TTL must be a positive duration (e.g., '1h')")
	}
	if interval, err := time.ParseDuration(c.MemoryCleanupInterval); err != nil || interval <= 0 {
		return fmt.Errorf("MEMORY_CLEANUP_INTERVAL must be a positive duration (e.g., '10m')")
	}
	if timeout, err := time.ParseDuration(c.MemoryOpTimeout); err != nil || timeout <= 0 {
		return fmt.Errorf("MEMORY_OP_TIMEOUT must be a positive duration (e.g., '5s')")
	}
	if ttl, err := time.ParseDuration(c.MemoryLongTermDefaultTTL); err != nil || ttl < 0 {
		return fmt.Errorf("MEMORY_LONG_TERM_DEFAULT_TTL must be a non-negative duration")
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	return nil
}

// MemoryFactoryConfig converts a validated configuration into the defaults
// handed to the memory factory. Parse errors are impossible after
// Validate(), so they are ignored here.
func (c *Config) MemoryFactoryConfig() memory.FactoryConfig {
	db, _ := strconv.Atoi(c.RedisDB)
	poolSize, _ := strconv.Atoi(c.RedisPoolSize)
	defaultTTL, _ := time.ParseDuration(c.MemoryDefaultTTL)
	cleanupInterval, _ := time.ParseDuration(c.MemoryCleanupInterval)
	opTimeout, _ := time.ParseDuration(c.MemoryOpTimeout)
	longTermTTL, _ := time.ParseDuration(c.MemoryLongTermDefaultTTL)

	return memory.FactoryConfig{
		Redis: memory.LongTermOptions{
			Address:    c.RedisAddress,
			Password:   c.RedisPassword,
			DB:         db,
			PoolSize:   poolSize,
			DefaultTTL: longTermTTL,
			OpTimeout:  opTimeout,
		},
		ShortTerm: memory.ShortTermOptions{
			DefaultTTL:      defaultTTL,
			CleanupInterval: cleanupInterval,
		},
	}
}
