// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for the scanner databases (always absolute)
	Port                int
	DevMode             bool
	LogLevel            string
	AlphaVantageAPIKey  string
	AlphaVantageBaseURL string
	HTTPTimeout         time.Duration // Timeout for quote/rate requests
	ChainTimeout        time.Duration // Options chains are large; they get a longer timeout
	QuoteCacheTTL       time.Duration
	ChainCacheTTL       time.Duration
	RateCacheTTL        time.Duration
	FavoritesRefresh    string // Cron spec for the favorites refresh job; empty disables it
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SCANNER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("PORT", 8010),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		AlphaVantageAPIKey:  getEnv("ALPHA_VANTAGE_API_KEY", ""),
		AlphaVantageBaseURL: getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		HTTPTimeout:         time.Duration(getEnvAsInt("API_TIMEOUT_SECONDS", 10)) * time.Second,
		ChainTimeout:        time.Duration(getEnvAsInt("CHAIN_TIMEOUT_SECONDS", 30)) * time.Second,
		QuoteCacheTTL:       time.Duration(getEnvAsInt("QUOTE_CACHE_TTL_SECONDS", 60)) * time.Second,
		ChainCacheTTL:       time.Duration(getEnvAsInt("CHAIN_CACHE_TTL_SECONDS", 300)) * time.Second,
		RateCacheTTL:        time.Duration(getEnvAsInt("RATE_CACHE_TTL_SECONDS", 86400)) * time.Second,
		FavoritesRefresh:    getEnv("FAVORITES_REFRESH_CRON", "@every 15m"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AlphaVantageAPIKey == "" {
		return fmt.Errorf("ALPHA_VANTAGE_API_KEY environment variable is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
