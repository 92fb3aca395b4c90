package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// SSOT: every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External data sources
	Polygon PolygonConfig
	UW      UWConfig
	Quiver  QuiverConfig

	// Scan engine
	Scan ScanConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// PolygonConfig holds the price/volume bar source configuration
type PolygonConfig struct {
	APIKey  string
	BaseURL string
}

// UWConfig holds the options-flow / dark-pool source configuration
type UWConfig struct {
	APIKey  string
	BaseURL string
}

// QuiverConfig holds the insider/congressional filings source configuration
type QuiverConfig struct {
	APIKey  string
	BaseURL string
}

// ScanConfig holds scan engine tunables
type ScanConfig struct {
	// Path to the scoring-weight table (YAML). Empty means built-in defaults.
	WeightsPath string

	// Comma-separated symbol watchlist override. Empty means the built-in
	// liquid-optionable universe.
	Watchlist string

	// Symbol worker pool size per scan job
	Workers int

	// Per-symbol, per-source cooldown between scans
	Cooldown time.Duration

	// Budget ledger checkpoint interval, in consumed calls
	LedgerCheckpointEvery int
}

// Load reads configuration from environment variables.
// SSOT: this is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8099"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Polygon: PolygonConfig{
			APIKey:  getEnv("POLYGON_API_KEY", ""),
			BaseURL: getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
		},

		UW: UWConfig{
			APIKey:  getEnv("UW_API_KEY", ""),
			BaseURL: getEnv("UW_BASE_URL", "https://api.unusualwhales.com"),
		},

		Quiver: QuiverConfig{
			APIKey:  getEnv("QUIVER_API_KEY", ""),
			BaseURL: getEnv("QUIVER_BASE_URL", "https://api.quiverquant.com"),
		},

		Scan: ScanConfig{
			WeightsPath:           getEnv("SCAN_WEIGHTS_PATH", ""),
			Watchlist:             getEnv("SCAN_WATCHLIST", ""),
			Workers:               getEnvAsInt("SCAN_WORKERS", 4),
			Cooldown:              getEnvAsDuration("SCAN_COOLDOWN", "45m"),
			LedgerCheckpointEvery: getEnvAsInt("SCAN_LEDGER_CHECKPOINT_EVERY", 25),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be at least 1")
	}

	if c.Scan.LedgerCheckpointEvery < 1 {
		return fmt.Errorf("SCAN_LEDGER_CHECKPOINT_EVERY must be at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
