package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Input sources and output stores
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"

	StoreParquet  = "parquet"
	StorePostgres = "postgres"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Pipeline
	Pipeline PipelineConfig

	// External APIs
	BCB BCBConfig

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

// PipelineConfig holds the batch pipeline settings
type PipelineConfig struct {
	DataDir      string // root of input/ and output/
	InputSource  string // csv | postgres
	OutputStore  string // parquet | postgres
	StrategyFile string // YAML strategies and backtest settings
	Workers      int

	// ProbeTicker supplies the month-end trading calendar for premiums
	ProbeTicker string

	// LegacyExtraDay keeps the extra day of validity after the last disclosure
	LegacyExtraDay bool

	// Schedule is the cron expression for the scheduled rebuild
	Schedule string
}

// BCBConfig holds Banco Central SGS API configuration (CDI history)
type BCBConfig struct {
	BaseURL        string
	RequestsPerSec float64
	Timeout        time.Duration
}

// InputDir returns the directory holding the CSV inputs
func (p PipelineConfig) InputDir() string {
	return filepath.Join(p.DataDir, "input")
}

// OutputDir returns the directory holding file based outputs
func (p PipelineConfig) OutputDir() string {
	return filepath.Join(p.DataDir, "output")
}

// UsesDatabase reports whether any side of the pipeline needs PostgreSQL
func (c *Config) UsesDatabase() bool {
	return c.Pipeline.InputSource == SourcePostgres || c.Pipeline.OutputStore == StorePostgres
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Pipeline: PipelineConfig{
			DataDir:        getEnv("DATA_DIR", "dados"),
			InputSource:    getEnv("INPUT_SOURCE", SourceCSV),
			OutputStore:    getEnv("OUTPUT_STORE", StoreParquet),
			StrategyFile:   getEnv("STRATEGY_FILE", "config/strategies.yaml"),
			Workers:        getEnvAsInt("WORKERS", runtime.NumCPU()),
			ProbeTicker:    getEnv("PROBE_TICKER", "PETR4"),
			LegacyExtraDay: getEnvAsBool("LEGACY_EXTRA_DAY", false),
			Schedule:       getEnv("REBUILD_SCHEDULE", "0 0 21 * * 1-5"),
		},

		BCB: BCBConfig{
			BaseURL:        getEnv("BCB_BASE_URL", "https://api.bcb.gov.br/dados/serie/bcdata.sgs.12/dados"),
			RequestsPerSec: getEnvAsFloat("BCB_REQUESTS_PER_SEC", 2),
			Timeout:        getEnvAsDuration("BCB_TIMEOUT", "30s"),
		},

		// Logging
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

	switch c.Pipeline.InputSource {
	case SourceCSV, SourcePostgres:
	default:
		return fmt.Errorf("INPUT_SOURCE must be one of: %s, %s", SourceCSV, SourcePostgres)
	}

	switch c.Pipeline.OutputStore {
	case StoreParquet, StorePostgres:
	default:
		return fmt.Errorf("OUTPUT_STORE must be one of: %s, %s", StoreParquet, StorePostgres)
	}

	// DATABASE_URL is only required when PostgreSQL is in use
	if c.UsesDatabase() && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when INPUT_SOURCE or OUTPUT_STORE is postgres")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}

	if c.Pipeline.ProbeTicker == "" {
		return fmt.Errorf("PROBE_TICKER is required")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
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
