package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	BaseURL   string
	Database  DatabaseConfig
	Storage   StorageConfig
	Import    ImportConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Dir string
}

// ImportConfig holds CSV import engine tuning
type ImportConfig struct {
	// ChunkSize is the row-count ceiling per checkpointed chunk.
	ChunkSize int
	// ChunkBudget is the wall-clock ceiling per chunk; whichever limit
	// is hit first ends the chunk.
	ChunkBudget time.Duration
	// SyncLimitBytes is the largest upload processed inline; bigger
	// files go through the background runner.
	SyncLimitBytes int64
	// MaxFileBytes rejects uploads outright above this size.
	MaxFileBytes int64
	// TicketTTL is how long a deferred-upload ticket stays valid.
	TicketTTL time.Duration
	// PollInterval is how often the runner scans for runnable jobs.
	PollInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3310"),
		JWTSecret: jwtSecret,
		BaseURL:   getEnv("BASE_URL", "http://localhost:3310"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "dataport"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "./blob_data"),
		},
		Import: ImportConfig{
			ChunkSize:      getEnvInt("IMPORT_CHUNK_SIZE", 1000),
			ChunkBudget:    getEnvDuration("IMPORT_CHUNK_BUDGET", 20*time.Second),
			SyncLimitBytes: int64(getEnvInt("IMPORT_SYNC_LIMIT_BYTES", 1<<20)),
			MaxFileBytes:   int64(getEnvInt("IMPORT_MAX_FILE_BYTES", 100<<20)),
			TicketTTL:      getEnvDuration("IMPORT_TICKET_TTL", 1*time.Hour),
			PollInterval:   getEnvDuration("IMPORT_POLL_INTERVAL", 2*time.Second),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
