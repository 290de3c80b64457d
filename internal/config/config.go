package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var DefaultEnvConfig *EnvConfig

type EnvConfig struct {
	// http config
	APP_PORT string
	// database config
	DB_HOST              string
	DB_PORT              int
	DB_USER              string
	DB_PASSWORD          string
	DB_NAME              string
	DB_SSL_MODE          string
	DB_CONN_MAX_LIFETIME time.Duration
	DB_MAX_IDLE_CONNS    int
	DB_MAX_OPEN_CONNS    int
	// logger config
	LOG_FILE_PATH string
	LOG_LEVEL     string
	// rate limit config
	RATE_LIMIT_WINDOW  time.Duration
	RATE_LIMIT_MAX     int64
	RATE_LIMIT_STORAGE string
	REDIS_URL          string
	// ingestion config
	CSV_PATH              string
	INGEST_ON_STARTUP     bool
	INGEST_WORKERS        int
	INGEST_DEFAULT_YEAR   int
	INGEST_INSERT_RETRIES int
	INGEST_RETRY_BACKOFF  time.Duration
	// search config
	ELASTIC_URL string
}

// LoadEnvConfig reads .env (when present) and the process environment into DefaultEnvConfig.
func LoadEnvConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	DefaultEnvConfig = FromEnv()
	return nil
}

// FromEnv builds a config from the current process environment only.
func FromEnv() *EnvConfig {
	return &EnvConfig{
		APP_PORT:              getEnvString("APP_PORT", "3000"),
		DB_HOST:               getEnvString("DB_HOST", "localhost"),
		DB_PORT:               getEnvInt("DB_PORT", 5432),
		DB_USER:               getEnvString("DB_USER", "postgres"),
		DB_PASSWORD:           getEnvString("DB_PASSWORD", "postgres"),
		DB_NAME:               getEnvString("DB_NAME", "salaries"),
		DB_SSL_MODE:           getEnvString("DB_SSL_MODE", "disable"),
		DB_CONN_MAX_LIFETIME:  getEnvDuration("DB_CONN_MAX_LIFETIME", 20*time.Minute),
		DB_MAX_IDLE_CONNS:     getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DB_MAX_OPEN_CONNS:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
		LOG_FILE_PATH:         getEnvString("LOG_FILE_PATH", ""),
		LOG_LEVEL:             getEnvString("LOG_LEVEL", "info"),
		RATE_LIMIT_WINDOW:     getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RATE_LIMIT_MAX:        int64(getEnvInt("RATE_LIMIT_MAX", 100)),
		RATE_LIMIT_STORAGE:    strings.ToLower(getEnvString("RATE_LIMIT_STORAGE", "memory")),
		REDIS_URL:             getEnvString("REDIS_URL", ""),
		CSV_PATH:              getEnvString("CSV_PATH", "./public-salaries-ot-2021.csv"),
		INGEST_ON_STARTUP:     getEnvBool("INGEST_ON_STARTUP", true),
		INGEST_WORKERS:        getEnvInt("INGEST_WORKERS", 8),
		INGEST_DEFAULT_YEAR:   getEnvInt("INGEST_DEFAULT_YEAR", 2021),
		INGEST_INSERT_RETRIES: getEnvInt("INGEST_INSERT_RETRIES", 2),
		INGEST_RETRY_BACKOFF:  getEnvDuration("INGEST_RETRY_BACKOFF", 200*time.Millisecond),
		ELASTIC_URL:           getEnvString("ELASTIC_URL", ""),
	}
}

func getEnvString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}

// CSVPaths splits CSV_PATH on commas so several yearly files can be ingested together.
func (c *EnvConfig) CSVPaths() []string {
	var paths []string
	for _, p := range strings.Split(c.CSV_PATH, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
