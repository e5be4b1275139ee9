// Package config provides configuration for the orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Notification webhook (empty disables delivery)
	NotifyWebhookURL string

	// Scheduler settings
	CycleInterval time.Duration
	BatchSize     int
	MaxRetries    int

	// Finance guard limits
	MaxCPA       float64
	MinROAS      float64
	MinCTR       float64
	MaxFrequency float64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:      getEnv("DATABASE_URL", "file:orchestrator.db?cache=shared&mode=rwc"),
		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		CycleInterval:    time.Duration(getEnvInt("CYCLE_INTERVAL_MS", 60000)) * time.Millisecond,
		BatchSize:        getEnvInt("BATCH_SIZE", 5),
		MaxRetries:       getEnvInt("MAX_RETRIES", 1),
		MaxCPA:           getEnvFloat("MAX_CPA", 50),
		MinROAS:          getEnvFloat("MIN_ROAS", 2.0),
		MinCTR:           getEnvFloat("MIN_CTR", 0.01),
		MaxFrequency:     getEnvFloat("MAX_FREQUENCY", 3.5),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
