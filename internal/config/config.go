package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Chat       ChatConfig
	Classifier ClassifierConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
}

type DatabaseConfig struct {
	Connection string
}

type ChatConfig struct {
	// Rate limiter window. RateLimitMax sends per RateLimitWindow per user.
	RateLimitMax    int
	RateLimitWindow time.Duration
	// Number of recent messages replayed on join.
	ReplayLimit int
	ReplayTTL   time.Duration
}

type ClassifierConfig struct {
	BaseURL string
	Timeout time.Duration
	// Drain cadence. BatchSize jobs per tick across Workers goroutines; the
	// sustainable arrival rate is BatchSize / DrainInterval, anything above
	// that queues.
	DrainInterval time.Duration
	BatchSize     int
	Workers       int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Chat: ChatConfig{
			RateLimitMax:    getEnvAsInt("CHAT_RATE_LIMIT_MAX", 5),
			RateLimitWindow: getEnvAsDuration("CHAT_RATE_LIMIT_WINDOW_MS", 5000),
			ReplayLimit:     getEnvAsInt("CHAT_REPLAY_LIMIT", 50),
			ReplayTTL:       getEnvAsDuration("CHAT_REPLAY_TTL_MS", 2000),
		},
		Classifier: ClassifierConfig{
			BaseURL:       getEnv("CLASSIFIER_BASE_URL", "http://localhost:8000"),
			Timeout:       getEnvAsDuration("CLASSIFIER_TIMEOUT_MS", 3000),
			DrainInterval: getEnvAsDuration("CLASSIFIER_DRAIN_INTERVAL_MS", 500),
			BatchSize:     getEnvAsInt("CLASSIFIER_BATCH_SIZE", 4),
			Workers:       getEnvAsInt("CLASSIFIER_WORKERS", 4),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallbackMs)) * time.Millisecond
}
