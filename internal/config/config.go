package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	StatsBackend    string
	MongoURL        string
	MongoDatabase   string
	AlertWebhookURL string
	LogLevel        string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		StatsBackend:    getEnv("STATS_BACKEND", BackendMongo),
		MongoURL:        getEnv("MONGO_URL", ""),
		MongoDatabase:   getEnv("MONGO_DATABASE", "statistics"),
		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.StatsBackend != BackendMongo && cfg.StatsBackend != BackendMemory {
		return nil, fmt.Errorf("unknown STATS_BACKEND %q", cfg.StatsBackend)
	}
	if cfg.StatsBackend == BackendMongo && cfg.MongoURL == "" {
		return nil, fmt.Errorf("MONGO_URL is required")
	}

	logger.Info().
		Str("stats_backend", cfg.StatsBackend).
		Str("mongo_database", cfg.MongoDatabase).
		Bool("alert_webhook", cfg.AlertWebhookURL != "").
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
