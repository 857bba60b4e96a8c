package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string     `env:"PORT" envDefault:"8080"`
	Environment string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level `env:"-"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// LockTTL bounds how long one action may hold an encounter.
	LockTTL     time.Duration `env:"ENCOUNTER_LOCK_TTL" envDefault:"30s"`
	ResultTTL   time.Duration `env:"ACTION_RESULT_TTL" envDefault:"1h"`
	WorkerID    string        `env:"WORKER_ID"`
	MaxRequeues int           `env:"WORKER_MAX_REQUEUES" envDefault:"20"`

	// DiceSeed makes rolls reproducible when non-zero.
	DiceSeed int64 `env:"DICE_SEED"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
