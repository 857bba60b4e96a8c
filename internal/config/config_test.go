package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.LockTTL != 30*time.Second {
		t.Errorf("LockTTL = %v, want %v", cfg.LockTTL, 30*time.Second)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENCOUNTER_LOCK_TTL", "5s")
	t.Setenv("DICE_SEED", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.LockTTL != 5*time.Second {
		t.Errorf("LockTTL = %v, want %v", cfg.LockTTL, 5*time.Second)
	}
	if cfg.DiceSeed != 42 {
		t.Errorf("DiceSeed = %d, want 42", cfg.DiceSeed)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("ENCOUNTER_LOCK_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
