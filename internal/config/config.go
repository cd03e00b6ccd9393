// Package config loads process configuration from the environment and the
// optional balance file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds everything cmd/bridgekeeper needs at startup.
type Config struct {
	Difficulty      Difficulty
	Seed            int64 // 0 = pick one at random
	DBPath          string
	APIPort         int
	PlayerKey       string // Bearer token for POST actions. Empty = actions disabled.
	AutosaveSeconds int
	LogLevel        slog.Level
	Tuning          Tuning
}

// Load reads BRIDGEKEEPER_* variables.
func Load() (*Config, error) {
	diff, err := ParseDifficulty(os.Getenv("BRIDGEKEEPER_DIFFICULTY"))
	if err != nil {
		return nil, err
	}

	seed := int64(0)
	if v := os.Getenv("BRIDGEKEEPER_SEED"); v != "" {
		seed, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("BRIDGEKEEPER_SEED: %w", err)
		}
	}

	tuning, err := LoadTuning(os.Getenv("BRIDGEKEEPER_TUNING"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Difficulty:      diff,
		Seed:            seed,
		DBPath:          EnvOrDefault("BRIDGEKEEPER_DB", "data/bridgekeeper.db"),
		APIPort:         EnvIntOrDefault("BRIDGEKEEPER_PORT", 8080),
		PlayerKey:       os.Getenv("BRIDGEKEEPER_PLAYER_KEY"),
		AutosaveSeconds: EnvIntOrDefault("BRIDGEKEEPER_AUTOSAVE_SECONDS", 10),
		LogLevel:        ParseLogLevel(os.Getenv("BRIDGEKEEPER_LOG_LEVEL")),
		Tuning:          tuning,
	}, nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnvOrDefault returns the variable's value or defaultVal when unset.
func EnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// EnvIntOrDefault returns the variable parsed as int, or defaultVal when unset or malformed.
func EnvIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
