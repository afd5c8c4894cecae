package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("Invalid boolean environment variable, using default", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}

// PrefFailOpen selects availability over strictness for preference checks:
// when storage is unavailable, true delivers on defaults, false suppresses.
func PrefFailOpen() bool {
	return GetEnvBool("PREF_FAIL_OPEN", true)
}
