// Package config loads server configuration from the environment.
// A .env file in the working directory is honored when present.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabasePath string
	KafkaBrokers []string // empty means no event publishing
	SeedSample   bool
}

// Load reads configuration with sensible local-dev defaults.
func Load() Config {
	// Missing .env is fine; env vars still apply.
	_ = godotenv.Load()

	return Config{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DB_PATH", "bookledger.db"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		SeedSample:   getEnv("SEED_SAMPLE_DATA", "true") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
