package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	RedisAddr   string
	Port        string
	LogLevel    string

	QueryTimeout time.Duration

	// Cache circuit breaker
	CacheBreakerThreshold int
	CacheBreakerCooldown  time.Duration

	// Platform catalog warmer
	PlatformWarmInterval time.Duration
}

func Load() Config {
	return Config{
		DatabaseURL:           getEnvRequired("DATABASE_URL"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		QueryTimeout:          getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
		CacheBreakerThreshold: getEnvInt("CACHE_BREAKER_THRESHOLD", 5),
		CacheBreakerCooldown:  getEnvDuration("CACHE_BREAKER_COOLDOWN", 10*time.Second),
		PlatformWarmInterval:  getEnvDuration("PLATFORM_WARM_INTERVAL", 5*time.Minute),
	}
}

func getEnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("required environment variable " + key + " is not set")
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return d
	}
	return fallback
}
