// Package config loads runtime settings from the environment with
// development-friendly defaults. Production deployments override every
// secret-bearing value.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	AllowedOrigin string

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL string

	// Empty RedisAddr disables the stats cache and the background queue.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthSecret     string
	AccessTokenTTL time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	MaxUploadBytes int64
	PresignTTL     time.Duration
	StatsCacheTTL  time.Duration

	// Cron expression for the nightly close-out, in the server's local time.
	EODSchedule string
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthSecret:     getEnv("AUTH_SECRET", "dev-only-secret-change-me-in-production"),
		AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 60)) * time.Minute,

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "printdesk-documents"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		PresignTTL:     time.Duration(getEnvInt("PRESIGN_TTL_SECONDS", 300)) * time.Second,
		StatsCacheTTL:  time.Duration(getEnvInt("STATS_CACHE_TTL_SECONDS", 10)) * time.Second,

		EODSchedule: getEnv("EOD_SCHEDULE", "0 22 * * *"),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
