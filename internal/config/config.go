package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis (비어 있으면 단일 인스턴스 모드)
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Match workflow
	AutoApprovalWindow        time.Duration
	AutoApprovalSweepInterval time.Duration
	AutoApprovalWorkers       int
	MatchLockTTL              time.Duration
	IdempotencyTTL            time.Duration
	DefaultMatchDuration      time.Duration
	LeagueTimezone            *time.Location

	// Rate limit (사용자당 매치 변경 요청)
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	location, err := time.LoadLocation(getEnv("LEAGUE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEAGUE_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "8080"),
		Env:                       getEnv("ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		RedisURL:                  getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:                 getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:             parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		CORSAllowedOrigins:        splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		AutoApprovalWindow:        parseDuration(getEnv("AUTO_APPROVAL_WINDOW", "24h"), 24*time.Hour),
		AutoApprovalSweepInterval: parseDuration(getEnv("AUTO_APPROVAL_SWEEP_INTERVAL", "1m"), time.Minute),
		AutoApprovalWorkers:       parseInt(getEnv("AUTO_APPROVAL_WORKERS", "4"), 4),
		MatchLockTTL:              parseDuration(getEnv("MATCH_LOCK_TTL", "10s"), 10*time.Second),
		IdempotencyTTL:            parseDuration(getEnv("IDEMPOTENCY_TTL", "24h"), 24*time.Hour),
		DefaultMatchDuration:      parseDuration(getEnv("DEFAULT_MATCH_DURATION", "90m"), 90*time.Minute),
		LeagueTimezone:            location,
		RateLimitRequests:         parseInt(getEnv("RATE_LIMIT_REQUESTS", "30"), 30),
		RateLimitWindow:           parseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"), time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Env == "production" && cfg.JWTSecret == "your-secret-key" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
