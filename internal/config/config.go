package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLength = 32

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DatabaseURL             string
	DBMaxConns              int
	DBMinConns              int
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	JWTSecret               string
	JWTAccessTTL            time.Duration
	JWTRefreshTTL           time.Duration
	TokenHeader             string
	TokenPrefix             string
	ProfileCacheTTL         time.Duration
	PermissionCacheTTL      time.Duration
	RoleCacheTTL            time.Duration
	CaptchaTTL              time.Duration
	CaptchaRequired         bool
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	LogLevel                string
	LogFormat               string
	AdminUsername           string
	AdminPassword           string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              getInt("DB_MAX_CONNS", 10),
		DBMinConns:              getInt("DB_MIN_CONNS", 2),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getInt("REDIS_DB", 0),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:            getDuration("JWT_ACCESS_TTL", 24*time.Hour),
		JWTRefreshTTL:           getDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		TokenHeader:             getEnv("TOKEN_HEADER", "Authorization"),
		TokenPrefix:             getEnvRaw("TOKEN_PREFIX", "Bearer "),
		ProfileCacheTTL:         getDuration("PROFILE_CACHE_TTL", 2*time.Hour),
		PermissionCacheTTL:      getDuration("PERMISSION_CACHE_TTL", time.Hour),
		RoleCacheTTL:            getDuration("ROLE_CACHE_TTL", time.Hour),
		CaptchaTTL:              getDuration("CAPTCHA_TTL", 5*time.Minute),
		CaptchaRequired:         getBool("CAPTCHA_REQUIRED", false),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "pretty"),
		AdminUsername:           getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:           os.Getenv("ADMIN_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	if c.JWTRefreshTTL < c.JWTAccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL cannot be shorter than JWT_ACCESS_TTL")
	}

	if strings.TrimSpace(c.TokenHeader) == "" {
		return fmt.Errorf("TOKEN_HEADER cannot be empty")
	}

	if c.CaptchaTTL <= 0 {
		return fmt.Errorf("CAPTCHA_TTL must be positive")
	}

	switch strings.ToLower(c.LogFormat) {
	case "pretty", "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of pretty, json, text")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

// getEnvRaw keeps surrounding whitespace, which matters for TOKEN_PREFIX.
func getEnvRaw(key string, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
