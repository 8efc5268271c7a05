package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort int
	AppEnv     string
	LogLevel   string

	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseURL    string

	JWTSecret    string
	JWTAlgorithm string
	TokenTTL     time.Duration
	BcryptCost   int

	AllowedOrigins []string
	AdminEmails    []string

	RateLimitMax    int
	RateLimitWindow time.Duration
	RedisAddr       string
	RedisPassword   string

	// TrustProxyHeaders takes client addresses from X-Forwarded-For and
	// X-Real-IP. Off by default: those headers are client controlled.
	TrustProxyHeaders bool

	SecurityEventRetention time.Duration
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first when present; real
// environment variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	port, err := getEnvInt("PORT", 8000)
	if err != nil {
		return nil, err
	}
	ttlMinutes, err := getEnvInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cost, err := getEnvInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, err
	}
	rateMax, err := getEnvInt("RATE_LIMIT_MAX_REQUESTS", 20)
	if err != nil {
		return nil, err
	}
	rateWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}
	trustProxy, err := getEnvBool("TRUST_PROXY_HEADERS", false)
	if err != nil {
		return nil, err
	}
	retention, err := time.ParseDuration(getEnv("SECURITY_EVENT_RETENTION", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SECURITY_EVENT_RETENTION: %w", err)
	}

	cfg := &Config{
		ServerPort:      port,
		AppEnv:          getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseDriver:  getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:     getEnv("DATABASE_URL", "./tasks.db"),
		JWTSecret:       getEnv("JWT_SECRET_KEY", ""),
		JWTAlgorithm:    getEnv("JWT_ALGORITHM", "HS256"),
		TokenTTL:        time.Duration(ttlMinutes) * time.Minute,
		BcryptCost:      cost,
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001,http://localhost:3002"),
		AdminEmails:     getEnvList("ADMIN_EMAILS", ""),
		RateLimitMax:    rateMax,
		RateLimitWindow: rateWindow,
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),

		TrustProxyHeaders:      trustProxy,
		SecurityEventRetention: retention,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm)
	}
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET_KEY must be set in production")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.TokenTTL <= 0 {
		return errors.New("JWT_ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	if c.SecurityEventRetention <= 0 {
		return errors.New("SECURITY_EVENT_RETENTION must be positive")
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, strconv.Itoa(fallback))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, strconv.FormatBool(fallback))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
