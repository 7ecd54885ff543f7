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
	Database  DatabaseConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Abuse     AbuseConfig
	Event     EventConfig
	Captcha   CaptchaConfig
	Redis     RedisConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string // CIDR ranges allowed to set X-Forwarded-For
}

// RateLimitConfig holds the per-dimension fixed-window limits.
// The email dimension is deliberately stricter than IP: many legitimate
// attendees share one IP on conference Wi-Fi.
type RateLimitConfig struct {
	EmailLimit  int
	EmailWindow time.Duration
	IPLimit     int
	IPWindow    time.Duration
}

// FailMode names what happens when a block/rate check's backing store
// call errors: deny the request (closed) or let it through (open).
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

// AbuseConfig holds block-registry and escalation policy.
type AbuseConfig struct {
	// BlockFailModeEmail defaults to closed: email is the primary
	// identity signal, so uncertainty denies. BlockFailModeIP defaults
	// to open. Both are explicit operator choices, not code paths.
	BlockFailModeEmail FailMode
	BlockFailModeIP    FailMode

	// RateFailMode applies when the counter store itself errors during a
	// rate check. Defaults to open: a store outage should not turn away
	// every registrant.
	RateFailMode FailMode

	AlertThreshold      int
	EscalationThreshold int
	EscalationLookback  time.Duration
	EscalationInterval  time.Duration // 0 disables the scheduled run
	EscalationBlockTTL  time.Duration // 0 = permanent until unblock
	ViolationRetention  time.Duration
	MaintenanceInterval time.Duration
}

type EventConfig struct {
	Capacity int // seats before new registrations go to the waitlist
}

type CaptchaConfig struct {
	Required     bool
	Secret       string
	VerifyURL    string
	Timeout      time.Duration
	VerifyPerSec float64
	VerifyBurst  int
}

// RedisConfig is optional; when Addr is empty the rate-limit counters
// live in Postgres.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "jengahacks"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES", nil),
		},
		RateLimit: RateLimitConfig{
			EmailLimit:  getEnvAsInt("RATE_LIMIT_EMAIL_MAX", 3),
			EmailWindow: getEnvAsDuration("RATE_LIMIT_EMAIL_WINDOW", 1*time.Hour),
			IPLimit:     getEnvAsInt("RATE_LIMIT_IP_MAX", 5),
			IPWindow:    getEnvAsDuration("RATE_LIMIT_IP_WINDOW", 1*time.Hour),
		},
		Abuse: AbuseConfig{
			BlockFailModeEmail:  FailMode(getEnv("BLOCK_FAIL_MODE_EMAIL", string(FailClosed))),
			BlockFailModeIP:     FailMode(getEnv("BLOCK_FAIL_MODE_IP", string(FailOpen))),
			RateFailMode:        FailMode(getEnv("RATE_FAIL_MODE", string(FailOpen))),
			AlertThreshold:      getEnvAsInt("VIOLATION_ALERT_THRESHOLD", 5),
			EscalationThreshold: getEnvAsInt("ESCALATION_THRESHOLD", 10),
			EscalationLookback:  getEnvAsDuration("ESCALATION_LOOKBACK", 24*time.Hour),
			EscalationInterval:  getEnvAsDuration("ESCALATION_INTERVAL", 0),
			EscalationBlockTTL:  getEnvAsDuration("ESCALATION_BLOCK_TTL", 0),
			ViolationRetention:  getEnvAsDuration("VIOLATION_RETENTION", 30*24*time.Hour),
			MaintenanceInterval: getEnvAsDuration("MAINTENANCE_INTERVAL", 1*time.Hour),
		},
		Event: EventConfig{
			Capacity: getEnvAsInt("EVENT_CAPACITY", 200),
		},
		Captcha: CaptchaConfig{
			Required:     getEnvAsBool("CAPTCHA_REQUIRED", false),
			Secret:       getEnv("CAPTCHA_SECRET", ""),
			VerifyURL:    getEnv("CAPTCHA_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
			Timeout:      getEnvAsDuration("CAPTCHA_TIMEOUT", 5*time.Second),
			VerifyPerSec: getEnvAsFloat("CAPTCHA_VERIFY_PER_SEC", 10),
			VerifyBurst:  getEnvAsInt("CAPTCHA_VERIFY_BURST", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Event.Capacity <= 0 {
		return nil, fmt.Errorf("EVENT_CAPACITY must be positive")
	}
	if cfg.Captcha.Required && cfg.Captcha.Secret == "" {
		return nil, fmt.Errorf("CAPTCHA_SECRET is required when CAPTCHA_REQUIRED=true")
	}
	if err := validateFailMode("BLOCK_FAIL_MODE_EMAIL", cfg.Abuse.BlockFailModeEmail); err != nil {
		return nil, err
	}
	if err := validateFailMode("BLOCK_FAIL_MODE_IP", cfg.Abuse.BlockFailModeIP); err != nil {
		return nil, err
	}
	if err := validateFailMode("RATE_FAIL_MODE", cfg.Abuse.RateFailMode); err != nil {
		return nil, err
	}
	if cfg.RateLimit.EmailLimit <= 0 || cfg.RateLimit.IPLimit <= 0 {
		return nil, fmt.Errorf("rate limit maxima must be positive")
	}

	return cfg, nil
}

func validateFailMode(key string, mode FailMode) error {
	if mode != FailOpen && mode != FailClosed {
		return fmt.Errorf("%s must be %q or %q (got %q)", key, FailOpen, FailClosed, mode)
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
