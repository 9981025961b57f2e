package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkghttp "github.com/BradenHooton/cadmium/pkg/http"
	"github.com/joho/godotenv"
)

// DefaultAdminURL is the privileged path segment used when ADMIN_URL is unset
const DefaultAdminURL = "admin-cadmium-secreto-2025/"

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Guard    GuardConfig
	Cache    CacheConfig
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
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string

	// TrustForwardedFor attributes requests to the first X-Forwarded-For entry from any
	// peer when TrustedProxies is empty. On by default for the single reverse proxy
	// deployment; set TRUST_FORWARDED_FOR=false when clients connect directly.
	TrustForwardedFor bool
}

// IPConfig builds the client IP attribution policy shared by the guard, the login
// handlers and the request logger
func (s ServerConfig) IPConfig() *pkghttp.IPConfig {
	return &pkghttp.IPConfig{
		TrustedProxies:    s.TrustedProxies,
		AssumeSingleProxy: s.TrustForwardedFor,
	}
}

type AuthConfig struct {
	SessionSecret           string
	SessionTTL              time.Duration
	ManagementIdleTimeout   time.Duration
	DefaultAccountPassword  string
	RevealDisabledAccounts  bool
	LoginRateLimitPerMinute int
	TimingDelayBaseMs       int
	TimingDelayRandomMs     int
	CookieSecure            bool
	AuditRetentionDays      int
	CleanupInterval         time.Duration
}

// GuardConfig configures the brute-force and rate-limit guard on the privileged path
type GuardConfig struct {
	PathPrefix        string
	MaxLoginAttempts  int
	LockoutDuration   time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	StoreTimeout      time.Duration
	FailClosed        bool
	FailureDetection  string // "event" or "response"
}

type CacheConfig struct {
	Backend       string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "cadmium"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:              getEnv("PORT", "8080"),
			Env:               env,
			LogLevel:          getEnv("LOG_LEVEL", "info"),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies:    getEnvAsList("TRUSTED_PROXIES"),
			TrustForwardedFor: getEnvAsBool("TRUST_FORWARDED_FOR", true),
		},
		Auth: AuthConfig{
			SessionSecret:           sessionSecret,
			SessionTTL:              getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			ManagementIdleTimeout:   getEnvAsDuration("SESSION_MANAGEMENT_IDLE_TIMEOUT", 10*time.Minute),
			DefaultAccountPassword:  getEnv("DEFAULT_ACCOUNT_PASSWORD", "popup"),
			RevealDisabledAccounts:  getEnvAsBool("AUTH_REVEAL_DISABLED", false),
			LoginRateLimitPerMinute: getEnvAsInt("LOGIN_RATE_LIMIT", 20),
			TimingDelayBaseMs:       getEnvAsInt("TIMING_DELAY_BASE_MS", 200),
			TimingDelayRandomMs:     getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			CookieSecure:            getEnvAsBool("COOKIE_SECURE", env == "production"),
			AuditRetentionDays:      getEnvAsInt("AUDIT_RETENTION_DAYS", 365),
			CleanupInterval:         getEnvAsDuration("CLEANUP_INTERVAL", 24*time.Hour),
		},
		Guard: GuardConfig{
			PathPrefix:        NormalizeAdminPath(getEnv("ADMIN_URL", DefaultAdminURL)),
			MaxLoginAttempts:  getEnvAsInt("ADMIN_MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:   getEnvAsDuration("ADMIN_LOCKOUT_DURATION", 900*time.Second),
			RateLimitRequests: getEnvAsInt("ADMIN_RATE_LIMIT_REQUESTS", 60),
			RateLimitWindow:   getEnvAsDuration("ADMIN_RATE_LIMIT_WINDOW", 60*time.Second),
			StoreTimeout:      getEnvAsDuration("GUARD_STORE_TIMEOUT", 3*time.Second),
			FailClosed:        getEnvAsBool("GUARD_FAIL_CLOSED", true),
			FailureDetection:  strings.ToLower(getEnv("GUARD_FAILURE_DETECTION", "event")),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			KeyPrefix:     getEnv("REDIS_KEY_PREFIX", "cadmium:"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Guard.validate(); err != nil {
		return nil, err
	}

	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("CACHE_BACKEND must be memory or redis (got %q)", cfg.Cache.Backend)
	}

	return cfg, nil
}

func (g GuardConfig) validate() error {
	if g.MaxLoginAttempts < 1 {
		return fmt.Errorf("ADMIN_MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if g.RateLimitRequests < 1 {
		return fmt.Errorf("ADMIN_RATE_LIMIT_REQUESTS must be at least 1")
	}
	if g.LockoutDuration <= 0 || g.RateLimitWindow <= 0 {
		return fmt.Errorf("ADMIN_LOCKOUT_DURATION and ADMIN_RATE_LIMIT_WINDOW must be positive")
	}
	if g.FailureDetection != "event" && g.FailureDetection != "response" {
		return fmt.Errorf("GUARD_FAILURE_DETECTION must be event or response (got %q)", g.FailureDetection)
	}
	if g.PathPrefix == "/" {
		return fmt.Errorf("ADMIN_URL cannot be the site root")
	}
	return nil
}

// validateSessionSecret enforces minimum security standards for the session signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example", "popup",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// NormalizeAdminPath turns "admin-x", "/admin-x" or "admin-x/" into "/admin-x/"
func NormalizeAdminPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
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

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvAsDuration accepts Go durations ("15m") and plain seconds ("900")
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
