package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// RouteLimit is the fixed-window budget of one route class.
type RouteLimit struct {
	Class    string
	Prefixes []string
	Limit    int
	Window   time.Duration
}

type Config struct {
	AppPort     string
	Environment string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	KeycloakIssuer        string
	KeycloakClientID      string
	KeycloakRedirectURL   string
	KeycloakPublicBaseURL string

	RedisAddr     string
	RedisPassword string

	DatabaseDSN string

	CSRFSecret    string
	SessionSecret string

	SessionMaxAge    time.Duration
	SessionUpdateAge time.Duration
	StoreTimeout     time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	RateLimits            []RouteLimit
	CSRFProtectedPrefixes []string
	ProtectedAPIPrefixes  []string
	AllowedOrigins        []string
	TrustedProxies        []string

	LoginPath        string
	UnauthorizedPath string
}

// IsDevelopment reports whether internal error details may be shown to callers.
func (c Config) IsDevelopment() bool {
	return c.Environment != EnvProduction
}

// DefaultRateLimits are the per-class budgets applied when no override is set.
func DefaultRateLimits() []RouteLimit {
	return []RouteLimit{
		{Class: "signup", Prefixes: []string{"/api/auth/signup"}, Limit: 5, Window: 10 * time.Minute},
		{Class: "verify", Prefixes: []string{"/api/auth/verify-email", "/api/auth/resend-verification"}, Limit: 10, Window: 5 * time.Minute},
		{Class: "login", Prefixes: []string{"/api/auth/login"}, Limit: 10, Window: 15 * time.Minute},
	}
}

func Load() (Config, error) {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		AppPort:     GetEnv("APP_PORT", "8080"),
		Environment: strings.ToLower(GetEnv("APP_ENV", EnvDevelopment)),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		KeycloakIssuer:        os.Getenv("KEYCLOAK_ISSUER"),
		KeycloakClientID:      os.Getenv("KEYCLOAK_CLIENT_ID"),
		KeycloakRedirectURL:   os.Getenv("KEYCLOAK_REDIRECT_URL"),
		KeycloakPublicBaseURL: os.Getenv("KEYCLOAK_PUBLIC_BASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		CSRFSecret:    os.Getenv("CSRF_SECRET"),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		SessionMaxAge:    GetEnvAsDuration("SESSION_MAX_AGE", 30*24*time.Hour),
		SessionUpdateAge: GetEnvAsDuration("SESSION_UPDATE_AGE", 24*time.Hour),
		StoreTimeout:     GetEnvAsDuration("STORE_TIMEOUT", 2*time.Second),

		LockoutThreshold: GetEnvAsInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:  GetEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),

		CSRFProtectedPrefixes: GetEnvAsList("CSRF_PROTECTED_PREFIXES", []string{
			"/api/auth/signup",
			"/api/auth/login",
			"/api/auth/logout",
			"/api/profile",
			"/api/admin",
			"/api/instructor",
		}),
		ProtectedAPIPrefixes: GetEnvAsList("PROTECTED_API_PREFIXES", []string{
			"/api/profile",
			"/api/admin",
			"/api/instructor",
			"/api/enrollments",
		}),
		AllowedOrigins: GetEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		TrustedProxies: GetEnvAsList("TRUSTED_PROXIES", []string{"127.0.0.0/8", "::1/128"}),

		LoginPath:        GetEnv("LOGIN_PATH", "/login"),
		UnauthorizedPath: GetEnv("UNAUTHORIZED_PATH", "/unauthorized"),
	}

	limits, err := loadRateLimits(DefaultRateLimits())
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimits = limits

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SessionMaxAge <= 0 {
		return errors.New("config: SESSION_MAX_AGE must be positive")
	}
	if c.SessionUpdateAge < 0 || c.SessionUpdateAge > c.SessionMaxAge {
		return errors.New("config: SESSION_UPDATE_AGE must be between 0 and SESSION_MAX_AGE")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("config: STORE_TIMEOUT must be positive")
	}
	if c.LockoutThreshold < 1 {
		return errors.New("config: LOCKOUT_THRESHOLD must be at least 1")
	}

	if c.CSRFSecret == "" || c.SessionSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("config: CSRF_SECRET and SESSION_SECRET are required in production")
		}
		if c.CSRFSecret == "" {
			c.CSRFSecret = ephemeralSecret()
		}
		if c.SessionSecret == "" {
			c.SessionSecret = ephemeralSecret()
		}
		logger.Warn("using ephemeral secrets; tokens will not survive a restart", nil)
	}

	return nil
}

// loadRateLimits applies RATE_LIMIT_<CLASS>=count/window overrides.
func loadRateLimits(defaults []RouteLimit) ([]RouteLimit, error) {
	out := make([]RouteLimit, 0, len(defaults))
	for _, rl := range defaults {
		key := "RATE_LIMIT_" + strings.ToUpper(rl.Class)
		if raw := os.Getenv(key); raw != "" {
			limit, window, err := ParseLimit(raw)
			if err != nil {
				return nil, fmt.Errorf("config: %s: %w", key, err)
			}
			rl.Limit = limit
			rl.Window = window
		}
		out = append(out, rl)
	}
	return out, nil
}

// ParseLimit parses "5/10m" into a request count and window.
func ParseLimit(raw string) (int, time.Duration, error) {
	countStr, windowStr, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid limit %q, want count/duration", raw)
	}

	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count < 1 {
		return 0, 0, fmt.Errorf("invalid request count in %q", raw)
	}

	window, err := time.ParseDuration(strings.TrimSpace(windowStr))
	if err != nil || window <= 0 {
		return 0, 0, fmt.Errorf("invalid window in %q", raw)
	}

	return count, window, nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Warn("invalid integer in environment, using default", map[string]any{
			"key":     key,
			"value":   valueStr,
			"default": defaultValue,
		})
		return defaultValue
	}
	return value
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Warn("invalid duration in environment, using default", map[string]any{
			"key":     key,
			"value":   valueStr,
			"default": defaultValue.String(),
		})
		return defaultValue
	}
	return value
}

// GetEnvAsList splits a comma-separated variable, dropping empty entries.
func GetEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("config: failed to generate secret: " + err.Error())
	}
	return hex.EncodeToString(b)
}
