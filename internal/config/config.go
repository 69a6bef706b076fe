package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	Env            string        `envconfig:"ENV" default:"development"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	TrustedProxies []string      `envconfig:"TRUSTED_PROXIES"`
	ReadTimeout    time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout    time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
}

type AuthConfig struct {
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenExpiry time.Duration `envconfig:"ACCESS_TOKEN_EXPIRY" default:"15m"`
	AdminEmail        string        `envconfig:"ADMIN_EMAIL"`
	AdminPassword     string        `envconfig:"ADMIN_PASSWORD"`
	BcryptCost        int           `envconfig:"BCRYPT_COST" default:"12"`
}

type SecurityConfig struct {
	MaxLoginAttempts        int           `envconfig:"MAX_LOGIN_ATTEMPTS" default:"5"`
	LockoutDurationMinutes  int           `envconfig:"LOCKOUT_DURATION_MINUTES" default:"15"`
	LockoutMaxDuration      time.Duration `envconfig:"LOCKOUT_MAX_DURATION" default:"1h"`
	LockoutMultiplier       float64       `envconfig:"LOCKOUT_MULTIPLIER" default:"1.5"`
	CleanupInterval         time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`
	GlobalRequestsPerMinute int           `envconfig:"GLOBAL_REQUESTS_PER_MINUTE" default:"120"`
	ThreatSignaturesFile    string        `envconfig:"THREAT_SIGNATURES_FILE"`
}

// LockoutDuration is the base lockout as a duration
func (s SecurityConfig) LockoutDuration() time.Duration {
	return time.Duration(s.LockoutDurationMinutes) * time.Minute
}

// Load reads .env (if present) and the process environment, then validates
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	// each section uses unprefixed keys
	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Security); err != nil {
		return nil, fmt.Errorf("failed to load security config: %w", err)
	}

	// the escalation cap never undercuts the base lockout
	if base := cfg.Security.LockoutDuration(); cfg.Security.LockoutMaxDuration < base {
		cfg.Security.LockoutMaxDuration = max(defaultLockoutMaxDuration, base)
	}

	cfg.Server.AllowedOrigins = trimAll(cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = trimAll(cfg.Server.TrustedProxies)
	if len(cfg.Server.AllowedOrigins) == 0 && !cfg.IsProduction() {
		cfg.Server.AllowedOrigins = developmentOrigins
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks values that envconfig cannot
func (c *Config) Validate() error {
	if err := validateJWTSecret(c.Auth.JWTSecret, c.Server.Env); err != nil {
		return err
	}

	var errs []error
	if c.Auth.AccessTokenExpiry <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRY must be positive"))
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if c.Security.MaxLoginAttempts < 1 {
		errs = append(errs, errors.New("MAX_LOGIN_ATTEMPTS must be at least 1"))
	}
	if c.Security.LockoutDurationMinutes < 1 {
		errs = append(errs, errors.New("LOCKOUT_DURATION_MINUTES must be at least 1"))
	}
	if c.Security.LockoutMaxDuration < c.Security.LockoutDuration() {
		errs = append(errs, errors.New("LOCKOUT_MAX_DURATION must not be shorter than LOCKOUT_DURATION_MINUTES"))
	}
	if c.Security.LockoutMultiplier < 1 {
		errs = append(errs, errors.New("LOCKOUT_MULTIPLIER must be at least 1"))
	}
	if c.Security.CleanupInterval < time.Second {
		errs = append(errs, errors.New("CLEANUP_INTERVAL must be at least 1s"))
	}
	if c.Security.GlobalRequestsPerMinute < 1 {
		errs = append(errs, errors.New("GLOBAL_REQUESTS_PER_MINUTE must be at least 1"))
	}

	return errors.Join(errs...)
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}
	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if strings.Trim(secretLower, "0123456789!-_") == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

const defaultLockoutMaxDuration = time.Hour

var developmentOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
