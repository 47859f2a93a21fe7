// Package config provides application configuration loading from environment.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity provider kinds.
const (
	ProviderFirebase = "firebase"
	ProviderMemory   = "memory"
)

// DefaultBackendURL is the bill backend the original front-end talks to.
const DefaultBackendURL = "https://billpay-server.vercel.app/api/v1"

// DefaultSessionMaxEntries bounds the browser sessions held in memory.
const DefaultSessionMaxEntries = 10000

const (
	devSessionSecret = "dev-session-secret-change-me-0123456789"
	devEncryptionKey = "default-key-for-development-only"
)

// Config holds all configuration for the application.
type Config struct {
	Env      string
	Port     string
	LogLevel string
	LogJSON  bool

	BackendURL     string
	BackendTimeout time.Duration

	DatabasePath  string
	SessionSecret string
	EncryptionKey string
	SecureCookies bool

	IdentityProvider        string
	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseCredentialsJSON []byte
	GoogleClientID          string

	PaymentRedirectDelay time.Duration
	SessionLifetime      time.Duration
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
	SessionMaxEntries    int

	TraceExporter string

	// Warnings lists insecure defaults that were applied; main logs them.
	Warnings []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:               strings.ToLower(firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("ENV"), "development")),
		Port:              firstNonEmpty(os.Getenv("PORT"), "8080"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		LogJSON:           strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		BackendURL:        strings.TrimRight(firstNonEmpty(os.Getenv("BACKEND_URL"), DefaultBackendURL), "/"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		EncryptionKey:     os.Getenv("ENCRYPTION_KEY"),
		IdentityProvider:  strings.ToLower(os.Getenv("IDENTITY_PROVIDER")),
		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseAPIKey:    os.Getenv("FIREBASE_API_KEY"),
		GoogleClientID:    os.Getenv("GOOGLE_CLIENT_ID"),
		TraceExporter:     strings.ToLower(firstNonEmpty(os.Getenv("TRACE_EXPORTER"), "none")),
	}

	var errs []string

	cfg.DatabasePath = os.Getenv("DATABASE_PATH")
	if cfg.DatabasePath == "" {
		if os.Getenv("FLY_APP_NAME") != "" {
			cfg.DatabasePath = filepath.Join("/data", "billpay.db")
		} else {
			cfg.DatabasePath = "./billpay.db"
		}
	}

	durations := []struct {
		env  string
		dst  *time.Duration
		def  time.Duration
		desc string
	}{
		{"BACKEND_TIMEOUT", &cfg.BackendTimeout, 30 * time.Second, "backend timeout"},
		{"PAYMENT_REDIRECT_DELAY", &cfg.PaymentRedirectDelay, 1500 * time.Millisecond, "payment redirect delay"},
		{"SESSION_LIFETIME", &cfg.SessionLifetime, 14 * 24 * time.Hour, "session lifetime"},
		{"SESSION_IDLE_TIMEOUT", &cfg.SessionIdleTimeout, 2 * time.Hour, "session idle timeout"},
		{"SESSION_SWEEP_INTERVAL", &cfg.SessionSweepInterval, 10 * time.Minute, "session sweep interval"},
	}
	for _, d := range durations {
		*d.dst = d.def
		raw := strings.TrimSpace(os.Getenv(d.env))
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil || v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be a non-negative duration, got %q", d.env, raw))
			continue
		}
		*d.dst = v
	}

	cfg.SessionMaxEntries = DefaultSessionMaxEntries
	if raw := strings.TrimSpace(os.Getenv("SESSION_MAX_ENTRIES")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			errs = append(errs, fmt.Sprintf("SESSION_MAX_ENTRIES must be a non-negative integer, got %q", raw))
		} else {
			cfg.SessionMaxEntries = v
		}
	}

	cfg.SecureCookies = cfg.IsProduction()
	if raw := os.Getenv("SECURE_COOKIES"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SECURE_COOKIES must be a boolean, got %q", raw))
		} else {
			cfg.SecureCookies = v
		}
	}

	creds, err := loadFirebaseCredentials()
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.FirebaseCredentialsJSON = creds

	if cfg.IdentityProvider == "" {
		if len(cfg.FirebaseCredentialsJSON) > 0 {
			cfg.IdentityProvider = ProviderFirebase
		} else {
			cfg.IdentityProvider = ProviderMemory
		}
	}

	if !cfg.IsProduction() {
		if cfg.SessionSecret == "" {
			cfg.Warnings = append(cfg.Warnings, "SESSION_SECRET not set, using a development secret")
			cfg.SessionSecret = devSessionSecret
		}
		if cfg.EncryptionKey == "" {
			cfg.Warnings = append(cfg.Warnings, "ENCRYPTION_KEY not set, using a default key. This is NOT secure for production!")
			cfg.EncryptionKey = devEncryptionKey
		}
	}
	if cfg.IdentityProvider == ProviderMemory {
		cfg.Warnings = append(cfg.Warnings, "using the in-memory identity provider; accounts are lost on restart")
	}

	if err := cfg.validate(errs); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// validate checks that all required configuration is present.
func (c *Config) validate(errs []string) error {
	if c.SessionSecret == "" {
		errs = append(errs, "SESSION_SECRET is required")
	} else if len(c.SessionSecret) < 32 {
		errs = append(errs, "SESSION_SECRET must be at least 32 characters")
	}

	if c.EncryptionKey == "" {
		errs = append(errs, "ENCRYPTION_KEY is required")
	}

	switch c.IdentityProvider {
	case ProviderFirebase:
		if c.FirebaseAPIKey == "" {
			errs = append(errs, "FIREBASE_API_KEY is required for the firebase identity provider")
		}
		if len(c.FirebaseCredentialsJSON) == 0 {
			errs = append(errs, "one of FIREBASE_SERVICE_ACCOUNT_JSON, FIREBASE_SERVICE_ACCOUNT_BASE64 or FIREBASE_SERVICE_ACCOUNT is required for the firebase identity provider")
		}
	case ProviderMemory:
		if c.IsProduction() {
			errs = append(errs, "the memory identity provider cannot be used in production")
		}
	default:
		errs = append(errs, fmt.Sprintf("IDENTITY_PROVIDER must be %q or %q, got %q", ProviderFirebase, ProviderMemory, c.IdentityProvider))
	}

	switch c.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Sprintf("TRACE_EXPORTER must be none, stdout or otlp, got %q", c.TraceExporter))
	}

	if c.SessionLifetime < 5*time.Minute {
		errs = append(errs, "SESSION_LIFETIME must be at least 5m")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// loadFirebaseCredentials checks the three service-account variables in order:
// raw JSON, base64-encoded JSON, then the legacy variable.
func loadFirebaseCredentials() ([]byte, error) {
	if v := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); v != "" {
		return []byte(v), nil
	}

	if v := os.Getenv("FIREBASE_SERVICE_ACCOUNT_BASE64"); v != "" {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_BASE64 is not valid base64: %v", err)
		}
		return decoded, nil
	}

	if v := os.Getenv("FIREBASE_SERVICE_ACCOUNT"); v != "" {
		return []byte(v), nil
	}

	return nil, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
