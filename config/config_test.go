package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"APP_ENV", "ENV", "PORT", "LOG_LEVEL", "LOG_FORMAT", "BACKEND_URL", "BACKEND_TIMEOUT",
	"DATABASE_PATH", "FLY_APP_NAME", "SESSION_SECRET", "ENCRYPTION_KEY", "SECURE_COOKIES",
	"IDENTITY_PROVIDER", "FIREBASE_PROJECT_ID", "FIREBASE_API_KEY", "GOOGLE_CLIENT_ID",
	"FIREBASE_SERVICE_ACCOUNT_JSON", "FIREBASE_SERVICE_ACCOUNT_BASE64", "FIREBASE_SERVICE_ACCOUNT",
	"PAYMENT_REDIRECT_DELAY", "SESSION_LIFETIME", "SESSION_IDLE_TIMEOUT", "SESSION_SWEEP_INTERVAL",
	"SESSION_MAX_ENTRIES", "TRACE_EXPORTER",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.PaymentRedirectDelay)
	assert.Equal(t, "./billpay.db", cfg.DatabasePath)
	assert.Equal(t, DefaultSessionMaxEntries, cfg.SessionMaxEntries)
	assert.Equal(t, ProviderMemory, cfg.IdentityProvider)
	assert.Equal(t, "none", cfg.TraceExporter)
	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, devSessionSecret, cfg.SessionSecret)
	assert.Equal(t, devEncryptionKey, cfg.EncryptionKey)
	assert.Len(t, cfg.Warnings, 3)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("BACKEND_URL", "http://localhost:5000/api/v1/")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("PAYMENT_REDIRECT_DELAY", "0s")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("FLY_APP_NAME", "billpay")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "http://localhost:5000/api/v1", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.Equal(t, time.Duration(0), cfg.PaymentRedirectDelay)
	assert.True(t, cfg.LogJSON)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, "/data/billpay.db", cfg.DatabasePath)
}

func TestLoad_FirebaseCredentials(t *testing.T) {
	t.Run("base64 credentials select firebase", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FIREBASE_SERVICE_ACCOUNT_BASE64", base64.StdEncoding.EncodeToString([]byte(`{"type":"service_account"}`)))
		t.Setenv("FIREBASE_API_KEY", "api-key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ProviderFirebase, cfg.IdentityProvider)
		assert.JSONEq(t, `{"type":"service_account"}`, string(cfg.FirebaseCredentialsJSON))
	})

	t.Run("json wins over base64", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FIREBASE_SERVICE_ACCOUNT_JSON", `{"a":1}`)
		t.Setenv("FIREBASE_SERVICE_ACCOUNT_BASE64", "not base64 at all!")
		t.Setenv("FIREBASE_API_KEY", "api-key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(cfg.FirebaseCredentialsJSON))
	})

	t.Run("invalid base64 fails", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FIREBASE_SERVICE_ACCOUNT_BASE64", "%%%")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not valid base64")
	})

	t.Run("firebase without api key fails", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FIREBASE_SERVICE_ACCOUNT", `{"a":1}`)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FIREBASE_API_KEY is required")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET is required")
	assert.Contains(t, err.Error(), "ENCRYPTION_KEY is required")
	assert.Contains(t, err.Error(), "memory identity provider cannot be used in production")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"BACKEND_TIMEOUT": "soon"}, "BACKEND_TIMEOUT must be a non-negative duration"},
		{"bad bool", map[string]string{"SECURE_COOKIES": "maybe"}, "SECURE_COOKIES must be a boolean"},
		{"bad provider", map[string]string{"IDENTITY_PROVIDER": "ldap"}, "IDENTITY_PROVIDER must be"},
		{"bad exporter", map[string]string{"TRACE_EXPORTER": "zipkin"}, "TRACE_EXPORTER must be"},
		{"short secret", map[string]string{"SESSION_SECRET": "short"}, "at least 32 characters"},
		{"short lifetime", map[string]string{"SESSION_LIFETIME": "1m"}, "SESSION_LIFETIME must be at least 5m"},
		{"bad session cap", map[string]string{"SESSION_MAX_ENTRIES": "-1"}, "SESSION_MAX_ENTRIES must be a non-negative integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
