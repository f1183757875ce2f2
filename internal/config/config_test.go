package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"ENV", "LOG_LEVEL", "HTTP_ADDRESS", "SENTRY_DSN", "CONFIG_PATH",
	"STRAVA_CLIENT_ID", "STRAVA_CLIENT_SECRET", "STRAVA_REFRESH_TOKEN", "STRAVA_BASE_URL",
	"STRAVA_WEBHOOK_VERIFY_TOKEN", "GEMINI_API_KEY", "GEMINI_MODEL_NAME",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_CREDENTIALS_KEY",
	"UPSTREAM_TIMEOUT", "RETRY_DELAY", "TOKEN_EXPIRY_MARGIN", "GENERATION_TIMEOUT",
	"FETCH_ATTEMPTS", "GENERATION_ATTEMPTS", "DESCRIPTION_MIN_CHARS", "DESCRIPTION_MAX_CHARS",
	"HIDE_DISTANCE_METERS",
}

// setEnv clears every key Load reads, then sets the required credentials and
// any overrides.
func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
	}
	t.Setenv("STRAVA_CLIENT_ID", "12345")
	t.Setenv("STRAVA_CLIENT_SECRET", "client-secret")
	t.Setenv("STRAVA_REFRESH_TOKEN", "refresh-token")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	for k, v := range overrides {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, "https://www.strava.com/api/v3", cfg.Strava.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Strava.Timeout)
	assert.Equal(t, 3, cfg.Strava.FetchAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Strava.TokenExpiryMargin)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.ModelName)
	assert.Equal(t, 60*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 1, cfg.Gemini.GenerationAttempts)
	assert.Equal(t, 1000.0, cfg.Policy.HideDistanceMeters)
	assert.Equal(t, 100, cfg.Policy.DescriptionMinChars)
	assert.Equal(t, 200, cfg.Policy.DescriptionMaxChars)
	assert.Equal(t, "klaus:strava:credentials", cfg.Redis.CredentialsKey)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Strava.WebhookVerifyToken)
}

func TestLoad_CustomEnv(t *testing.T) {
	setEnv(t, map[string]string{
		"ENV":                   "production",
		"HTTP_ADDRESS":          "127.0.0.1:9090",
		"STRAVA_BASE_URL":       "http://localhost:9000",
		"UPSTREAM_TIMEOUT":      "3s",
		"FETCH_ATTEMPTS":        "5",
		"GENERATION_ATTEMPTS":   "2",
		"HIDE_DISTANCE_METERS":  "1609.34",
		"DESCRIPTION_MIN_CHARS": "200",
		"DESCRIPTION_MAX_CHARS": "300",
		"REDIS_ADDR":            "localhost:6379",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddress)
	assert.Equal(t, "http://localhost:9000", cfg.Strava.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Strava.Timeout)
	assert.Equal(t, 5, cfg.Strava.FetchAttempts)
	assert.Equal(t, 2, cfg.Gemini.GenerationAttempts)
	assert.Equal(t, 1609.34, cfg.Policy.HideDistanceMeters)
	assert.Equal(t, 200, cfg.Policy.DescriptionMinChars)
	assert.Equal(t, 300, cfg.Policy.DescriptionMaxChars)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key           string
		value         string
		expectedError string
	}{
		{key: "FETCH_ATTEMPTS", value: "invalid", expectedError: "invalid FETCH_ATTEMPTS"},
		{key: "UPSTREAM_TIMEOUT", value: "ten", expectedError: "invalid UPSTREAM_TIMEOUT"},
		{key: "HIDE_DISTANCE_METERS", value: "far", expectedError: "invalid HIDE_DISTANCE_METERS"},
		{key: "HIDE_DISTANCE_METERS", value: "-1", expectedError: "must not be negative"},
		{key: "FETCH_ATTEMPTS", value: "0", expectedError: "attempt counts must be at least 1"},
		{key: "GENERATION_TIMEOUT", value: "0s", expectedError: "timeouts must be positive"},
		{key: "DESCRIPTION_MIN_CHARS", value: "500", expectedError: "invalid description length range 500-200"},
	}

	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setEnv(t, map[string]string{tc.key: tc.value})

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedError)
		})
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	setEnv(t, map[string]string{"STRAVA_REFRESH_TOKEN": "", "GEMINI_API_KEY": ""})

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRAVA_REFRESH_TOKEN is required")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY is required")
	assert.NotContains(t, err.Error(), "STRAVA_CLIENT_ID")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klaus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: staging
strava:
  base_url: http://strava.internal
  fetch_attempts: 4
  timeout: 2s
policy:
  hide_distance_meters: 800
redis:
  addr: redis:6379
`), 0o600))

	setEnv(t, map[string]string{"CONFIG_PATH": path, "FETCH_ATTEMPTS": "6"})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, "http://strava.internal", cfg.Strava.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Strava.Timeout)
	assert.Equal(t, 6, cfg.Strava.FetchAttempts, "environment wins over the file")
	assert.Equal(t, 800.0, cfg.Policy.HideDistanceMeters)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 200, cfg.Policy.DescriptionMaxChars, "defaults survive a partial file")
}

func TestLoad_BadFile(t *testing.T) {
	setEnv(t, map[string]string{"CONFIG_PATH": filepath.Join(t.TempDir(), "missing.yaml")})

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strava: [unclosed"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}
