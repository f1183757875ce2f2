// Package config handles application configuration via an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configurable values for the app.
type Config struct {
	Env         string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`
	HTTPAddress string `yaml:"http_address"`

	Strava    StravaConfig `yaml:"strava"`
	Gemini    GeminiConfig `yaml:"gemini"`
	Policy    PolicyConfig `yaml:"policy"`
	Redis     RedisConfig  `yaml:"redis"`
	SentryDSN string       `yaml:"sentry_dsn"`
}

type StravaConfig struct {
	ClientID           string        `yaml:"client_id"`
	ClientSecret       string        `yaml:"client_secret"`
	RefreshToken       string        `yaml:"refresh_token"`
	BaseURL            string        `yaml:"base_url"`
	WebhookVerifyToken string        `yaml:"webhook_verify_token"`
	Timeout            time.Duration `yaml:"timeout"`
	FetchAttempts      int           `yaml:"fetch_attempts"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	TokenExpiryMargin  time.Duration `yaml:"token_expiry_margin"`
}

type GeminiConfig struct {
	APIKey             string        `yaml:"api_key"`
	ModelName          string        `yaml:"model_name"`
	Timeout            time.Duration `yaml:"timeout"`
	GenerationAttempts int           `yaml:"generation_attempts"`
}

// PolicyConfig holds the tunables of the hide/narrate decision and the prompt.
type PolicyConfig struct {
	HideDistanceMeters  float64 `yaml:"hide_distance_meters"`
	DescriptionMinChars int     `yaml:"description_min_chars"`
	DescriptionMaxChars int     `yaml:"description_max_chars"`
}

type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	CredentialsKey string `yaml:"credentials_key"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Env:         "development",
		HTTPAddress: ":8080",
		Strava: StravaConfig{
			BaseURL:           "https://www.strava.com/api/v3",
			Timeout:           10 * time.Second,
			FetchAttempts:     3,
			RetryDelay:        500 * time.Millisecond,
			TokenExpiryMargin: 5 * time.Minute,
		},
		Gemini: GeminiConfig{
			ModelName:          "gemini-2.5-flash",
			Timeout:            60 * time.Second,
			GenerationAttempts: 1,
		},
		Policy: PolicyConfig{
			HideDistanceMeters:  1000,
			DescriptionMinChars: 100,
			DescriptionMaxChars: 200,
		},
		Redis: RedisConfig{
			CredentialsKey: "klaus:strava:credentials",
		},
	}
}

// Load reads the YAML file named by CONFIG_PATH (if any), applies environment
// overrides and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on missing credentials and nonsensical tunables.
func (c *Config) Validate() error {
	var errs []error
	required := map[string]string{
		"STRAVA_CLIENT_ID":     c.Strava.ClientID,
		"STRAVA_CLIENT_SECRET": c.Strava.ClientSecret,
		"STRAVA_REFRESH_TOKEN": c.Strava.RefreshToken,
		"GEMINI_API_KEY":       c.Gemini.APIKey,
	}
	for _, key := range []string{"STRAVA_CLIENT_ID", "STRAVA_CLIENT_SECRET", "STRAVA_REFRESH_TOKEN", "GEMINI_API_KEY"} {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if c.Strava.BaseURL == "" {
		errs = append(errs, errors.New("STRAVA_BASE_URL must not be empty"))
	}
	if c.Strava.Timeout <= 0 || c.Gemini.Timeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Strava.FetchAttempts < 1 || c.Gemini.GenerationAttempts < 1 {
		errs = append(errs, errors.New("attempt counts must be at least 1"))
	}
	if c.Policy.HideDistanceMeters < 0 {
		errs = append(errs, errors.New("HIDE_DISTANCE_METERS must not be negative"))
	}
	if c.Policy.DescriptionMinChars <= 0 || c.Policy.DescriptionMinChars > c.Policy.DescriptionMaxChars {
		errs = append(errs, fmt.Errorf("invalid description length range %d-%d",
			c.Policy.DescriptionMinChars, c.Policy.DescriptionMaxChars))
	}
	return errors.Join(errs...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPAddress = getEnv("HTTP_ADDRESS", cfg.HTTPAddress)
	cfg.SentryDSN = getEnv("SENTRY_DSN", cfg.SentryDSN)

	cfg.Strava.ClientID = getEnv("STRAVA_CLIENT_ID", cfg.Strava.ClientID)
	cfg.Strava.ClientSecret = getEnv("STRAVA_CLIENT_SECRET", cfg.Strava.ClientSecret)
	cfg.Strava.RefreshToken = getEnv("STRAVA_REFRESH_TOKEN", cfg.Strava.RefreshToken)
	cfg.Strava.BaseURL = getEnv("STRAVA_BASE_URL", cfg.Strava.BaseURL)
	cfg.Strava.WebhookVerifyToken = getEnv("STRAVA_WEBHOOK_VERIFY_TOKEN", cfg.Strava.WebhookVerifyToken)

	cfg.Gemini.APIKey = getEnv("GEMINI_API_KEY", cfg.Gemini.APIKey)
	cfg.Gemini.ModelName = getEnv("GEMINI_MODEL_NAME", cfg.Gemini.ModelName)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.CredentialsKey = getEnv("REDIS_CREDENTIALS_KEY", cfg.Redis.CredentialsKey)

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"UPSTREAM_TIMEOUT", &cfg.Strava.Timeout},
		{"RETRY_DELAY", &cfg.Strava.RetryDelay},
		{"TOKEN_EXPIRY_MARGIN", &cfg.Strava.TokenExpiryMargin},
		{"GENERATION_TIMEOUT", &cfg.Gemini.Timeout},
	}
	for _, d := range durations {
		if *d.dst, err = getDurationEnv(d.key, *d.dst); err != nil {
			return err
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"FETCH_ATTEMPTS", &cfg.Strava.FetchAttempts},
		{"GENERATION_ATTEMPTS", &cfg.Gemini.GenerationAttempts},
		{"DESCRIPTION_MIN_CHARS", &cfg.Policy.DescriptionMinChars},
		{"DESCRIPTION_MAX_CHARS", &cfg.Policy.DescriptionMaxChars},
	}
	for _, i := range ints {
		if *i.dst, err = getIntEnv(i.key, *i.dst); err != nil {
			return err
		}
	}

	if val := os.Getenv("HIDE_DISTANCE_METERS"); val != "" {
		meters, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid HIDE_DISTANCE_METERS: %w", err)
		}
		cfg.Policy.HideDistanceMeters = meters
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
