package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	AIProvider             string
	OpenAIAPIKey           string
	AnthropicAPIKey        string
	AIModel                string
	GradingTimeout         time.Duration
	RetryAttempts          int
	RetryBackoff           time.Duration
	DailyQuota             int
	DraftTTL               time.Duration
	GradingProfile         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MARKWISE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "MarkWise API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "markwise/papers")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("grading.timeout", "60s")
	v.SetDefault("grading.retry_attempts", 3)
	v.SetDefault("grading.retry_backoff", "2s")
	v.SetDefault("grading.profile", "default")
	v.SetDefault("quota.daily_limit", 50)
	v.SetDefault("draft.ttl", "168h")

	gradingTimeout, err := time.ParseDuration(v.GetString("grading.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid grading timeout: %w", err)
	}

	retryBackoff, err := time.ParseDuration(v.GetString("grading.retry_backoff"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid retry backoff: %w", err)
	}

	draftTTL, err := time.ParseDuration(v.GetString("draft.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid draft ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
		AIModel:                v.GetString("ai.model"),
		GradingTimeout:         gradingTimeout,
		RetryAttempts:          v.GetInt("grading.retry_attempts"),
		RetryBackoff:           retryBackoff,
		DailyQuota:             v.GetInt("quota.daily_limit"),
		DraftTTL:               draftTTL,
		GradingProfile:         v.GetString("grading.profile"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}

	return cfg, nil
}
