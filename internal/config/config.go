package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel  string
	LogFormat string

	MemoryMaxMessages   int
	MemoryTimeout       time.Duration
	MemorySweepInterval time.Duration
	MemoryShards        int

	BotPrefix string
	BotName   string

	CompletionMode        string
	OpenRouterAPIKey      string
	OpenRouterURL         string
	OpenRouterModel       string
	CompletionMaxTokens   int
	CompletionTemperature float64
	CompletionTimeout     time.Duration
	CompletionMaxRetries  int

	DatabaseURL      string
	ArchiveRedactPII bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "gearhead"),
		LogLevel:         strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(envOrDefault("LOG_FORMAT", "json")),
		BotPrefix:        envOrDefault("BOT_PREFIX", "!"),
		BotName:          envOrDefault("BOT_NAME", "Gearhead"),
		CompletionMode:   strings.ToLower(envOrDefault("COMPLETION_MODE", "auto")),
		OpenRouterAPIKey: stringsTrimSpace("OPENROUTER_API_KEY"),
		OpenRouterURL:    envOrDefault("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		// Free tier model.
		OpenRouterModel:       envOrDefault("OPENROUTER_MODEL", "deepseek/deepseek-chat-v3.1:free"),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:       15 * time.Second,
		MemoryMaxMessages:     15,
		MemoryTimeout:         30 * time.Minute,
		MemorySweepInterval:   10 * time.Minute,
		MemoryShards:          16,
		CompletionMaxTokens:   300,
		CompletionTemperature: 0.7,
		CompletionTimeout:     60 * time.Second,
		CompletionMaxRetries:  2,
		ArchiveRedactPII:      true,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryMaxMessages, err = intFromEnv("MEMORY_MAX_MESSAGES", cfg.MemoryMaxMessages)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryTimeout, err = durationFromEnv("MEMORY_TIMEOUT", cfg.MemoryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MemorySweepInterval, err = durationFromEnv("MEMORY_SWEEP_INTERVAL", cfg.MemorySweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryShards, err = intFromEnv("MEMORY_SHARDS", cfg.MemoryShards)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionMaxTokens, err = intFromEnv("COMPLETION_MAX_TOKENS", cfg.CompletionMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionTemperature, err = floatFromEnv("COMPLETION_TEMPERATURE", cfg.CompletionTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionTimeout, err = durationFromEnv("COMPLETION_TIMEOUT", cfg.CompletionTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionMaxRetries, err = intFromEnv("COMPLETION_MAX_RETRIES", cfg.CompletionMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.ArchiveRedactPII, err = boolFromEnv("ARCHIVE_REDACT_PII", cfg.ArchiveRedactPII)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MemoryMaxMessages <= 0 {
		return fmt.Errorf("MEMORY_MAX_MESSAGES must be positive")
	}
	if c.MemoryTimeout < time.Second {
		return fmt.Errorf("MEMORY_TIMEOUT must be at least 1s")
	}
	if c.MemorySweepInterval < time.Second {
		return fmt.Errorf("MEMORY_SWEEP_INTERVAL must be at least 1s")
	}
	if c.MemoryShards <= 0 {
		return fmt.Errorf("MEMORY_SHARDS must be positive")
	}
	if strings.TrimSpace(c.BotPrefix) == "" {
		return fmt.Errorf("BOT_PREFIX must not be blank")
	}
	switch c.CompletionMode {
	case "auto", "openrouter", "langchain", "mock":
	default:
		return fmt.Errorf("COMPLETION_MODE must be one of auto|openrouter|langchain|mock, got %q", c.CompletionMode)
	}
	if c.CompletionMaxTokens <= 0 {
		return fmt.Errorf("COMPLETION_MAX_TOKENS must be positive")
	}
	if c.CompletionTemperature < 0 || c.CompletionTemperature > 2 {
		return fmt.Errorf("COMPLETION_TEMPERATURE must be within [0, 2]")
	}
	if c.CompletionMaxRetries < 0 {
		return fmt.Errorf("COMPLETION_MAX_RETRIES must be >= 0")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
