// Package common provides shared utilities for Tally
package common

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tally
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Cache       CacheConfig   `toml:"cache"`
	Scoring     ScoringConfig `toml:"scoring"`
	Clients     ClientsConfig `toml:"clients"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

// StorageConfig holds the path of the embedded BadgerHold store and the
// optional directory of JSON records to import at startup.
type StorageConfig struct {
	Path      string `toml:"path" validate:"required"`
	ImportDir string `toml:"import_dir"`
}

// CacheConfig holds in-memory cache housekeeping configuration.
type CacheConfig struct {
	JanitorInterval string `toml:"janitor_interval"`
	MaxEntries      int    `toml:"max_entries" validate:"min=0"`
}

// GetJanitorInterval parses and returns the expiry sweep interval
func (c *CacheConfig) GetJanitorInterval() time.Duration {
	d, err := time.ParseDuration(c.JanitorInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ScoringConfig holds the tunable constants of the scoring engine.
// Weights and override thresholds are deliberately configuration, not
// hidden conditionals.
type ScoringConfig struct {
	FundamentalWeight        float64 `toml:"fundamental_weight" validate:"min=0,max=1"`
	TechnicalWeight          float64 `toml:"technical_weight" validate:"min=0,max=1"`
	OverrideFundamentalBelow float64 `toml:"override_fundamental_below" validate:"min=0,max=100"`
	OverrideTechnicalAbove   float64 `toml:"override_technical_above" validate:"min=0,max=100"`
	TechnicalOnlyConfidence  float64 `toml:"technical_only_confidence" validate:"min=0,max=1"`
	FiscalYearStartMonth     int     `toml:"fiscal_year_start_month" validate:"min=1,max=12"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Gemini GeminiConfig `toml:"gemini"`
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/tally",
		},
		Cache: CacheConfig{
			JanitorInterval: "5m",
			MaxEntries:      4096,
		},
		Scoring: ScoringConfig{
			FundamentalWeight:        0.50,
			TechnicalWeight:          0.50,
			OverrideFundamentalBelow: 50,
			OverrideTechnicalAbove:   65,
			TechnicalOnlyConfidence:  0.5,
			FiscalYearStartMonth:     1,
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				Model:   "gemini-2.0-flash",
				Timeout: "60s",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks struct tag constraints plus cross-field invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if math.Abs(c.Scoring.FundamentalWeight+c.Scoring.TechnicalWeight-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got fundamental %.2f + technical %.2f",
			c.Scoring.FundamentalWeight, c.Scoring.TechnicalWeight)
	}
	if c.Scoring.OverrideTechnicalAbove <= c.Scoring.OverrideFundamentalBelow {
		return fmt.Errorf("override_technical_above (%.0f) must exceed override_fundamental_below (%.0f)",
			c.Scoring.OverrideTechnicalAbove, c.Scoring.OverrideFundamentalBelow)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TALLY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TALLY_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TALLY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("TALLY_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if dir := os.Getenv("TALLY_IMPORT_DIR"); dir != "" {
		config.Storage.ImportDir = dir
	}

	if month := os.Getenv("TALLY_FISCAL_YEAR_START"); month != "" {
		if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
			config.Scoring.FiscalYearStartMonth = m
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment, the system KV store, or fallback
func ResolveAPIKey(ctx context.Context, store interfaces.SystemStore, name string, fallback string) (string, error) {
	// Environment variable mapping
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"GEMINI_API_KEY", "TALLY_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	// Check environment variables first (highest priority)
	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	// Try the system KV store (medium priority)
	if store != nil {
		apiKey, err := store.GetSystemKV(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback (lowest priority)
	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or store", name)
}
