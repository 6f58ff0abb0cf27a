// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (RAGPILOT_* runtime override)
//  2. Config file (~/.ragpilot/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBackendURL indicates the backend base URL is missing or malformed.
	ErrInvalidBackendURL = errors.New("invalid backend URL")

	// ErrInvalidUserID indicates the user identifier is empty or malformed.
	ErrInvalidUserID = errors.New("invalid user ID")

	// ErrInvalidTimeout indicates the HTTP timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid HTTP timeout")

	// ErrInvalidHistoryLimit indicates the history limit is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")

	// ErrInvalidTypingInterval indicates the typing interval is out of range.
	ErrInvalidTypingInterval = errors.New("invalid typing interval")
)

const (
	// DefaultUserID stands in for authentication in single-user deployments.
	// Every session and store call still takes the user ID as an explicit
	// parameter so a real identity source can replace this later.
	DefaultUserID = "default_user"

	// DefaultHistoryLimit is the default number of messages fetched per conversation.
	DefaultHistoryLimit = 100

	// MaxHistoryLimit is the absolute maximum to prevent OOM.
	MaxHistoryLimit = 10000

	// MinHistoryLimit is the minimum allowed history limit.
	MinHistoryLimit = 10

	// MaxUserIDLength bounds the user identifier.
	MaxUserIDLength = 128

	// MinTypingInterval and MaxTypingInterval bound the reply reveal cadence.
	MinTypingInterval = time.Millisecond
	MaxTypingInterval = time.Second

	// MinHTTPTimeout and MaxHTTPTimeout bound the backend request timeout.
	MinHTTPTimeout = time.Second
	MaxHTTPTimeout = 10 * time.Minute
)

// Config stores application configuration.
type Config struct {
	// Backend connection
	BackendURL  string        `mapstructure:"backend_url" json:"backend_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" json:"http_timeout"`

	// Tenant scoping
	UserID string `mapstructure:"user_id" json:"user_id"`

	// Conversation history
	HistoryLimit int `mapstructure:"history_limit" json:"history_limit"`

	// Turn defaults
	WebSearchEnabled bool `mapstructure:"web_search_enabled" json:"web_search_enabled"`

	// Presentation
	TypingInterval time.Duration `mapstructure:"typing_interval" json:"typing_interval"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)

	v.SetEnvPrefix("RAGPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// Dir returns the configuration directory (~/.ragpilot), creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragpilot")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return configDir, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("http_timeout", 2*time.Minute)
	v.SetDefault("user_id", DefaultUserID)
	v.SetDefault("history_limit", DefaultHistoryLimit)
	v.SetDefault("web_search_enabled", false)
	v.SetDefault("typing_interval", 20*time.Millisecond)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks all configuration values and fails fast on the first problem.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBackendURL, c.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBackendURL, u.Scheme)
	}

	if err := ValidateUserID(c.UserID); err != nil {
		return err
	}

	if c.HTTPTimeout < MinHTTPTimeout || c.HTTPTimeout > MaxHTTPTimeout {
		return fmt.Errorf("%w: %s (allowed %s..%s)",
			ErrInvalidTimeout, c.HTTPTimeout, MinHTTPTimeout, MaxHTTPTimeout)
	}

	if c.HistoryLimit < MinHistoryLimit || c.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("%w: %d (allowed %d..%d)",
			ErrInvalidHistoryLimit, c.HistoryLimit, MinHistoryLimit, MaxHistoryLimit)
	}

	if c.TypingInterval < MinTypingInterval || c.TypingInterval > MaxTypingInterval {
		return fmt.Errorf("%w: %s (allowed %s..%s)",
			ErrInvalidTypingInterval, c.TypingInterval, MinTypingInterval, MaxTypingInterval)
	}

	return nil
}

// ValidateUserID checks that a user identifier is usable as a tenant key.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, MaxUserIDLength)
	}
	return nil
}
