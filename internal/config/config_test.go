package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a config that passes Validate, for mutation in tests.
func validConfig() *Config {
	return &Config{
		BackendURL:     "http://localhost:8000",
		HTTPTimeout:    2 * time.Minute,
		UserID:         DefaultUserID,
		HistoryLimit:   DefaultHistoryLimit,
		TypingInterval: 20 * time.Millisecond,
		LogLevel:       "info",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidate_BackendURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"http", "http://localhost:8000", true},
		{"https", "https://api.example.com", true},
		{"empty", "", false},
		{"no scheme", "localhost:8000", false},
		{"bad scheme", "ftp://example.com", false},
		{"garbage", "://", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.BackendURL = tt.url
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidBackendURL) {
				t.Errorf("Validate() = %v, want ErrInvalidBackendURL", err)
			}
		})
	}
}

func TestValidate_UserID(t *testing.T) {
	cfg := validConfig()
	cfg.UserID = "   "
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("Validate() = %v, want ErrInvalidUserID", err)
	}

	cfg = validConfig()
	cfg.UserID = string(make([]byte, MaxUserIDLength+1))
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("Validate() = %v, want ErrInvalidUserID for oversized ID", err)
	}
}

func TestValidate_Timeout(t *testing.T) {
	cfg := validConfig()
	cfg.HTTPTimeout = 100 * time.Millisecond
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("Validate() = %v, want ErrInvalidTimeout", err)
	}
}

func TestValidate_HistoryLimit(t *testing.T) {
	cfg := validConfig()
	cfg.HistoryLimit = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidHistoryLimit) {
		t.Errorf("Validate() = %v, want ErrInvalidHistoryLimit", err)
	}

	cfg = validConfig()
	cfg.HistoryLimit = MaxHistoryLimit + 1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidHistoryLimit) {
		t.Errorf("Validate() = %v, want ErrInvalidHistoryLimit above max", err)
	}
}

func TestValidate_TypingInterval(t *testing.T) {
	cfg := validConfig()
	cfg.TypingInterval = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTypingInterval) {
		t.Errorf("Validate() = %v, want ErrInvalidTypingInterval", err)
	}
}

func TestValidateUserID(t *testing.T) {
	if err := ValidateUserID("alice"); err != nil {
		t.Errorf("ValidateUserID(alice) = %v, want nil", err)
	}
	if err := ValidateUserID(""); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("ValidateUserID(\"\") = %v, want ErrInvalidUserID", err)
	}
}
