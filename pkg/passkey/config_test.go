package passkey

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:    "missing base URL",
			config:  &Config{},
			wantErr: true,
		},
		{
			name:    "relative base URL",
			config:  &Config{BaseURL: "/api"},
			wantErr: true,
		},
		{
			name:    "unsupported scheme",
			config:  &Config{BaseURL: "ftp://rp.example.com"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			config:  &Config{BaseURL: "https://rp.example.com/api", Timeout: -time.Second},
			wantErr: true,
		},
		{
			name:   "valid https",
			config: &Config{BaseURL: "https://rp.example.com/api"},
		},
		{
			name:   "valid http with timeout",
			config: &Config{BaseURL: "http://localhost:8080/api", Timeout: 5 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"someone@example.com", "a@b.co", "user+tag@sub.example.org"}
	for _, email := range valid {
		if !ValidEmail(email) {
			t.Errorf("ValidEmail(%q) = false, want true", email)
		}
	}

	invalid := []string{"", "plain", "a@b", "two@@example.com", "white space@example.com", "@example.com", "user@"}
	for _, email := range invalid {
		if ValidEmail(email) {
			t.Errorf("ValidEmail(%q) = true, want false", email)
		}
	}
}
