package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Strava: StravaConfig{
				ClientID:       "12345",
				ClientSecret:   "abc123secret",
				RateLimit15Min: 100,
				RateLimitDaily: 1000,
			},
			Sync: SyncConfig{
				StreamLookbackDays: 90,
				StreamBatchSize:    50,
			},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errContains string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "missing client ID",
			mutate:      func(c *Config) { c.Strava.ClientID = "" },
			expectError: true,
			errContains: "credentials",
		},
		{
			name:        "missing client secret",
			mutate:      func(c *Config) { c.Strava.ClientSecret = "" },
			expectError: true,
			errContains: "credentials",
		},
		{
			name: "threshold HR above max HR",
			mutate: func(c *Config) {
				c.Athlete.MaxHR = 180
				c.Athlete.ThresholdHR = 190
			},
			expectError: true,
			errContains: "ATHLETE_THRESHOLD_HR",
		},
		{
			name:        "zero rate limit",
			mutate:      func(c *Config) { c.Strava.RateLimit15Min = 0 },
			expectError: true,
			errContains: "rate limits",
		},
		{
			name:        "zero stream batch",
			mutate:      func(c *Config) { c.Sync.StreamBatchSize = 0 },
			expectError: true,
			errContains: "sync window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err, tt.errContains)
				}
			} else if err != nil {
				t.Errorf("expected nil error, got %q", err)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "12345")
	t.Setenv("STRAVA_CLIENT_SECRET", "secret")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Strava.RateLimit15Min != 100 {
		t.Errorf("RateLimit15Min = %d, want 100", cfg.Strava.RateLimit15Min)
	}
	if cfg.Strava.RateLimitDaily != 1000 {
		t.Errorf("RateLimitDaily = %d, want 1000", cfg.Strava.RateLimitDaily)
	}
	if cfg.Strava.TokenRefreshBufferSeconds != 300 {
		t.Errorf("TokenRefreshBufferSeconds = %d, want 300", cfg.Strava.TokenRefreshBufferSeconds)
	}
	if cfg.Sync.StreamLookbackDays != 90 {
		t.Errorf("StreamLookbackDays = %d, want 90", cfg.Sync.StreamLookbackDays)
	}
	if cfg.Sync.StreamBatchSize != 50 {
		t.Errorf("StreamBatchSize = %d, want 50", cfg.Sync.StreamBatchSize)
	}
}

func TestLoadThresholdHRDefault(t *testing.T) {
	t.Setenv("STRAVA_CLIENT_ID", "12345")
	t.Setenv("STRAVA_CLIENT_SECRET", "secret")
	t.Setenv("ATHLETE_MAX_HR", "180")
	t.Setenv("ATHLETE_THRESHOLD_HR", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := 180 * 0.95
	if cfg.Athlete.ThresholdHR != want {
		t.Errorf("ThresholdHR = %v, want %v", cfg.Athlete.ThresholdHR, want)
	}
}
