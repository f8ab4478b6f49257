package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Strava  StravaConfig
	Sync    SyncConfig
	Athlete AthleteConfig
	// DatabasePath is the path to the sqlite database file
	DatabasePath string
	// LogLevel is the logrus level name ("debug", "info", ...)
	LogLevel string
}

// StravaConfig holds Strava API credentials and client tuning
type StravaConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Rate limits enforced pre-emptively by the client
	RateLimit15Min int
	RateLimitDaily int

	// Refresh tokens this many seconds before they actually expire
	TokenRefreshBufferSeconds int

	// Maximum retry attempts for rate-limited and transient failures
	MaxRetries int
}

// SyncConfig holds sync behavior settings
type SyncConfig struct {
	// StreamLookbackDays bounds how far back detailed streams are fetched
	StreamLookbackDays int
	// StreamBatchSize caps stream fetches per sync run
	StreamBatchSize int
}

// AthleteConfig holds athlete-specific performance thresholds.
// These override values synced from the Strava profile when set.
type AthleteConfig struct {
	FTP         int
	MaxHR       float64
	RestingHR   float64
	ThresholdHR float64
}

// ErrMissingCredentials is returned when Strava API credentials are not configured
var ErrMissingCredentials = errors.New("strava credentials not configured")

// Load reads configuration from a .env file (if present) and the environment.
// It looks for .env in the config directory first, then the working directory.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Strava: StravaConfig{
			ClientID:                  os.Getenv("STRAVA_CLIENT_ID"),
			ClientSecret:              os.Getenv("STRAVA_CLIENT_SECRET"),
			RedirectURL:               getEnvString("STRAVA_REDIRECT_URI", "http://localhost:8089/callback"),
			RateLimit15Min:            getEnvInt("RATE_LIMIT_15MIN", 100),
			RateLimitDaily:            getEnvInt("RATE_LIMIT_DAILY", 1000),
			TokenRefreshBufferSeconds: getEnvInt("TOKEN_REFRESH_BUFFER_SECONDS", 300),
			MaxRetries:                getEnvInt("MAX_RETRIES", 3),
		},
		Sync: SyncConfig{
			StreamLookbackDays: getEnvInt("SYNC_STREAM_DATA_DAYS", 90),
			StreamBatchSize:    getEnvInt("SYNC_BATCH_SIZE", 50),
		},
		Athlete: AthleteConfig{
			FTP:         getEnvInt("ATHLETE_FTP", 0),
			MaxHR:       getEnvFloat("ATHLETE_MAX_HR", 0),
			RestingHR:   getEnvFloat("ATHLETE_RESTING_HR", 0),
			ThresholdHR: getEnvFloat("ATHLETE_THRESHOLD_HR", 0),
		},
		DatabasePath: getEnvString("DATABASE_PATH", filepath.Join(dir, "stravaload.db")),
		LogLevel:     getEnvString("LOG_LEVEL", "info"),
	}

	// Threshold HR defaults to 95% of max HR, the standard LTHR approximation
	if cfg.Athlete.ThresholdHR == 0 && cfg.Athlete.MaxHR > 0 {
		cfg.Athlete.ThresholdHR = cfg.Athlete.MaxHR * 0.95
	}

	return cfg, nil
}

// Validate checks if the config has required fields and consistent values
func (c *Config) Validate() error {
	if c.Strava.ClientID == "" || c.Strava.ClientSecret == "" {
		return ErrMissingCredentials
	}
	if c.Athlete.ThresholdHR > 0 && c.Athlete.MaxHR > 0 && c.Athlete.ThresholdHR >= c.Athlete.MaxHR {
		return fmt.Errorf("ATHLETE_THRESHOLD_HR (%v) must be less than ATHLETE_MAX_HR (%v)", c.Athlete.ThresholdHR, c.Athlete.MaxHR)
	}
	if c.Strava.RateLimit15Min <= 0 || c.Strava.RateLimitDaily <= 0 {
		return errors.New("rate limits must be positive")
	}
	if c.Sync.StreamLookbackDays <= 0 || c.Sync.StreamBatchSize <= 0 {
		return errors.New("sync window settings must be positive")
	}
	return nil
}

// Dir returns the path to the config directory
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".stravaload"), nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
