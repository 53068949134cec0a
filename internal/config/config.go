// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional, tracing disabled if not set)

	// Detection thresholds
	FaceAbsenceThreshold time.Duration // continuous face absence before a violation
	SilenceThreshold     time.Duration // continuous silence before a violation

	// Per-kind debounce windows (minimum gap between logged violations of a kind)
	FaceMissingDebounce     time.Duration
	MultipleFacesDebounce   time.Duration
	SilenceDebounce         time.Duration
	TabSwitchDebounce       time.Duration
	FaceOrientationDebounce time.Duration

	// Scoring
	PenaltyMultipleFaces   float64
	PenaltyTabSwitch       float64
	PenaltyFaceMissing     float64
	PenaltySilence         float64
	PenaltyFaceOrientation float64
	GreenFloor             float64 // score > GreenFloor → green
	YellowFloor            float64 // score > YellowFloor → yellow, else red

	// Session lifecycle
	MaxIdle time.Duration // auto-close sessions with no observation for this long

	// Persistence retry
	AppendRetries    int
	AppendRetryDelay time.Duration

	// Security
	AllowedOrigins []string
	RateLimitRPM   int
}

// Defaults
const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultFaceAbsenceThreshold = 5 * time.Second
	DefaultSilenceThreshold     = 10 * time.Second

	DefaultFaceMissingDebounce     = 2 * time.Second
	DefaultMultipleFacesDebounce   = 2 * time.Second
	DefaultSilenceDebounce         = 5 * time.Second
	DefaultTabSwitchDebounce       = 1500 * time.Millisecond
	DefaultFaceOrientationDebounce = 2 * time.Second

	DefaultGreenFloor  = 85.0
	DefaultYellowFloor = 50.0

	DefaultMaxIdle          = 10 * time.Minute
	DefaultAppendRetries    = 3
	DefaultAppendRetryDelay = 50 * time.Millisecond
	DefaultRateLimit        = 300
)

// Default penalty weights per violation kind.
const (
	DefaultPenaltyMultipleFaces   = 10.0
	DefaultPenaltyTabSwitch       = 8.0
	DefaultPenaltyFaceMissing     = 5.0
	DefaultPenaltySilence         = 5.0
	DefaultPenaltyFaceOrientation = 2.0
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", DefaultPort),
		Env:         getEnv("ENV", DefaultEnv),
		LogLevel:    getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:   getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL: os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		FaceAbsenceThreshold: getEnvDuration("FACE_ABSENCE_THRESHOLD", DefaultFaceAbsenceThreshold),
		SilenceThreshold:     getEnvDuration("SILENCE_THRESHOLD", DefaultSilenceThreshold),

		FaceMissingDebounce:     getEnvDuration("FACE_MISSING_DEBOUNCE", DefaultFaceMissingDebounce),
		MultipleFacesDebounce:   getEnvDuration("MULTIPLE_FACES_DEBOUNCE", DefaultMultipleFacesDebounce),
		SilenceDebounce:         getEnvDuration("SILENCE_DEBOUNCE", DefaultSilenceDebounce),
		TabSwitchDebounce:       getEnvDuration("TAB_SWITCH_DEBOUNCE", DefaultTabSwitchDebounce),
		FaceOrientationDebounce: getEnvDuration("FACE_ORIENTATION_DEBOUNCE", DefaultFaceOrientationDebounce),

		PenaltyMultipleFaces:   getEnvFloat("PENALTY_MULTIPLE_FACES", DefaultPenaltyMultipleFaces),
		PenaltyTabSwitch:       getEnvFloat("PENALTY_TAB_SWITCH", DefaultPenaltyTabSwitch),
		PenaltyFaceMissing:     getEnvFloat("PENALTY_FACE_MISSING", DefaultPenaltyFaceMissing),
		PenaltySilence:         getEnvFloat("PENALTY_SILENCE", DefaultPenaltySilence),
		PenaltyFaceOrientation: getEnvFloat("PENALTY_FACE_ORIENTATION", DefaultPenaltyFaceOrientation),
		GreenFloor:             getEnvFloat("GREEN_FLOOR", DefaultGreenFloor),
		YellowFloor:            getEnvFloat("YELLOW_FLOOR", DefaultYellowFloor),

		MaxIdle:          getEnvDuration("MAX_IDLE", DefaultMaxIdle),
		AppendRetries:    int(getEnvInt64("APPEND_RETRIES", DefaultAppendRetries)),
		AppendRetryDelay: getEnvDuration("APPEND_RETRY_DELAY", DefaultAppendRetryDelay),

		AllowedOrigins: []string{getEnv("ALLOWED_ORIGINS", "*")},
		RateLimitRPM:   int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.FaceAbsenceThreshold <= 0 {
		return fmt.Errorf("FACE_ABSENCE_THRESHOLD must be positive")
	}
	if c.SilenceThreshold <= 0 {
		return fmt.Errorf("SILENCE_THRESHOLD must be positive")
	}
	if c.GreenFloor <= c.YellowFloor {
		return fmt.Errorf("GREEN_FLOOR (%v) must be greater than YELLOW_FLOOR (%v)", c.GreenFloor, c.YellowFloor)
	}
	if c.YellowFloor < 0 || c.GreenFloor > 100 {
		return fmt.Errorf("risk tier boundaries must lie within [0, 100]")
	}
	if c.AppendRetries < 1 {
		return fmt.Errorf("APPEND_RETRIES must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
