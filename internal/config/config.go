package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the Handreel server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Pipeline PipelineConfig
	Dispatch DispatchConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Gemini           GeminiConfig
}

type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// PipelineConfig tunes segment planning, dedup thresholds, and recovery.
type PipelineConfig struct {
	SegmentLength      time.Duration // auto-planned segment length
	SegmentOverlap     time.Duration // overlap between adjacent segments
	CrossSegmentMerge  int           // seconds; phase-1 accumulator dedup threshold
	DuplicateTolerance int           // seconds; phase-2 and finalizer dedup threshold
	MaxAttempts        int           // inference attempts per task
	StallTimeout       time.Duration // zero-progress timeout before force-fail
	DispatchStagger    time.Duration // per-segment schedule delay step
}

// DispatchConfig configures the task queue worker and the internal
// HTTP surface it delivers to.
type DispatchConfig struct {
	BaseURL       string // base URL of this service's internal endpoints
	InternalToken string
	PollInterval  time.Duration
	MaxAttempts   int // delivery attempts before a task is dropped
}

var validProviders = map[string]bool{
	"gemini": true,
	"mock":   true,
}

// Load reads configuration from the environment (after loading .env if
// present) and returns a validated Config. Returns an error with a
// descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("HANDREEL_PORT", 8080),
			Env:  envString("HANDREEL_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "gemini"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 300*time.Second),
			Gemini: GeminiConfig{
				BaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-2.0-flash"),
			},
		},
		Pipeline: PipelineConfig{
			SegmentLength:      envDuration("SEGMENT_LENGTH", 30*time.Minute),
			SegmentOverlap:     envDuration("SEGMENT_OVERLAP", 5*time.Minute),
			CrossSegmentMerge:  envInt("CROSS_SEGMENT_MERGE_SECS", 30),
			DuplicateTolerance: envInt("DUPLICATE_TOLERANCE_SECS", 5),
			MaxAttempts:        envInt("INFERENCE_MAX_ATTEMPTS", 3),
			StallTimeout:       envDuration("STALL_TIMEOUT", 30*time.Minute),
			DispatchStagger:    envDuration("DISPATCH_STAGGER", 2*time.Second),
		},
		Dispatch: DispatchConfig{
			BaseURL:       os.Getenv("DISPATCH_BASE_URL"),
			InternalToken: os.Getenv("DISPATCH_INTERNAL_TOKEN"),
			PollInterval:  envDuration("DISPATCH_POLL_INTERVAL", time.Second),
			MaxAttempts:   envInt("DISPATCH_MAX_ATTEMPTS", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of gemini, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}

	if c.Dispatch.BaseURL == "" {
		return fmt.Errorf("DISPATCH_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Dispatch.BaseURL, "http://") && !strings.HasPrefix(c.Dispatch.BaseURL, "https://") {
		return fmt.Errorf("DISPATCH_BASE_URL must start with http:// or https://, got %q", c.Dispatch.BaseURL)
	}
	if c.Dispatch.InternalToken == "" {
		return fmt.Errorf("DISPATCH_INTERNAL_TOKEN is required")
	}

	if c.Pipeline.SegmentOverlap >= c.Pipeline.SegmentLength {
		return fmt.Errorf("SEGMENT_OVERLAP (%s) must be shorter than SEGMENT_LENGTH (%s)",
			c.Pipeline.SegmentOverlap, c.Pipeline.SegmentLength)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
