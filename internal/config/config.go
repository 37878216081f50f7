package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/financegpt/internal/advisory"
	"github.com/dvloznov/financegpt/internal/analysis"
	"github.com/dvloznov/financegpt/internal/insight"
)

// Advisory backends.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendNone   = "none"
)

type Config struct {
	// Advisory runtime
	Model                string
	AdvisoryBackend      string
	AdvisoryBaseURL      string
	AdvisoryAPIKey       string
	AdvisoryTimeout      time.Duration
	AdvisoryRetryTimeout time.Duration
	AdvisoryTemperature  float64
	AdvisoryMaxTokens    int

	// Pattern detection
	OutlierK        float64
	OutlierMinCount int
	SkewThreshold   float64
	TrendThreshold  float64

	// Prompt composition
	TopCategories  int
	NotesSample    int
	MaxPromptBytes int

	// Ledger
	DateHorizonDays int

	// BigQuery ledger source
	BigQueryProject string
	BigQueryDataset string

	LogLevel string
}

// Load reads the configuration from the environment. The base URL defaults
// to the local Ollama endpoint for the openai backend and to the public
// endpoint (empty) for gemini.
func Load() *Config {
	backend := getEnv("ADVISORY_BACKEND", BackendOpenAI)
	defaultBaseURL := "http://localhost:11434/v1"
	if backend == BackendGemini {
		defaultBaseURL = ""
	}

	return &Config{
		Model:                getEnv("FINANCEGPT_MODEL", advisory.DefaultModel),
		AdvisoryBackend:      backend,
		AdvisoryBaseURL:      getEnv("ADVISORY_BASE_URL", defaultBaseURL),
		AdvisoryAPIKey:       getEnv("ADVISORY_API_KEY", ""),
		AdvisoryTimeout:      getEnvDuration("ADVISORY_TIMEOUT", advisory.DefaultTimeout),
		AdvisoryRetryTimeout: getEnvDuration("ADVISORY_RETRY_TIMEOUT", advisory.DefaultRetryTimeout),
		AdvisoryTemperature:  getEnvFloat("ADVISORY_TEMPERATURE", advisory.DefaultTemperature),
		AdvisoryMaxTokens:    getEnvInt("ADVISORY_MAX_TOKENS", advisory.DefaultMaxTokens),

		OutlierK:        getEnvFloat("OUTLIER_K", analysis.DefaultOutlierK),
		OutlierMinCount: getEnvInt("OUTLIER_MIN_COUNT", analysis.DefaultMinOutlierCount),
		SkewThreshold:   getEnvFloat("SKEW_THRESHOLD", analysis.DefaultSkewThreshold),
		TrendThreshold:  getEnvFloat("TREND_THRESHOLD", analysis.DefaultTrendThreshold),

		TopCategories:  getEnvInt("TOP_CATEGORIES", insight.DefaultTopCategories),
		NotesSample:    getEnvInt("NOTES_SAMPLE", insight.DefaultNotesSample),
		MaxPromptBytes: getEnvInt("MAX_PROMPT_BYTES", insight.DefaultMaxPromptBytes),

		DateHorizonDays: getEnvInt("DATE_HORIZON_DAYS", 0),

		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "finance"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.Model) == "" {
		errors = append(errors, "model name cannot be empty")
	}

	switch c.AdvisoryBackend {
	case BackendOpenAI:
		if u, err := url.Parse(c.AdvisoryBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid advisory base URL '%s': %v", c.AdvisoryBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid advisory base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	case BackendGemini:
		if c.AdvisoryAPIKey == "" {
			errors = append(errors, "ADVISORY_API_KEY is required for the gemini backend")
		}
	case BackendNone:
	default:
		errors = append(errors, fmt.Sprintf("invalid advisory backend '%s': must be one of %v",
			c.AdvisoryBackend, []string{BackendOpenAI, BackendGemini, BackendNone}))
	}

	if c.AdvisoryTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid advisory timeout %v: must be at least 1 second", c.AdvisoryTimeout))
	}
	if c.AdvisoryRetryTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid advisory retry timeout %v: must be at least 1 second", c.AdvisoryRetryTimeout))
	}
	if c.AdvisoryTemperature < 0 || c.AdvisoryTemperature > 2 {
		errors = append(errors, fmt.Sprintf("invalid temperature %v: must be between 0 and 2", c.AdvisoryTemperature))
	}
	if c.AdvisoryMaxTokens < 1 {
		errors = append(errors, fmt.Sprintf("invalid max tokens %d: must be at least 1", c.AdvisoryMaxTokens))
	}

	if c.OutlierK <= 0 {
		errors = append(errors, fmt.Sprintf("invalid outlier k %v: must be positive", c.OutlierK))
	}
	if c.OutlierMinCount < 2 {
		errors = append(errors, fmt.Sprintf("invalid outlier minimum count %d: must be at least 2", c.OutlierMinCount))
	}
	if c.SkewThreshold <= 0 || c.SkewThreshold >= 1 {
		errors = append(errors, fmt.Sprintf("invalid skew threshold %v: must be between 0 and 1", c.SkewThreshold))
	}
	if c.TrendThreshold <= 0 || c.TrendThreshold >= 1 {
		errors = append(errors, fmt.Sprintf("invalid trend threshold %v: must be between 0 and 1", c.TrendThreshold))
	}

	if c.TopCategories < 1 {
		errors = append(errors, fmt.Sprintf("invalid top categories %d: must be at least 1", c.TopCategories))
	}
	if c.NotesSample < 0 {
		errors = append(errors, fmt.Sprintf("invalid notes sample %d: must not be negative", c.NotesSample))
	}
	if c.MaxPromptBytes < 512 {
		errors = append(errors, fmt.Sprintf("invalid max prompt bytes %d: must be at least 512", c.MaxPromptBytes))
	}
	if c.DateHorizonDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid date horizon %d: must not be negative", c.DateHorizonDays))
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Detector returns the pattern detection settings.
func (c *Config) Detector() analysis.DetectorConfig {
	return analysis.DetectorConfig{
		SkewThreshold:   c.SkewThreshold,
		TrendThreshold:  c.TrendThreshold,
		OutlierK:        c.OutlierK,
		MinOutlierCount: c.OutlierMinCount,
	}
}

// Composer returns the prompt composition settings. A zero notes sample
// disables notes.
func (c *Config) Composer() insight.Config {
	cfg := insight.Config{
		TopCategories:  c.TopCategories,
		NotesSample:    c.NotesSample,
		MaxPromptBytes: c.MaxPromptBytes,
	}
	if c.NotesSample == 0 {
		cfg.NotesSample = insight.NoNotes
	}
	return cfg
}

// Advisory returns the advisory client settings.
func (c *Config) Advisory() advisory.Config {
	return advisory.Config{
		Model:        c.Model,
		Timeout:      c.AdvisoryTimeout,
		RetryTimeout: c.AdvisoryRetryTimeout,
		Temperature:  c.AdvisoryTemperature,
		MaxTokens:    c.AdvisoryMaxTokens,
	}
}

// LoadEnvFiles loads .env style files into the process environment without
// overriding variables that are already set. With no paths it reads ./.env
// if present.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("LoadEnvFiles: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
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
