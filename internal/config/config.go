package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSourceURL is the NYC DOT weekly traffic advisory page.
const DefaultSourceURL = "https://www.nyc.gov/html/dot/html/motorist/weektraf.shtml"

// Config holds all configuration for the advisory parser, loaded once at
// startup and handed to each component explicitly.
type Config struct {
	ProjectID string          `mapstructure:"project_id"`
	Region    string          `mapstructure:"region"`
	Source    SourceConfig    `mapstructure:"source"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Log       LogConfig       `mapstructure:"log"`
}

// SourceConfig configures the upstream page fetch.
type SourceConfig struct {
	URL       string        `mapstructure:"url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// GeminiConfig configures the extraction model on Vertex AI.
type GeminiConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Location string `mapstructure:"location"`
}

// GeocodingConfig configures the address-resolution service. An empty APIKey
// disables enrichment.
type GeocodingConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Pause   time.Duration `mapstructure:"pause"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig names the bucket documents are persisted to.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// FirestoreConfig names the run-ledger collection. Empty disables the ledger.
type FirestoreConfig struct {
	Collection string `mapstructure:"collection"`
}

// WorkflowConfig names the workflow started after each persisted run. Empty
// ID disables the hand-off.
type WorkflowConfig struct {
	ID       string `mapstructure:"id"`
	Location string `mapstructure:"location"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps configuration keys to the environment variables the
// deployed functions are configured with.
var envBindings = map[string]string{
	"project_id":           "PROJECT_ID",
	"region":               "ADVISORY_REGION",
	"source.url":           "ADVISORY_SOURCE_URL",
	"source.user_agent":    "ADVISORY_USER_AGENT",
	"source.timeout":       "ADVISORY_FETCH_TIMEOUT",
	"gemini.api_key":       "GEMINI_API_KEY",
	"gemini.model":         "GEMINI_MODEL",
	"gemini.location":      "VERTEX_AI_REGION",
	"geocoding.api_key":    "GEOCODING_API_KEY",
	"geocoding.base_url":   "GEOCODING_BASE_URL",
	"geocoding.pause":      "GEOCODING_PAUSE",
	"geocoding.timeout":    "GEOCODING_TIMEOUT",
	"storage.bucket":       "ADVISORY_BUCKET",
	"firestore.collection": "FIRESTORE_COLLECTION",
	"workflow.id":          "WORKFLOW_ID",
	"workflow.location":    "WORKFLOW_LOCATION",
	"log.level":            "LOG_LEVEL",
	"log.format":           "LOG_FORMAT",
}

// Load reads configuration from an optional config.yaml and the environment,
// applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	v.SetDefault("region", "manhattan")
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.user_agent", "Mozilla/5.0 (compatible; NYC Traffic Parser)")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.location", "us-central1")
	v.SetDefault("geocoding.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocoding.pause", "100ms")
	v.SetDefault("geocoding.timeout", "10s")
	v.SetDefault("workflow.location", "us-central1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.Region = strings.ToLower(strings.TrimSpace(cfg.Region))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Region == "" {
		return errors.New("ADVISORY_REGION must not be empty")
	}
	if c.Source.URL == "" {
		return errors.New("ADVISORY_SOURCE_URL must not be empty")
	}
	if c.Source.Timeout <= 0 {
		return errors.New("ADVISORY_FETCH_TIMEOUT must be positive")
	}
	if c.Geocoding.Pause < 0 {
		return errors.New("GEOCODING_PAUSE must not be negative")
	}
	if c.Geocoding.Timeout <= 0 {
		return errors.New("GEOCODING_TIMEOUT must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a LOG_LEVEL value into a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
