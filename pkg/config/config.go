// Package config implements the server's YAML configuration file format:
// the declared model catalog plus process-wide settings.
package config

import (
	"fmt"
	"os"

	"github.com/hearthai/hearth/pkg/herrors"
	"github.com/hearthai/hearth/pkg/modelspec"
	"gopkg.in/yaml.v3"
)

// Default values applied by applyDefaults when a field is left unset.
const (
	DefaultConcurrency         = 1
	DefaultDownloadConcurrency = 1
	DefaultListen              = ":8080"
)

// LogConfig configures the process-wide logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// TracingConfig configures OpenTelemetry span export. Tracing is disabled
// (noop tracer) unless OTLPEndpoint is set.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
}

// Config is the top-level YAML configuration document.
type Config struct {
	Models []modelspec.ModelSpec `yaml:"models"`

	// Concurrency is the global cap on in-flight tasks across all models.
	Concurrency int `yaml:"concurrency,omitempty"`

	// ModelsPath is the directory model artifacts are stored under.
	// Defaults to the user cache dir's "hearth/models" subdirectory.
	ModelsPath string `yaml:"modelsPath,omitempty"`

	// DownloadConcurrency caps how many model artifacts may download at once.
	DownloadConcurrency int `yaml:"downloadConcurrency,omitempty"`

	// Listen is the HTTP listen address for pkg/httpapi.
	Listen string `yaml:"listen,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`

	Tracing TracingConfig `yaml:"tracing,omitempty"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML-encoded config data, applying defaults and validating
// every declared model.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.DownloadConcurrency == 0 {
		c.DownloadConcurrency = DefaultDownloadConcurrency
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ModelsPath == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.ModelsPath = dir + "/hearth/models"
		}
	}
	for i := range c.Models {
		c.Models[i] = c.Models[i].WithDefaults()
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if err := m.Validate(); err != nil {
			return err
		}
		if seen[m.ID] {
			return herrors.NewValidationError("models", fmt.Sprintf("duplicate model id %q", m.ID), herrors.ErrDuplicateModel)
		}
		seen[m.ID] = true
	}
	if c.Concurrency < 1 {
		return herrors.NewValidationError("concurrency", "must be >= 1", nil)
	}
	if c.DownloadConcurrency < 1 {
		return herrors.NewValidationError("downloadConcurrency", "must be >= 1", nil)
	}
	return nil
}

// MergeCompletionDefaults merges a model's CompletionDefaults onto a
// per-request options map: a key already present in overrides always wins,
// defaults only fill gaps. Mirrors the teacher's DefaultSettingsMiddleware
// merge rule.
func MergeCompletionDefaults(defaults, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
