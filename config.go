package ocrpdf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/ocrpdf/llm"
	"github.com/brunobiangulo/ocrpdf/ocr"
)

// Config holds all configuration for the OCR service.
type Config struct {
	// LLM is the vision model used for text extraction.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Prompt overrides the OCR instruction sent with every image.
	Prompt string `json:"prompt" yaml:"prompt"`

	// TempDir holds per-image temp copies. Empty means os.TempDir().
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	// MinOrphanAgeSeconds is how old an orphaned temp file must be before a
	// sweep removes it, so concurrent requests keep their in-flight files.
	MinOrphanAgeSeconds int `json:"min_orphan_age_seconds" yaml:"min_orphan_age_seconds"`

	// StopPolicy is "any" (stop the batch on the first failure) or
	// "critical" (stop only on a bad API key or rate limit).
	StopPolicy string `json:"stop_policy" yaml:"stop_policy"`

	// HTTP server
	Addr           string `json:"addr" yaml:"addr"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	APIKey         string `json:"api_key" yaml:"api_key"`           // bearer token; empty disables auth
	CORSOrigins    string `json:"cors_origins" yaml:"cors_origins"` // comma-separated; empty disables CORS
}

// LLMConfig configures the vision provider endpoint.
type LLMConfig struct {
	Provider       string `json:"provider" yaml:"provider"` // gemini, openai, openrouter, ollama, custom
	Model          string `json:"model" yaml:"model"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries" yaml:"max_retries"`
}

// DefaultConfig returns a Config that talks to Gemini with the key taken
// from the environment.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			TimeoutSeconds: int(llm.DefaultTimeout / time.Second),
			MaxRetries:     2,
		},
		MinOrphanAgeSeconds: 600,
		StopPolicy:          string(ocr.StopOnAnyError),
		Addr:                ":8080",
		MaxUploadBytes:      50 << 20,
	}
}

// LoadConfigFile decodes a config file over cfg. Files ending in .yaml or
// .yml are read as YAML; anything else as JSON.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from OCRPDF_* environment variables. The provider
// key falls back to GEMINI_API_KEY and then GOOGLE_API_KEY.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"OCRPDF_LLM_PROVIDER": &c.LLM.Provider,
		"OCRPDF_LLM_MODEL":    &c.LLM.Model,
		"OCRPDF_LLM_BASE_URL": &c.LLM.BaseURL,
		"OCRPDF_PROMPT":       &c.Prompt,
		"OCRPDF_TEMP_DIR":     &c.TempDir,
		"OCRPDF_STOP_POLICY":  &c.StopPolicy,
		"OCRPDF_ADDR":         &c.Addr,
		"OCRPDF_API_KEY":      &c.APIKey,
		"OCRPDF_CORS_ORIGINS": &c.CORSOrigins,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	for _, name := range []string{"OCRPDF_LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			c.LLM.APIKey = v
			break
		}
	}

	ints := map[string]*int{
		"OCRPDF_LLM_TIMEOUT":     &c.LLM.TimeoutSeconds,
		"OCRPDF_LLM_MAX_RETRIES": &c.LLM.MaxRetries,
		"OCRPDF_MIN_ORPHAN_AGE":  &c.MinOrphanAgeSeconds,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, name, v)
		}
		*dst = n
	}

	if v := os.Getenv("OCRPDF_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: OCRPDF_MAX_UPLOAD_BYTES=%q is not an integer", ErrInvalidConfig, v)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate checks the values New relies on.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("%w: llm provider not set", ErrInvalidConfig)
	}
	if !ocr.StopPolicy(c.StopPolicy).Valid() {
		return fmt.Errorf("%w: stop policy %q (want %q or %q)",
			ErrInvalidConfig, c.StopPolicy, ocr.StopOnAnyError, ocr.StopOnCritical)
	}
	if c.LLM.TimeoutSeconds < 0 || c.MinOrphanAgeSeconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max upload bytes must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) providerConfig() llm.Config {
	return llm.Config{
		Provider:   c.LLM.Provider,
		Model:      c.LLM.Model,
		BaseURL:    c.LLM.BaseURL,
		APIKey:     c.LLM.APIKey,
		Timeout:    time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		MaxRetries: c.LLM.MaxRetries,
	}
}
