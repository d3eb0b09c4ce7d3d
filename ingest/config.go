package ingest

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full ingestion configuration. Loaded once at startup
// and immutable for the run.
type Config struct {
	OutputDir        string      `yaml:"output_dir"`
	Concurrency      int         `yaml:"concurrency"`
	SkipExisting     bool        `yaml:"skip_existing"`
	GenerateMetadata bool        `yaml:"generate_metadata"`
	MaxFileSize      int64       `yaml:"max_file_size"`
	Image            ImageConfig `yaml:"image"`
	Web              WebConfig   `yaml:"web"`
	Audio            AudioConfig `yaml:"audio"`
	Git              GitConfig   `yaml:"git"`
	LedgerPath       string      `yaml:"ledger_path"` // empty disables the ledger

	Logger *slog.Logger `yaml:"-" json:"-"`
}

// ImageConfig controls embedded image normalisation.
type ImageConfig struct {
	// TargetFormat is the canonical output encoding: png, jpeg, or keep
	// to pass originals through unconverted. Default: png.
	TargetFormat string `yaml:"target_format"`
}

// WebConfig controls the web extractor.
type WebConfig struct {
	// Strategy selects page retrieval: "http" (plain GET) or "browser"
	// (headless Chrome rendering for JS-heavy pages). Default: http.
	Strategy       string `yaml:"strategy"`
	MaxDepth       int    `yaml:"max_depth"`
	MaxPages       int    `yaml:"max_pages"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

// AudioConfig controls the audio extractor. Transcription is delegated to
// an external command; the core never embeds a transcription engine.
type AudioConfig struct {
	// Transcriber is the external command invoked as
	// `<transcriber> <audio-file>`, expected to print a transcript to
	// stdout. Empty leaves the audio extractor unable to transcribe.
	Transcriber string `yaml:"transcriber"`
	Model       string `yaml:"model"`
}

// GitConfig controls the git repository extractor.
type GitConfig struct {
	MaxFiles     int   `yaml:"max_files"`
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:   "./output",
		Concurrency: 5,
		MaxFileSize: 100 * 1024 * 1024,
		Image:       ImageConfig{TargetFormat: "png"},
		Web: WebConfig{
			Strategy:       "http",
			MaxDepth:       2,
			MaxPages:       50,
			TimeoutSeconds: 30,
		},
		Git: GitConfig{
			MaxFiles:     50,
			MaxFileBytes: 100_000,
		},
	}
}

// LoadConfig reads and parses a YAML config file, merged over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, cfg.Validate()
}

func (c *Config) defaults() {
	if c.OutputDir == "" {
		c.OutputDir = "./output"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Image.TargetFormat == "" {
		c.Image.TargetFormat = "png"
	}
	if c.Web.Strategy == "" {
		c.Web.Strategy = "http"
	}
	if c.Web.MaxDepth <= 0 {
		c.Web.MaxDepth = 2
	}
	if c.Web.MaxPages <= 0 {
		c.Web.MaxPages = 50
	}
	if c.Web.TimeoutSeconds <= 0 {
		c.Web.TimeoutSeconds = 30
	}
	if c.Git.MaxFiles <= 0 {
		c.Git.MaxFiles = 50
	}
	if c.Git.MaxFileBytes <= 0 {
		c.Git.MaxFileBytes = 100_000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks field values once at load time.
func (c *Config) Validate() error {
	switch c.Image.TargetFormat {
	case "png", "jpeg", "keep":
	default:
		return fmt.Errorf("image.target_format must be png, jpeg, or keep (got %q)", c.Image.TargetFormat)
	}
	switch c.Web.Strategy {
	case "http", "browser":
	default:
		return fmt.Errorf("web.strategy must be http or browser (got %q)", c.Web.Strategy)
	}
	return nil
}
