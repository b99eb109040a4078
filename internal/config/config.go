// Package config loads BookBrain configuration from a TOML file with
// environment variable overrides. A .env file in the working directory
// is honoured for local development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Defaults mirror the behaviour tuned for mixed text/scanned libraries.
const (
	DefaultPort             = 8000
	DefaultMaxWorkers       = 4
	DefaultOCRLanguage      = "eng"
	DefaultOCRMaxPages      = 10
	DefaultOCRPageTimeout   = 60 * time.Second
	DefaultDensityThreshold = 10.0 // chars per page below which a doc counts as scanned
	DefaultMaxTextLength    = 50000
	DefaultSummaryLength    = 500
	DefaultEmbedTextLength  = 2000
	DefaultRuleMinScore     = 3.0
	DefaultMLFloor          = 0.3
)

// Server holds the HTTP listener settings.
type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// OCR holds the OCR fallback settings.
type OCR struct {
	Enabled bool `toml:"enabled"`

	// Language is the Tesseract language hint, e.g. "eng+chi_sim".
	Language string `toml:"language"`

	// MaxPages bounds how many pages are rendered and recognised.
	MaxPages int `toml:"max_pages"`

	// PageTimeout bounds each page's recognition call. A timeout
	// converts to a per-page skip, not a pipeline abort.
	PageTimeout time.Duration `toml:"page_timeout"`
}

// Classify holds the classifier thresholds.
type Classify struct {
	// RuleMinScore is the minimum weighted rule score for a
	// deterministic match.
	RuleMinScore float64 `toml:"rule_min_score"`

	// MLFloor is the minimum cosine similarity for the fallback tier.
	// Below it the document stays Uncategorized.
	MLFloor float64 `toml:"ml_floor"`
}

// Embedding holds the embedding service settings.
type Embedding struct {
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never lives in the config file.
	APIKeyEnv string `toml:"api_key_env"`

	Model      string        `toml:"model"`
	Dimensions int           `toml:"dimensions"`
	Timeout    time.Duration `toml:"timeout"`
}

// Config is the root configuration.
type Config struct {
	Server Server `toml:"server"`

	// LibraryDirs are the default directories scanned by ingest.
	LibraryDirs []string `toml:"library_dirs"`

	// DataDir holds the database, vector index and covers.
	DataDir string `toml:"data_dir"`

	// MaxWorkers bounds concurrent file processing.
	MaxWorkers int `toml:"max_workers"`

	// DensityThreshold is the chars-per-page ratio below which a
	// document is treated as scanned and routed through OCR.
	DensityThreshold float64 `toml:"density_threshold"`

	// MaxTextLength caps stored text per book, in bytes.
	MaxTextLength int `toml:"max_text_length"`

	// SummaryLength caps the derived summary, in bytes.
	SummaryLength int `toml:"summary_length"`

	// EmbedTextLength caps the representative text fed to embedding.
	EmbedTextLength int `toml:"embed_text_length"`

	OCR       OCR       `toml:"ocr"`
	Classify  Classify  `toml:"classify"`
	Embedding Embedding `toml:"embedding"`
}

// Default returns a configuration populated with default values.
// DataDir defaults to ~/.bookbrain/data.
func Default() *Config {
	dataDir := "data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".bookbrain", "data")
	}

	return &Config{
		Server:           Server{Host: "0.0.0.0", Port: DefaultPort},
		DataDir:          dataDir,
		MaxWorkers:       DefaultMaxWorkers,
		DensityThreshold: DefaultDensityThreshold,
		MaxTextLength:    DefaultMaxTextLength,
		SummaryLength:    DefaultSummaryLength,
		EmbedTextLength:  DefaultEmbedTextLength,
		OCR: OCR{
			Enabled:     true,
			Language:    DefaultOCRLanguage,
			MaxPages:    DefaultOCRMaxPages,
			PageTimeout: DefaultOCRPageTimeout,
		},
		Classify: Classify{
			RuleMinScore: DefaultRuleMinScore,
			MLFloor:      DefaultMLFloor,
		},
		Embedding: Embedding{
			BaseURL:   "http://localhost:11434/v1",
			APIKeyEnv: "BOOKBRAIN_EMBED_API_KEY",
			Model:     "nomic-embed-text",
			Timeout:   60 * time.Second,
		},
	}
}

// Load reads configuration from the given TOML file, falling back to
// defaults for absent keys, then applies environment overrides. An
// empty path loads ~/.bookbrain/config.toml when it exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".bookbrain", "config.toml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values from BOOKBRAIN_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("BOOKBRAIN_HOST"); v != "" {
		c.Server.Host = v
	}
	if v, ok := envInt("BOOKBRAIN_PORT"); ok {
		c.Server.Port = v
	}
	if v := os.Getenv("BOOKBRAIN_LIBRARY_DIRS"); v != "" {
		c.LibraryDirs = splitDirs(v)
	}
	if v := os.Getenv("BOOKBRAIN_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v, ok := envInt("BOOKBRAIN_MAX_WORKERS"); ok {
		c.MaxWorkers = v
	}
	if v := os.Getenv("BOOKBRAIN_OCR_LANGUAGE"); v != "" {
		c.OCR.Language = v
	}
	if v := os.Getenv("BOOKBRAIN_OCR_ENABLED"); v != "" {
		c.OCR.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("BOOKBRAIN_EMBED_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("BOOKBRAIN_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v, ok := envInt("BOOKBRAIN_EMBED_DIMENSIONS"); ok {
		c.Embedding.Dimensions = v
	}
}

func (c *Config) validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	if c.DensityThreshold < 0 {
		return fmt.Errorf("density_threshold must be non-negative, got %g", c.DensityThreshold)
	}
	if c.Classify.MLFloor < 0 || c.Classify.MLFloor > 1 {
		return fmt.Errorf("ml_floor must be in [0,1], got %g", c.Classify.MLFloor)
	}
	return nil
}

// EmbedAPIKey resolves the embedding API key from the configured
// environment variable. Empty when unset.
func (c *Config) EmbedAPIKey() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// DatabasePath returns the SQLite database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "bookbrain.db")
}

// IndexDir returns the vector index directory under DataDir.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// CoversDir returns the cover image directory under DataDir.
func (c *Config) CoversDir() string {
	return filepath.Join(c.DataDir, "covers")
}

// EnsureDirectories creates the data directories if absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.IndexDir(), c.CoversDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitDirs(v string) []string {
	parts := strings.Split(v, ",")
	dirs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			dirs = append(dirs, p)
		}
	}
	return dirs
}
