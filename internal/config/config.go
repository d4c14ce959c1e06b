// Package config provides application configuration with multi-source
// priority: environment variables override the optional config file
// (~/.voyago/config.yaml), which overrides the built-in defaults.
//
// Environment variables use the VOYAGO_ prefix with underscores for nesting,
// e.g. VOYAGO_SERVER_ADDR, VOYAGO_STORE_BACKEND. The Gemini API key is read
// by the AI plugin itself from GEMINI_API_KEY.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for validation failures.
var (
	// ErrInvalidBackend indicates an unknown store backend.
	ErrInvalidBackend = errors.New("invalid store backend")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidMinSimilarity indicates the relevance floor is out of range.
	ErrInvalidMinSimilarity = errors.New("invalid similarity floor")

	// ErrInvalidInterval indicates a non-positive duration setting.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrMissingSource indicates no usable content source configuration.
	ErrMissingSource = errors.New("missing content source")
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Content source kinds.
const (
	SourceStatic  = "static"
	SourceSitemap = "sitemap"
	SourceCrawl   = "crawl"
)

// Config holds all application settings.
type Config struct {
	// Server
	Addr               string  `mapstructure:"addr"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`

	// AI models
	ChatModel     string `mapstructure:"chat_model"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// Store persistence
	StoreBackend string `mapstructure:"store_backend"`
	StorePath    string `mapstructure:"store_path"`
	StoreSlot    string `mapstructure:"store_slot"`

	// Content source
	SourceKind    string `mapstructure:"source_kind"`
	SitemapURL    string `mapstructure:"sitemap_url"`
	CrawlBaseURL  string `mapstructure:"crawl_base_url"`
	MaxCrawlPages int    `mapstructure:"max_crawl_pages"`

	// Pipeline tuning
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	StalenessWindow time.Duration `mapstructure:"staleness_window"`
	EmbedInterval   time.Duration `mapstructure:"embed_interval"`
	TopK            int           `mapstructure:"top_k"`
	MinSimilarity   float64       `mapstructure:"min_similarity"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, the optional config file and the
// environment.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("VOYAGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:3500")
	v.SetDefault("rate_limit_per_second", 5.0)
	v.SetDefault("rate_limit_burst", 10)

	v.SetDefault("chat_model", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")

	v.SetDefault("store_backend", BackendSQLite)
	v.SetDefault("store_path", "") // resolved per backend in StorePathOrDefault
	v.SetDefault("store_slot", "knowledge")

	v.SetDefault("source_kind", SourceStatic)
	v.SetDefault("sitemap_url", "")
	v.SetDefault("crawl_base_url", "")
	v.SetDefault("max_crawl_pages", 50)

	v.SetDefault("refresh_interval", 24*time.Hour)
	v.SetDefault("staleness_window", 24*time.Hour)
	v.SetDefault("embed_interval", 100*time.Millisecond)
	v.SetDefault("top_k", 3)
	v.SetDefault("min_similarity", 0.7)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("%w: %q (want %s, %s or %s)",
			ErrInvalidBackend, c.StoreBackend, BackendSQLite, BackendFile, BackendMemory)
	}

	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: %d (want 1-20)", ErrInvalidTopK, c.TopK)
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: %g (want -1..1)", ErrInvalidMinSimilarity, c.MinSimilarity)
	}
	if c.RefreshInterval <= 0 || c.StalenessWindow <= 0 || c.EmbedInterval <= 0 {
		return fmt.Errorf("%w: refresh, staleness and embed intervals must be positive", ErrInvalidInterval)
	}

	switch c.SourceKind {
	case SourceStatic:
	case SourceSitemap:
		if c.SitemapURL == "" {
			return fmt.Errorf("%w: sitemap source needs sitemap_url", ErrMissingSource)
		}
	case SourceCrawl:
		if c.CrawlBaseURL == "" {
			return fmt.Errorf("%w: crawl source needs crawl_base_url", ErrMissingSource)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrMissingSource, c.SourceKind)
	}

	return nil
}

// StorePathOrDefault resolves the persistence path, defaulting into the
// config directory per backend.
func (c *Config) StorePathOrDefault() (string, error) {
	if c.StorePath != "" {
		return c.StorePath, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	switch c.StoreBackend {
	case BackendFile:
		return filepath.Join(dir, "knowledge.json"), nil
	default:
		return filepath.Join(dir, "voyago.db"), nil
	}
}

// configDir returns ~/.voyago, creating it with restricted permissions.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".voyago")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("config: create config directory: %w", err)
	}
	return dir, nil
}
