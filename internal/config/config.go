// Package config provides configuration management for Resonate.
// Settings come from an optional YAML file overridden by environment
// variables with the RESONATE_ prefix, with sensible defaults for every
// option.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Resonate engine.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Profile   ProfileConfig   `yaml:"profile"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Engine is the storage backend: sqlite or postgres (default: sqlite).
	Engine string `yaml:"engine"`

	// DSN is the database connection string. For SQLite this is the
	// database file path (default: ./data/resonate.db).
	DSN string `yaml:"dsn"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// OllamaURL is the Ollama API URL (default: http://localhost:11434).
	OllamaURL string `yaml:"ollama_url"`

	// Model is the embedding model name (default: nomic-embed-text).
	Model string `yaml:"model"`

	// Dimension is the embedding vector dimension (default: 384).
	Dimension int `yaml:"dimension"`

	// Timeout bounds each embedding request (default: 10s).
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize is the in-process embedding cache capacity (default: 4096).
	CacheSize int `yaml:"cache_size"`
}

// SearchConfig configures the candidate retrieval clients.
type SearchConfig struct {
	// Timeout bounds each search request (default: 10s).
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond throttles each search source (default: 5).
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// YouTubeConfig configures the optional playable-reference resolver.
type YouTubeConfig struct {
	// APIKey enables video ID resolution when set.
	APIKey string `yaml:"api_key"`
}

// ProfileConfig tunes taste-profile behavior.
type ProfileConfig struct {
	// BlendWeight is the default weight for new songs when updating a
	// profile (default: 0.3).
	BlendWeight float64 `yaml:"blend_weight"`
}

// Load builds the configuration from defaults, an optional YAML file
// and environment variable overrides, in that precedence order.
// An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine: "sqlite",
			DSN:    "./data/resonate.db",
		},
		Embedding: EmbeddingConfig{
			OllamaURL: "http://localhost:11434",
			Model:     "nomic-embed-text",
			Dimension: 384,
			Timeout:   10 * time.Second,
			CacheSize: 4096,
		},
		Search: SearchConfig{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
		},
		Profile: ProfileConfig{
			BlendWeight: 0.3,
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Storage.Engine, "RESONATE_STORAGE_ENGINE")
	setString(&cfg.Storage.DSN, "RESONATE_STORAGE_DSN")
	setString(&cfg.Embedding.OllamaURL, "RESONATE_OLLAMA_URL")
	setString(&cfg.Embedding.Model, "RESONATE_EMBEDDING_MODEL")
	setInt(&cfg.Embedding.Dimension, "RESONATE_EMBEDDING_DIMENSION")
	setDuration(&cfg.Embedding.Timeout, "RESONATE_EMBEDDING_TIMEOUT")
	setInt(&cfg.Embedding.CacheSize, "RESONATE_EMBEDDING_CACHE_SIZE")
	setDuration(&cfg.Search.Timeout, "RESONATE_SEARCH_TIMEOUT")
	setFloat(&cfg.Search.RequestsPerSecond, "RESONATE_SEARCH_RPS")
	setString(&cfg.YouTube.APIKey, "RESONATE_YOUTUBE_API_KEY")
	setFloat(&cfg.Profile.BlendWeight, "RESONATE_BLEND_WEIGHT")
}

// Validate checks the configuration for nonsense values.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported storage engine %q", c.Storage.Engine)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Profile.BlendWeight < 0 || c.Profile.BlendWeight > 1 {
		return fmt.Errorf("config: blend weight %v outside [0,1]", c.Profile.BlendWeight)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
