// Package config loads and validates the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Indexing  IndexingConfig  `yaml:"indexing" json:"indexing"`
	Watcher   WatcherConfig   `yaml:"watcher" json:"watcher"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// StorageConfig configures the SQL store.
type StorageConfig struct {
	// Path is the SQLite database file. Empty means in-memory.
	Path string `yaml:"path" json:"path"`
	// CacheMB is the SQLite page cache size in MB.
	CacheMB int `yaml:"cache_mb" json:"cache_mb"`
	// BusyTimeoutMS is the lock-contention timeout in milliseconds.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	// TombstoneTTL is how long deleted file-hash rows are retained.
	TombstoneTTL time.Duration `yaml:"tombstone_ttl" json:"tombstone_ttl"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the backend: "static" or "ollama".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the model identifier for remote providers.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the embedding dimension. Zero means provider default.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is loaded and validated but not read by the indexing
	// pipeline, which batches embedding requests by embed.DefaultBatchSize.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the LRU embedding cache capacity (0 disables).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ChunkingConfig configures the chunker.
type ChunkingConfig struct {
	// MaxLines is an advisory cap on a chunk's line span; very large
	// functions are still emitted whole.
	MaxLines int `yaml:"max_lines" json:"max_lines"`
	// MinLines filters out functions smaller than this span.
	MinLines int `yaml:"min_lines" json:"min_lines"`
	// TargetLines is the window size for line-based chunking.
	TargetLines int `yaml:"target_lines" json:"target_lines"`
	// ContextLines is exposed for consumers doing contextual expansion.
	ContextLines int `yaml:"context_lines" json:"context_lines"`
}

// SearchConfig configures the hybrid engine.
type SearchConfig struct {
	// Alpha weights the vector leg: combined = alpha*vector + (1-alpha)*fts.
	Alpha float64 `yaml:"alpha" json:"alpha"`
	// MaxResults is loaded and kept in the config; no search path reads it,
	// and k is taken as given by callers.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// IndexingConfig configures the indexing pipeline.
type IndexingConfig struct {
	// Workers is validated to be at least 1; the indexing pipeline processes
	// files one at a time and does not read it.
	Workers int `yaml:"workers" json:"workers"`
	// MaxFileSizeBytes skips files larger than this.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" json:"max_file_size_bytes"`
	// Exclude lists directory names never descended into.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// LockDir is where the cross-process indexing lock lives.
	LockDir string `yaml:"lock_dir" json:"lock_dir"`
	// BM25Path is the bleve index directory. Empty means in-memory.
	BM25Path string `yaml:"bm25_path" json:"bm25_path"`
}

// WatcherConfig configures the filesystem watcher.
type WatcherConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			CacheMB:       64,
			BusyTimeoutMS: 5000,
			TombstoneTTL:  30 * 24 * time.Hour,
		},
		Embedding: EmbeddingConfig{
			Provider:   "static",
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Chunking: ChunkingConfig{
			MaxLines:     400,
			MinLines:     3,
			TargetLines:  100,
			ContextLines: 4,
		},
		Search: SearchConfig{
			Alpha:      0.5,
			MaxResults: 10,
		},
		Indexing: IndexingConfig{
			Workers:          4,
			MaxFileSizeBytes: 2 * 1024 * 1024,
			Exclude:          []string{".git", "node_modules", "vendor", "target", "dist"},
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for
// anything unset. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be in [0,1], got %v", c.Search.Alpha)
	}
	if c.Chunking.MinLines < 1 {
		return fmt.Errorf("chunking.min_lines must be >= 1, got %d", c.Chunking.MinLines)
	}
	if c.Chunking.TargetLines < 1 {
		return fmt.Errorf("chunking.target_lines must be >= 1, got %d", c.Chunking.TargetLines)
	}
	if c.Chunking.MaxLines < c.Chunking.MinLines {
		return fmt.Errorf("chunking.max_lines (%d) must be >= min_lines (%d)", c.Chunking.MaxLines, c.Chunking.MinLines)
	}
	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("embedding.batch_size must be >= 1, got %d", c.Embedding.BatchSize)
	}
	switch c.Embedding.Provider {
	case "static", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be static or ollama, got %q", c.Embedding.Provider)
	}
	if c.Indexing.Workers < 1 {
		return fmt.Errorf("indexing.workers must be >= 1, got %d", c.Indexing.Workers)
	}
	if c.Storage.TombstoneTTL < 0 {
		return fmt.Errorf("storage.tombstone_ttl must not be negative")
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
