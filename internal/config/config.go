// Package config loads and validates askdocs configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete askdocs configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Confluence ConfluenceConfig `yaml:"confluence" json:"confluence"`
	Database   DatabaseConfig   `yaml:"database" json:"database"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// ConfluenceConfig configures the Confluence importer.
type ConfluenceConfig struct {
	// BaseURL is the Confluence instance URL (e.g., https://acme.atlassian.net/wiki).
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Username is the account email for basic auth.
	Username string `yaml:"username" json:"username"`
	// APIToken is the Atlassian API token.
	APIToken string `yaml:"api_token" json:"api_token"`
	// SpaceKey restricts sync to a single space.
	SpaceKey string `yaml:"space_key" json:"space_key"`
	// RequestTimeout bounds each API call.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// PageSize is the pagination size for page listing.
	PageSize int `yaml:"page_size" json:"page_size"`
}

// DatabaseConfig configures the SQLite chunk store.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty means in-memory (tests).
	Path string `yaml:"path" json:"path"`
	// TextIndexBackend selects the text fallback backend: "bleve" or "sqlite".
	// SQLite FTS5 allows concurrent multi-process access; bleve is single-process.
	TextIndexBackend string `yaml:"text_index_backend" json:"text_index_backend"`
	// TextIndexPath is the on-disk location for the bleve index.
	TextIndexPath string `yaml:"text_index_path" json:"text_index_path"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama" or "static".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`
	// Dimension is the embedding vector dimension D. Every indexed chunk and
	// every query embedding must match it.
	Dimension int `yaml:"dimension" json:"dimension"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// Timeout bounds each embedding call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// BatchSize is texts per embedding request during sync.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// RetrievalConfig configures the retrieval engine.
type RetrievalConfig struct {
	// TopK is the default number of results to return.
	TopK int `yaml:"top_k" json:"top_k"`
	// SimilarityThreshold is the default cutoff for vector results (0-1).
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	// VectorSearchLimit caps the candidate set fetched from the vector index.
	VectorSearchLimit int `yaml:"vector_search_limit" json:"vector_search_limit"`
	// Deadline is the overall retrieve budget (embedding + search + fallback).
	Deadline time.Duration `yaml:"deadline" json:"deadline"`
	// ExactMaxChunks is the corpus size below which exact scan is used.
	ExactMaxChunks int `yaml:"exact_max_chunks" json:"exact_max_chunks"`
	// IVFMaxChunks is the corpus size below which the IVF index is used.
	// At or above it, HNSW is used.
	IVFMaxChunks int `yaml:"ivf_max_chunks" json:"ivf_max_chunks"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Backend selects the cache: "memory", "redis", or "none".
	Backend string `yaml:"backend" json:"backend"`
	// TTL is the lifetime of result entries.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// MaxEntries bounds the in-memory LRU.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`
	// RedisAddr is the Redis host:port.
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	// RedisPassword is the optional Redis password.
	RedisPassword string `yaml:"redis_password" json:"redis_password"`
	// RedisDB is the Redis database number.
	RedisDB int `yaml:"redis_db" json:"redis_db"`
}

// ChunkingConfig configures the text splitter used at sync time.
type ChunkingConfig struct {
	// Size is the target chunk length in characters.
	Size int `yaml:"size" json:"size"`
	// Overlap is the number of characters shared between adjacent chunks.
	Overlap int `yaml:"overlap" json:"overlap"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Confluence: ConfluenceConfig{
			RequestTimeout: 30 * time.Second,
			PageSize:       50,
		},
		Database: DatabaseConfig{
			Path:             defaultDataPath("askdocs.db"),
			TextIndexBackend: "bleve",
			TextIndexPath:    defaultDataPath("text.bleve"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "all-minilm",
			Dimension:  384,
			OllamaHost: "http://localhost:11434",
			Timeout:    30 * time.Second,
			BatchSize:  32,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			SimilarityThreshold: 0.5,
			VectorSearchLimit:   100,
			Deadline:            10 * time.Second,
			ExactMaxChunks:      1000,
			IVFMaxChunks:        10000,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 4096,
			RedisAddr:  "localhost:6379",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		LogLevel: "info",
	}
}

// defaultDataPath returns a path under ~/.askdocs/.
func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".askdocs", name)
	}
	return filepath.Join(home, ".askdocs", name)
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (askdocs.yaml in dir, if present)
//  3. Environment variables (ASKDOCS_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from askdocs.yaml or askdocs.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"askdocs.yaml", "askdocs.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}

	if other.Confluence.BaseURL != "" {
		c.Confluence.BaseURL = other.Confluence.BaseURL
	}
	if other.Confluence.Username != "" {
		c.Confluence.Username = other.Confluence.Username
	}
	if other.Confluence.APIToken != "" {
		c.Confluence.APIToken = other.Confluence.APIToken
	}
	if other.Confluence.SpaceKey != "" {
		c.Confluence.SpaceKey = other.Confluence.SpaceKey
	}
	if other.Confluence.RequestTimeout != 0 {
		c.Confluence.RequestTimeout = other.Confluence.RequestTimeout
	}
	if other.Confluence.PageSize != 0 {
		c.Confluence.PageSize = other.Confluence.PageSize
	}

	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	if other.Database.TextIndexBackend != "" {
		c.Database.TextIndexBackend = other.Database.TextIndexBackend
	}
	if other.Database.TextIndexPath != "" {
		c.Database.TextIndexPath = other.Database.TextIndexPath
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimension != 0 {
		c.Embeddings.Dimension = other.Embeddings.Dimension
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Timeout != 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.SimilarityThreshold != 0 {
		c.Retrieval.SimilarityThreshold = other.Retrieval.SimilarityThreshold
	}
	if other.Retrieval.VectorSearchLimit != 0 {
		c.Retrieval.VectorSearchLimit = other.Retrieval.VectorSearchLimit
	}
	if other.Retrieval.Deadline != 0 {
		c.Retrieval.Deadline = other.Retrieval.Deadline
	}
	if other.Retrieval.ExactMaxChunks != 0 {
		c.Retrieval.ExactMaxChunks = other.Retrieval.ExactMaxChunks
	}
	if other.Retrieval.IVFMaxChunks != 0 {
		c.Retrieval.IVFMaxChunks = other.Retrieval.IVFMaxChunks
	}

	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}
	if other.Cache.RedisAddr != "" {
		c.Cache.RedisAddr = other.Cache.RedisAddr
	}
	if other.Cache.RedisPassword != "" {
		c.Cache.RedisPassword = other.Cache.RedisPassword
	}
	if other.Cache.RedisDB != 0 {
		c.Cache.RedisDB = other.Cache.RedisDB
	}

	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
}

// applyEnvOverrides applies ASKDOCS_* environment variables, highest precedence.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONFLUENCE_URL"); v != "" {
		c.Confluence.BaseURL = v
	}
	if v := os.Getenv("CONFLUENCE_USERNAME"); v != "" {
		c.Confluence.Username = v
	}
	if v := os.Getenv("CONFLUENCE_API_TOKEN"); v != "" {
		c.Confluence.APIToken = v
	}
	if v := os.Getenv("CONFLUENCE_SPACE_KEY"); v != "" {
		c.Confluence.SpaceKey = v
	}

	if v := os.Getenv("ASKDOCS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ASKDOCS_TEXT_BACKEND"); v != "" {
		c.Database.TextIndexBackend = v
	}

	if v := os.Getenv("ASKDOCS_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("ASKDOCS_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("ASKDOCS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("EMBEDDING_DIMENSION"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			c.Embeddings.Dimension = d
		}
	}

	if v := os.Getenv("VECTOR_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.VectorSearchLimit = n
		}
	}
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Retrieval.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("ASKDOCS_EXACT_MAX_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.ExactMaxChunks = n
		}
	}
	if v := os.Getenv("ASKDOCS_IVF_MAX_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.IVFMaxChunks = n
		}
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		// Accept plain seconds (original convention) or Go durations.
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Cache.TTL = time.Duration(secs) * time.Second
		} else if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("ASKDOCS_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}

	if v := os.Getenv("ASKDOCS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate checks the final configuration for consistency.
func (c *Config) Validate() error {
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings.dimension must be positive, got %d", c.Embeddings.Dimension)
	}

	validProviders := map[string]bool{"ollama": true, "static": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %s", c.Embeddings.Provider)
	}

	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be between 0 and 1, got %f", c.Retrieval.SimilarityThreshold)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.VectorSearchLimit < c.Retrieval.TopK {
		return fmt.Errorf("retrieval.vector_search_limit (%d) must be >= top_k (%d)",
			c.Retrieval.VectorSearchLimit, c.Retrieval.TopK)
	}
	if c.Retrieval.ExactMaxChunks <= 0 || c.Retrieval.IVFMaxChunks <= c.Retrieval.ExactMaxChunks {
		return fmt.Errorf("tier thresholds must satisfy 0 < exact_max_chunks (%d) < ivf_max_chunks (%d)",
			c.Retrieval.ExactMaxChunks, c.Retrieval.IVFMaxChunks)
	}

	validBackends := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validBackends[strings.ToLower(c.Cache.Backend)] {
		return fmt.Errorf("cache.backend must be 'memory', 'redis', or 'none', got %s", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	validText := map[string]bool{"bleve": true, "sqlite": true}
	if !validText[strings.ToLower(c.Database.TextIndexBackend)] {
		return fmt.Errorf("database.text_index_backend must be 'bleve' or 'sqlite', got %s", c.Database.TextIndexBackend)
	}

	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
