package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"patentrag/internal/domain"
)

// Defaults applied to zero-valued fields.
const (
	DefaultChunkSize     = 1000
	DefaultOverlap       = 200
	DefaultThreshold     = 0.7
	DefaultMaxResults    = 10
	DefaultIndexDir      = "data/embeddings"
	DefaultEmbedModel    = "text-embedding-3-small"
	DefaultGenModel      = "gpt-4o-mini"
	DefaultMaxTokens     = 1000
	DefaultHashDimension = 512
	DefaultAPIKeyEnv     = "OPENAI_API_KEY"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	// File receives log output instead of stderr when set.
	File string `yaml:"file,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
}

// HashingEmbedderConfig configures the offline feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
}

// ChunkerConfig configures how page text is split into passages.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// IngestConfig controls re-ingestion. With Replace set, ingesting a document
// first removes the passages indexed under the same document id.
type IngestConfig struct {
	Replace bool `yaml:"replace"`
}

// RetrievalConfig holds the default threshold and result cap. A missing
// threshold means DefaultThreshold; an explicit 0 keeps every candidate.
type RetrievalConfig struct {
	Threshold  *float64 `yaml:"threshold,omitempty"`
	MaxResults int      `yaml:"max_results"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig points at the directory holding the index database.
type SQLiteConfig struct {
	Dir string `yaml:"dir"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIGeneratorConfig configures the chat completions endpoint.
type OpenAIGeneratorConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// GeneratorConfig selects the answer generator. Type "none" disables answering.
type GeneratorConfig struct {
	Type   string                 `yaml:"type"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/patentrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/patentrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Threshold returns the configured similarity threshold.
func (c *AppConfig) Threshold() float64 {
	if c.Retrieval.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Retrieval.Threshold
}

// Validate reports the first setting the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Chunker.ChunkSize <= 0 {
		return invalid("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return invalid("chunker.overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.Overlap)
	}
	if t := c.Threshold(); t < 0 || t > 1 {
		return invalid("retrieval.threshold must be in [0, 1], got %v", t)
	}
	if c.Retrieval.MaxResults <= 0 {
		return invalid("retrieval.max_results must be positive, got %d", c.Retrieval.MaxResults)
	}
	switch c.Embedder.Type {
	case "openai", "hashing":
	default:
		return invalid("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "sqlite", "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" || c.VectorStore.Qdrant.Collection == "" {
			return invalid("vector_store.qdrant needs url and collection")
		}
	default:
		return invalid("unknown vector store type %q", c.VectorStore.Type)
	}
	switch c.Generator.Type {
	case "openai", "none":
	default:
		return invalid("unknown generator type %q", c.Generator.Type)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "patentrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	threshold := DefaultThreshold
	cfg := &AppConfig{
		Logging:     LoggingConfig{Level: "info", Format: "console"},
		Embedder:    EmbedderConfig{Type: "openai"},
		Chunker:     ChunkerConfig{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap},
		Retrieval:   RetrievalConfig{Threshold: &threshold, MaxResults: DefaultMaxResults},
		VectorStore: VectorStoreConfig{Type: "sqlite"},
		Generator:   GeneratorConfig{Type: "openai"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = DefaultChunkSize
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = DefaultOverlap
		}
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = DefaultMaxResults
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = DefaultOpenAIBaseURL
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = DefaultAPIKeyEnv
		}
		if o.Model == "" {
			o.Model = DefaultEmbedModel
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
	case "hashing":
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = DefaultHashDimension
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	switch cfg.VectorStore.Type {
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Dir == "" {
			cfg.VectorStore.SQLite.Dir = DefaultIndexDir
		}
	case "qdrant":
		if q := cfg.VectorStore.Qdrant; q != nil {
			if q.Distance == "" {
				q.Distance = "cosine"
			}
			if q.TimeoutSecs == 0 {
				q.TimeoutSecs = 15
			}
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.Type == "openai" {
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		g := cfg.Generator.OpenAI
		if g.BaseURL == "" {
			g.BaseURL = DefaultOpenAIBaseURL
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = DefaultAPIKeyEnv
		}
		if g.Model == "" {
			g.Model = DefaultGenModel
		}
		if g.MaxTokens == 0 {
			g.MaxTokens = DefaultMaxTokens
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 60
		}
	}
}
