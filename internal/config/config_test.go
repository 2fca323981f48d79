package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentrag/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultChunkSize, cfg.Chunker.ChunkSize)
	assert.Equal(t, DefaultOverlap, cfg.Chunker.Overlap)
	assert.Equal(t, DefaultThreshold, cfg.Threshold())
	assert.Equal(t, DefaultMaxResults, cfg.Retrieval.MaxResults)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, DefaultIndexDir, cfg.VectorStore.SQLite.Dir)
	assert.Equal(t, DefaultEmbedModel, cfg.Embedder.OpenAI.Model)
	assert.Equal(t, DefaultMaxTokens, cfg.Generator.OpenAI.MaxTokens)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	path := writeConfig(t, `
embedder:
  type: hashing
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
    collection: patents
generator:
  type: none
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHashDimension, cfg.Embedder.Hashing.Dimension)
	assert.Nil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "cosine", cfg.VectorStore.Qdrant.Distance)
	assert.Equal(t, 15, cfg.VectorStore.Qdrant.TimeoutSecs)
	assert.Nil(t, cfg.Generator.OpenAI)
	assert.Equal(t, DefaultThreshold, cfg.Threshold())
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitZeroThresholdIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "retrieval:\n  threshold: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Threshold())
}

func TestLoad_ChunkSizeWithoutOverlap(t *testing.T) {
	cfg, err := Load(writeConfig(t, "chunker:\n  chunk_size: 500\n"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 0, cfg.Chunker.Overlap)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "chunker: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"overlap equals chunk size", func(c *AppConfig) { c.Chunker.Overlap = c.Chunker.ChunkSize }},
		{"negative overlap", func(c *AppConfig) { c.Chunker.Overlap = -1 }},
		{"threshold above one", func(c *AppConfig) { v := 1.5; c.Retrieval.Threshold = &v }},
		{"zero max results", func(c *AppConfig) { c.Retrieval.MaxResults = 0 }},
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "word2vec" }},
		{"unknown store", func(c *AppConfig) { c.VectorStore.Type = "faiss" }},
		{"qdrant without url", func(c *AppConfig) { c.VectorStore.Type = "qdrant" }},
		{"unknown generator", func(c *AppConfig) { c.Generator.Type = "anthropic" }},
		{"unknown log format", func(c *AppConfig) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.MaxResults = 4

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, loaded)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config", "patentrag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, DefaultChunkSize, cfg.Chunker.ChunkSize)
}

func TestLoadDefault_PrefersWorkingDirectory(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("retrieval:\n  max_results: 3\n"), 0o644))
	t.Chdir(dir)

	cfg, path, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, 3, cfg.Retrieval.MaxResults)
}
