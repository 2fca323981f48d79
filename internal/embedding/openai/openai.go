package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 32
)

var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	BatchSize int
	// Dimensions overrides the model's native size (text-embedding-3-* only).
	Dimensions int
}

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	api        *goopenai.Client
	model      string
	batchSize  int
	dimensions int
	shorten    bool
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	dims := cfg.Dimensions
	if dims == 0 {
		var ok bool
		if dims, ok = modelDimensions[cfg.Model]; !ok {
			dims = 1536
		}
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:        goopenai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		dimensions: dims,
		shorten:    cfg.Dimensions > 0,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimensions }

// EmbedBatch sends texts in batches of at most BatchSize and reassembles the
// vectors in input order using the index field of each response item.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		req := goopenai.EmbeddingRequest{
			Input: texts[start:end],
			Model: goopenai.EmbeddingModel(c.model),
		}
		if c.shorten {
			req.Dimensions = c.dimensions
		}
		resp, err := c.api.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		for _, item := range resp.Data {
			if item.Index < 0 || start+item.Index >= end {
				return nil, fmt.Errorf("openai embeddings: response index %d out of range", item.Index)
			}
			out[start+item.Index] = item.Embedding
		}
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai embeddings: no vector for input %d", i)
		}
	}
	return out, nil
}
