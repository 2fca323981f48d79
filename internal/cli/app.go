package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"patentrag/internal/config"
	"patentrag/internal/domain"
	"patentrag/internal/embedding"
	"patentrag/internal/embedding/hashing"
	embopenai "patentrag/internal/embedding/openai"
	"patentrag/internal/extract"
	genopenai "patentrag/internal/generator/openai"
	"patentrag/internal/metrics"
	"patentrag/internal/service"
	"patentrag/internal/vectorstore"
	"patentrag/internal/vectorstore/memory"
	"patentrag/internal/vectorstore/qdrant"
	"patentrag/internal/vectorstore/sqlite"
)

// UnidocLicenseEnv names the variable holding an optional unipdf metered key.
const UnidocLicenseEnv = "UNIDOC_LICENSE_API_KEY"

// App holds the components built for one command invocation.
type App struct {
	Config  *config.AppConfig
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Index   vectorstore.Storage
	Service *service.RAGService

	metricsServer *http.Server
}

// generatorMode says how a command needs the answer generator.
type generatorMode int

const (
	generatorUnused   generatorMode = iota // retrieval only
	generatorOptional                      // used when configured and keyed
	generatorRequired                      // missing key is an error
)

// NewApp builds the pipeline described by cfg.
func NewApp(cfg *config.AppConfig, logger *zap.Logger, m *metrics.Metrics, mode generatorMode) (*App, error) {
	if err := extract.SetLicenseKey(os.Getenv(UnidocLicenseEnv)); err != nil {
		logger.Warn("unipdf license not applied", zap.Error(err))
	}

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	index, err := newIndex(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(cfg.Generator, mode)
	if err != nil {
		index.Close()
		return nil, err
	}
	if gen == nil && mode == generatorOptional {
		logger.Warn("no generator available; answers will list retrieved passages only")
	}

	vec := embedding.NewVectorizer(emb, logger, m.EmbeddingFailed)
	svc := service.NewRAGService(extract.NewRegistry(), vec, index, gen, logger, m, service.Options{
		ChunkSize:        cfg.Chunker.ChunkSize,
		Overlap:          cfg.Chunker.Overlap,
		Threshold:        cfg.Threshold(),
		MaxResults:       cfg.Retrieval.MaxResults,
		ReplaceDocuments: cfg.Ingest.Replace,
	})
	return &App{Config: cfg, Logger: logger, Metrics: m, Index: index, Service: svc}, nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Hashing.Dimension), nil
	case "openai":
		o := cfg.OpenAI
		key := os.Getenv(o.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%w: embedder API key: environment variable %s is not set", domain.ErrInvalidConfig, o.APIKeyEnv)
		}
		return embopenai.NewClient(embopenai.Config{
			BaseURL:    o.BaseURL,
			APIKey:     key,
			Model:      o.Model,
			Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
			BatchSize:  o.BatchSize,
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

func newIndex(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "sqlite":
		return sqlite.NewStorage(cfg.SQLite.Dir)
	case "qdrant":
		q := cfg.Qdrant
		var key string
		if q.APIKeyEnv != "" {
			key = os.Getenv(q.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKey:     key,
			Collection: q.Collection,
			Distance:   q.Distance,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

func newGenerator(cfg config.GeneratorConfig, mode generatorMode) (domain.Generator, error) {
	if mode == generatorUnused || cfg.Type == "none" {
		if mode == generatorRequired {
			return nil, fmt.Errorf("%w: answering needs a generator, but generator.type is none", domain.ErrInvalidConfig)
		}
		return nil, nil
	}
	o := cfg.OpenAI
	key := os.Getenv(o.APIKeyEnv)
	if key == "" {
		if mode == generatorRequired {
			return nil, fmt.Errorf("%w: generator API key: environment variable %s is not set", domain.ErrInvalidConfig, o.APIKeyEnv)
		}
		return nil, nil
	}
	return genopenai.NewClient(genopenai.Config{
		BaseURL:     o.BaseURL,
		APIKey:      key,
		Model:       o.Model,
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
		Timeout:     time.Duration(o.TimeoutSecs) * time.Second,
	})
}

// ServeMetrics exposes /metrics on addr until Close.
func (a *App) ServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	a.metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	a.Logger.Info("serving metrics", zap.String("addr", addr))
}

// Close releases the index and stops the metrics server.
func (a *App) Close() error {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
	}
	_ = a.Logger.Sync()
	return a.Index.Close()
}
