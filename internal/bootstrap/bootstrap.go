// Package bootstrap wires configuration into a running application graph.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/lexgrove/caselaw-search/internal/config"
	"github.com/lexgrove/caselaw-search/internal/core/ports"
	"github.com/lexgrove/caselaw-search/internal/core/usecase"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/cache"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/catalog"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/chunking"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/embedding/openai"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/extractor"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/loader"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/queue/nats"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/resilience"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/vector/pgvector"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/vector/pinecone"
	"github.com/lexgrove/caselaw-search/internal/observability/logging"
	"github.com/lexgrove/caselaw-search/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	Ingestor ports.CorpusIngestor
	Searcher ports.Searcher

	closeFn func()
}

type Options struct {
	// Service names the binary in logs and metric labels.
	Service string
	// SearchObserver is wired into the search engine when the binary
	// serves search traffic.
	SearchObserver usecase.SearchObserver
	// WithQueue controls whether a NATS connection is established.
	WithQueue bool
}

func New(cfg config.Config, opts Options) (*App, error) {
	logger := logging.NewJSONLogger(opts.Service, cfg.LogLevel)
	slog.SetDefault(logger)

	executor := resilience.NewExecutor(resilience.Config{
		RateLimitRPS: cfg.EmbeddingRPS,
	})

	embedder := openai.New(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, executor)

	store, closeStore, err := buildVectorStore(cfg, executor)
	if err != nil {
		return nil, err
	}

	chunker, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	docs := loader.New(
		cfg.DocsDir,
		catalog.NewFileCatalog(cfg.CatalogPath, logger),
		extractor.NewRegistry(),
		cfg.MaxWorkers,
		logger,
	)

	var queue *nats.Queue
	if opts.WithQueue {
		queue, err = nats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("init reindex queue: %w", err)
		}
	}
	closeFn := func() {
		if queue != nil {
			queue.Close()
		}
		closeStore()
	}

	ingestor := usecase.NewIngestionPipeline(
		docs,
		chunker,
		embedder,
		store,
		logger,
		cfg.EmbeddingDimension,
		cfg.BatchSize,
	)
	searcher := usecase.NewSearchEngine(
		embedder,
		store,
		cache.NewSearchCache(cfg.CacheMaxSize, cfg.CacheTTL),
		logger,
		usecase.SearchEngineOptions{
			MaxConcurrent: cfg.MaxConcurrentSearches,
			Timeout:       cfg.SearchTimeout,
			DefaultTopK:   cfg.DefaultTopK,
			Observer:      opts.SearchObserver,
		},
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Ingestor: ingestor,
		Searcher: searcher,
		closeFn:  closeFn,
	}, nil
}

func buildVectorStore(cfg config.Config, executor *resilience.Executor) (ports.VectorStore, func(), error) {
	switch cfg.VectorBackend {
	case "pinecone":
		client := pinecone.New(pinecone.Options{
			ControlURL: cfg.PineconeControlURL,
			IndexHost:  cfg.PineconeIndexHost,
			IndexName:  cfg.PineconeIndex,
			Cloud:      cfg.PineconeCloud,
			Region:     cfg.PineconeRegion,
			APIKey:     cfg.PineconeAPIKey,
			Executor:   executor,
		})
		return client, func() {}, nil
	case "pgvector":
		db, err := pgvector.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return pgvector.New(db, executor), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// NewServerMetrics builds the API-side metrics registry.
func NewServerMetrics(service string) *metrics.HTTPServerMetrics {
	return metrics.NewHTTPServerMetrics(service)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
