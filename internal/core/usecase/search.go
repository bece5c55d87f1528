package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
	"github.com/lexgrove/caselaw-search/internal/core/ports"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/cache"
)

// SearchObserver receives search-path observations. Implementations must be
// safe for concurrent use; a nil observer disables recording.
type SearchObserver interface {
	CacheEvent(result string)
	Timeout()
	Completed(resultCount int, duration time.Duration)
}

// SearchEngine answers similarity queries with a bounded number of concurrent
// provider calls, a TTL response cache and a hard per-search deadline.
type SearchEngine struct {
	embedder ports.EmbeddingProvider
	store    ports.VectorStore
	cache    *cache.SearchCache
	logger   *slog.Logger
	observer SearchObserver

	slots      *semaphore.Weighted
	maxSlots   int64
	timeout    time.Duration
	defaultTop int
}

type SearchEngineOptions struct {
	MaxConcurrent int
	Timeout       time.Duration
	DefaultTopK   int
	Observer      SearchObserver
}

func NewSearchEngine(
	embedder ports.EmbeddingProvider,
	store ports.VectorStore,
	responseCache *cache.SearchCache,
	logger *slog.Logger,
	opts SearchEngineOptions,
) *SearchEngine {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &SearchEngine{
		embedder:   embedder,
		store:      store,
		cache:      responseCache,
		logger:     logger,
		observer:   opts.Observer,
		slots:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		maxSlots:   int64(opts.MaxConcurrent),
		timeout:    opts.Timeout,
		defaultTop: opts.DefaultTopK,
	}
}

// Search acquires a concurrency slot, consults the cache and only then pays
// for an embedding plus index query, all under the configured deadline. A
// cache hit never touches the providers.
func (e *SearchEngine) Search(ctx context.Context, query string, topK int) (*domain.SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query must not be empty"))
	}
	if topK <= 0 {
		topK = e.defaultTop
	}

	start := time.Now()

	// Waiting for a slot counts against the caller's context, not the
	// per-search deadline.
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire search slot: %w", err)
	}
	defer e.slots.Release(1)

	key := cache.Key(query, topK)
	if cached, ok := e.cache.Get(key); ok {
		if e.observer != nil {
			e.observer.CacheEvent("hit")
			e.observer.Completed(cached.TotalResults, time.Since(start))
		}
		e.logger.Debug("search_cache_hit", "top_k", topK)
		return cached, nil
	}
	if e.observer != nil {
		e.observer.CacheEvent("miss")
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	response, err := e.executeSearch(searchCtx, query, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if e.observer != nil {
				e.observer.Timeout()
			}
			return nil, domain.WrapError(domain.ErrTimeout, "search",
				fmt.Errorf("no result within %s", e.timeout))
		}
		return nil, err
	}

	response.ProcessingTime = formatDuration(time.Since(start))
	e.cache.Add(key, response)
	if e.observer != nil {
		e.observer.Completed(response.TotalResults, time.Since(start))
	}
	e.logger.Info("search_complete",
		"top_k", topK,
		"results", response.TotalResults,
		"elapsed", response.ProcessingTime,
	)
	return response, nil
}

func (e *SearchEngine) executeSearch(ctx context.Context, query string, topK int) (*domain.SearchResponse, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := e.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	return &domain.SearchResponse{
		Results:      results,
		TotalResults: len(results),
	}, nil
}

// HealthCheck runs one live embedding plus an index probe and reports cache
// occupancy and free search slots. It degrades to "unhealthy" instead of
// failing.
func (e *SearchEngine) HealthCheck(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{
		Status:         "healthy",
		CacheSize:      e.cache.Len(),
		AvailableSlots: e.availableSlots(),
	}

	if _, err := e.embedder.EmbedQuery(ctx, "test"); err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
		return status
	}
	if _, err := e.store.DescribeStats(ctx); err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

func (e *SearchEngine) availableSlots() int64 {
	var free int64
	for free < e.maxSlots && e.slots.TryAcquire(1) {
		free++
	}
	if free > 0 {
		e.slots.Release(free)
	}
	return free
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
