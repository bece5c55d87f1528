package ports

import (
	"context"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

// CorpusIngestor is the inbound contract for one-shot corpus ingestion runs.
type CorpusIngestor interface {
	Run(ctx context.Context) (domain.RunStats, error)
	Status(ctx context.Context) (domain.IndexStats, error)
}

// Searcher is the inbound contract for similarity search.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (*domain.SearchResponse, error)
	HealthCheck(ctx context.Context) domain.HealthStatus
}
