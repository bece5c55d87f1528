package ports

import (
	"context"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
)

// EmbeddingProvider converts text into fixed-dimensionality vectors. EmbedBatch
// is atomic: it returns one vector per input text, in input order, or an error.
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the external similarity index.
type VectorStore interface {
	// EnsureIndex creates the index with the given dimension and cosine
	// metric if it does not exist and waits until it is ready for writes.
	EnsureIndex(ctx context.Context, dimension int) error
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, vectors []domain.Vector) error
	Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	DescribeStats(ctx context.Context) (domain.IndexStats, error)
}

// DocumentCatalog supplies per-file metadata records keyed by filename.
type DocumentCatalog interface {
	Load(ctx context.Context) (map[string]map[string]string, error)
}

// TextExtractor turns one source file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// DocumentLoader reads the corpus directory and pairs every readable file
// with its catalog entry.
type DocumentLoader interface {
	LoadAll(ctx context.Context) ([]domain.Document, error)
}

// Chunker splits extracted text into overlapping chunks carrying the
// document metadata.
type Chunker interface {
	Split(text string, metadata map[string]string) ([]domain.Chunk, error)
}

// ReindexQueue publishes/consumes corpus reindex requests.
type ReindexQueue interface {
	PublishReindexRequested(ctx context.Context, reason string) error
	SubscribeReindexRequested(ctx context.Context, handler func(context.Context, string) error) error
}
