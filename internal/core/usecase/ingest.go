package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
	"github.com/lexgrove/caselaw-search/internal/core/ports"
)

// IngestionPipeline drives one corpus ingestion run: ensure the index exists,
// load the corpus, chunk it and upsert embeddings for chunks the index does
// not hold yet. Runs are idempotent because chunk IDs are derived from the
// document filename and chunk position.
type IngestionPipeline struct {
	loader    ports.DocumentLoader
	chunker   ports.Chunker
	embedder  ports.EmbeddingProvider
	store     ports.VectorStore
	logger    *slog.Logger
	dimension int
	batchSize int

	runMu sync.Mutex
}

func NewIngestionPipeline(
	loader ports.DocumentLoader,
	chunker ports.Chunker,
	embedder ports.EmbeddingProvider,
	store ports.VectorStore,
	logger *slog.Logger,
	dimension int,
	batchSize int,
) *IngestionPipeline {
	if batchSize <= 0 {
		batchSize = 3
	}
	return &IngestionPipeline{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		logger:    logger,
		dimension: dimension,
		batchSize: batchSize,
	}
}

// Run executes one full ingestion pass. A second call while a run is in
// flight is rejected rather than queued.
func (p *IngestionPipeline) Run(ctx context.Context) (domain.RunStats, error) {
	if !p.runMu.TryLock() {
		return domain.RunStats{}, domain.WrapError(domain.ErrInvalidInput, "start ingestion",
			errors.New("an ingestion run is already in progress"))
	}
	defer p.runMu.Unlock()

	start := time.Now()

	if err := p.store.EnsureIndex(ctx, p.dimension); err != nil {
		return domain.RunStats{}, fmt.Errorf("ensure index: %w", err)
	}

	documents, err := p.loader.LoadAll(ctx)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("load corpus: %w", err)
	}

	chunks := p.chunkAll(documents)
	stats := domain.RunStats{
		DocumentsLoaded: len(documents),
		ChunksCreated:   len(chunks),
	}

	for offset := 0; offset < len(chunks); offset += p.batchSize {
		end := offset + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		created, err := p.processBatch(ctx, chunks[offset:end])
		if err != nil {
			return stats, fmt.Errorf("process batch %d: %w", stats.BatchesProcessed+1, err)
		}
		stats.NewVectors += created
		stats.BatchesProcessed++

		p.logger.Info("batch_processed",
			"batch", stats.BatchesProcessed,
			"new_vectors", created,
			"chunks_done", end,
			"chunks_total", len(chunks),
		)
	}

	stats.ElapsedSeconds = time.Since(start).Seconds()
	p.logger.Info("ingestion_complete",
		"documents", stats.DocumentsLoaded,
		"chunks", stats.ChunksCreated,
		"new_vectors", stats.NewVectors,
		"elapsed_seconds", stats.ElapsedSeconds,
	)
	return stats, nil
}

func (p *IngestionPipeline) Status(ctx context.Context) (domain.IndexStats, error) {
	stats, err := p.store.DescribeStats(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("describe index: %w", err)
	}
	return stats, nil
}

// chunkAll flattens the corpus into a single chunk slice. A document whose
// text cannot be split is skipped, not fatal, matching the loader's handling
// of unreadable files.
func (p *IngestionPipeline) chunkAll(documents []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range documents {
		docChunks, err := p.chunker.Split(doc.Text, doc.Metadata)
		if err != nil {
			p.logger.Warn("chunking_skipped", "filename", doc.Filename, "error", err)
			continue
		}
		chunks = append(chunks, docChunks...)
	}
	return chunks
}

// processBatch embeds and upserts the chunks of one batch that are not in the
// index yet. Every newly embedded chunk is part of that batch's upsert call.
func (p *IngestionPipeline) processBatch(ctx context.Context, batch []domain.Chunk) (int, error) {
	absent := make([]domain.Chunk, 0, len(batch))
	for _, chunk := range batch {
		exists, err := p.store.Exists(ctx, chunk.ID)
		if err != nil {
			return 0, fmt.Errorf("check chunk %s: %w", chunk.ID, err)
		}
		if !exists {
			absent = append(absent, chunk)
		}
	}
	if len(absent) == 0 {
		return 0, nil
	}

	texts := make([]string, len(absent))
	for i, chunk := range absent {
		texts[i] = chunk.Content
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(embeddings) != len(absent) {
		return 0, domain.WrapError(domain.ErrProvider, "embed batch",
			fmt.Errorf("expected %d embeddings, got %d", len(absent), len(embeddings)))
	}

	now := time.Now()
	vectors := make([]domain.Vector, len(absent))
	for i, chunk := range absent {
		vectors[i] = domain.VectorFromChunk(chunk, embeddings[i], now)
	}

	if err := p.store.Upsert(ctx, vectors); err != nil {
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}
	return len(vectors), nil
}
