package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
	"github.com/lexgrove/caselaw-search/internal/core/ports"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/extractor"
)

// Loader walks the corpus directory and pairs every extractable file with its
// catalog record. Extraction runs on a bounded worker pool; a document that
// fails to extract or has no catalog entry is skipped, never fatal.
type Loader struct {
	docsDir    string
	catalog    ports.DocumentCatalog
	registry   *extractor.Registry
	maxWorkers int
	logger     *slog.Logger
}

func New(docsDir string, cat ports.DocumentCatalog, registry *extractor.Registry, maxWorkers int, logger *slog.Logger) *Loader {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		docsDir:    docsDir,
		catalog:    cat,
		registry:   registry,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

func (l *Loader) LoadAll(ctx context.Context) ([]domain.Document, error) {
	records, err := l.catalog.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata catalog: %w", err)
	}

	entries, err := os.ReadDir(l.docsDir)
	if err != nil {
		return nil, fmt.Errorf("list corpus directory: %w", err)
	}

	pool, err := ants.NewPool(l.maxWorkers)
	if err != nil {
		return nil, fmt.Errorf("create loader pool: %w", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		docs []domain.Document
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		ext, ok := l.registry.ForFile(filename)
		if !ok {
			continue
		}

		meta, ok := records[filename]
		if !ok {
			l.logger.Warn("document_skipped", "filename", filename, "reason", "no catalog entry")
			continue
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			l.loadOne(ctx, filename, meta, ext, &mu, &docs)
		})
		if submitErr != nil {
			wg.Done()
			return nil, fmt.Errorf("submit loader task: %w", submitErr)
		}
	}

	wg.Wait()
	l.logger.Info("corpus_loaded", "documents", len(docs), "catalog_records", len(records))
	return docs, nil
}

func (l *Loader) loadOne(
	ctx context.Context,
	filename string,
	meta map[string]string,
	ext ports.TextExtractor,
	mu *sync.Mutex,
	docs *[]domain.Document,
) {
	text, err := ext.Extract(ctx, filepath.Join(l.docsDir, filename))
	if err != nil {
		l.logger.Warn("document_skipped", "filename", filename, "reason", "extraction failed", "error", err)
		return
	}

	metaCopy := make(map[string]string, len(meta))
	for k, v := range meta {
		metaCopy[k] = v
	}
	metaCopy["filename"] = filename

	mu.Lock()
	*docs = append(*docs, domain.Document{
		Filename: filename,
		Text:     text,
		Metadata: metaCopy,
	})
	mu.Unlock()
}
